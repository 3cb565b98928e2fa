package handler

import (
	"context"

	"shipa-backend/internal/adapter/http/dto"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the maintenance sweeps.
type AdminHandler struct {
	cleanupSvc ports.CleanupService
}

func NewAdminHandler(cleanupSvc ports.CleanupService) *AdminHandler {
	return &AdminHandler{cleanupSvc: cleanupSvc}
}

// CleanupAll handles POST /api/v1/admin/cleanup/all.
func (h *AdminHandler) CleanupAll(c *gin.Context) {
	results, err := h.cleanupSvc.CleanupAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCleanup(c, results...)
}

// CleanupShops handles POST /api/v1/admin/cleanup/shops.
func (h *AdminHandler) CleanupShops(c *gin.Context) {
	h.single(c, h.cleanupSvc.CleanupShops)
}

// CleanupMenuItems handles POST /api/v1/admin/cleanup/menu-items.
func (h *AdminHandler) CleanupMenuItems(c *gin.Context) {
	h.single(c, h.cleanupSvc.CleanupMenuItems)
}

// CleanupUsers handles POST /api/v1/admin/cleanup/users.
func (h *AdminHandler) CleanupUsers(c *gin.Context) {
	h.single(c, h.cleanupSvc.CleanupUsers)
}

func (h *AdminHandler) single(c *gin.Context, run func(context.Context) (*domain.CleanupResult, error)) {
	result, err := run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCleanup(c, *result)
}

func respondCleanup(c *gin.Context, results ...domain.CleanupResult) {
	resp := dto.CleanupResponse{Results: results}
	for _, r := range results {
		resp.TotalDeleted += r.DeletedCount
	}
	response.OK(c, resp)
}
