package handler

import (
	"shipa-backend/internal/adapter/http/dto"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/geo"
	"shipa-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ShopHandler struct {
	shopSvc ports.ShopService
}

func NewShopHandler(shopSvc ports.ShopService) *ShopHandler {
	return &ShopHandler{shopSvc: shopSvc}
}

// Nearby handles GET /api/v1/shops/nearby.
func (h *ShopHandler) Nearby(c *gin.Context) {
	var q dto.NearbyQuery
	if !bindQuery(c, &q) {
		return
	}

	shops, err := h.shopSvc.SearchNearby(c.Request.Context(), ports.NearbyQuery{
		Point:          geo.Point{Longitude: *q.Longitude, Latitude: *q.Latitude},
		RadiusMeters:   q.MaxDistance,
		SortByDistance: q.Sort == "distance",
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, shops)
}
