package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action   domain.AuditAction
	resource string
}

// auditedRoutes maps route templates of mutating endpoints to audit actions.
var auditedRoutes = map[string]auditRoute{
	"POST /api/v1/orders":                   {domain.AuditActionPlaceOrder, "order"},
	"PUT /api/v1/orders/:id/status":         {domain.AuditActionUpdateStatus, "order"},
	"PUT /api/v1/orders/:id/cancel":         {domain.AuditActionCancelOrder, "order"},
	"POST /api/v1/wallet/:userId/reload":    {domain.AuditActionWalletReload, "wallet"},
	"POST /api/v1/wallet/:userId/deduct":    {domain.AuditActionWalletDeduct, "wallet"},
	"POST /api/v1/payment/initialize":       {domain.AuditActionPaymentInit, "payment"},
	"POST /api/v1/payment/order":            {domain.AuditActionPaymentInit, "order"},
	"POST /api/v1/payment/wallet/reload":    {domain.AuditActionPaymentInit, "wallet"},
	"POST /api/v1/payment/webhook":          {domain.AuditActionPaymentWebhook, "payment"},
	"POST /api/v1/admin/cleanup/all":        {domain.AuditActionCleanup, "maintenance"},
	"POST /api/v1/admin/cleanup/shops":      {domain.AuditActionCleanup, "shop"},
	"POST /api/v1/admin/cleanup/menu-items": {domain.AuditActionCleanup, "menu_item"},
	"POST /api/v1/admin/cleanup/users":      {domain.AuditActionCleanup, "user"},
}

// AuditLog records successful mutating requests once they have been served.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID(c),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID(c),
			Details:      string(details),
			IPAddress:    c.ClientIP(),
			StatusCode:   status,
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(route, method string) (domain.AuditAction, string) {
	r, ok := auditedRoutes[method+" "+route]
	if !ok {
		return "", ""
	}
	return r.action, r.resource
}

// actorID is the admin token subject or the wallet owner in the path.
func actorID(c *gin.Context) *uuid.UUID {
	for _, raw := range []string{c.GetString(CtxAdminSubject), c.Param("userId")} {
		if id, err := uuid.Parse(raw); err == nil {
			return &id
		}
	}
	return nil
}

func resourceID(c *gin.Context) string {
	if id := c.GetString(CtxResourceID); id != "" {
		return id
	}
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Param("userId")
}
