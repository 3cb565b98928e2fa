package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_WalletReload(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	userID := uuid.New()

	done := make(chan *domain.AuditLog, 1)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) { done <- entry },
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/wallet/:userId/reload", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/wallet/"+userID.String()+"/reload", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	select {
	case entry := <-done:
		assert.Equal(t, domain.AuditActionWalletReload, entry.Action)
		assert.Equal(t, "wallet", entry.ResourceType)
		assert.Equal(t, userID.String(), entry.ResourceID)
		if assert.NotNil(t, entry.ActorID) {
			assert.Equal(t, userID, *entry.ActorID)
		}
		assert.Equal(t, http.StatusOK, entry.StatusCode)
	case <-time.After(time.Second):
		t.Fatal("audit not called")
	}
}

func TestAuditLog_UsesResourceIDFromHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	orderID := uuid.NewString()

	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionPlaceOrder, entry.Action)
		assert.Equal(t, orderID, entry.ResourceID)
		assert.Nil(t, entry.ActorID)
	})

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/orders", func(c *gin.Context) {
		c.Set(CtxResourceID, orderID)
		c.Status(http.StatusCreated)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil))
}

func TestAuditLog_SkipsReadsAndFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	// No expectations: Log must not be called.

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/api/v1/wallet/:userId/balance", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/orders", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.POST("/api/v1/unaudited", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/wallet/"+uuid.NewString()+"/balance", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/unaudited", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func TestMapPathToAction(t *testing.T) {
	tests := []struct {
		route    string
		method   string
		action   domain.AuditAction
		resource string
	}{
		{"/api/v1/orders", "POST", domain.AuditActionPlaceOrder, "order"},
		{"/api/v1/orders/:id/status", "PUT", domain.AuditActionUpdateStatus, "order"},
		{"/api/v1/orders/:id/cancel", "PUT", domain.AuditActionCancelOrder, "order"},
		{"/api/v1/wallet/:userId/deduct", "POST", domain.AuditActionWalletDeduct, "wallet"},
		{"/api/v1/payment/webhook", "POST", domain.AuditActionPaymentWebhook, "payment"},
		{"/api/v1/admin/cleanup/menu-items", "POST", domain.AuditActionCleanup, "menu_item"},
		{"/api/v1/orders", "GET", "", ""},
		{"/unknown", "POST", "", ""},
	}

	for _, tc := range tests {
		action, resource := mapPathToAction(tc.route, tc.method)
		assert.Equal(t, tc.action, action, "route=%s method=%s", tc.route, tc.method)
		assert.Equal(t, tc.resource, resource, "route=%s method=%s", tc.route, tc.method)
	}
}
