package handler

import (
	"shipa-backend/internal/adapter/http/dto"
	"shipa-backend/internal/adapter/http/middleware"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"
	"shipa-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// OrderHandler handles order placement and lifecycle endpoints.
type OrderHandler struct {
	orderSvc ports.OrderService
}

func NewOrderHandler(orderSvc ports.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// PlaceOrder handles POST /api/v1/orders.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if key != "" && !dto.ValidIdempotencyKey(key) {
		response.Error(c, apperror.Validation("Idempotency-Key must be at most 128 characters of [A-Za-z0-9_-.:]"))
		return
	}

	var req dto.PlaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderSvc.PlaceOrder(c.Request.Context(), req.ToPort(key))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, order.ID.String())
	response.Created(c, order)
}

// GetOrder handles GET /api/v1/orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// ListByCustomer handles GET /api/v1/orders/customer/:customerId.
func (h *OrderHandler) ListByCustomer(c *gin.Context) {
	id, ok := pathID(c, "customerId")
	if !ok {
		return
	}
	h.list(c, ports.OrderListParams{CustomerID: &id})
}

// ListByShop handles GET /api/v1/orders/shop/:shopId.
func (h *OrderHandler) ListByShop(c *gin.Context) {
	id, ok := pathID(c, "shopId")
	if !ok {
		return
	}
	h.list(c, ports.OrderListParams{ShopID: &id})
}

func (h *OrderHandler) list(c *gin.Context, params ports.OrderListParams) {
	var q dto.OrderListQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Status != "" {
		status := domain.OrderStatus(q.Status)
		params.Status = &status
	}
	params.Page, params.PageSize = q.Page, q.Limit

	orders, total, err := h.orderSvc.ListOrders(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, orders, response.NewPagination(q.Page, q.Limit, total))
}

// UpdateStatus handles PUT /api/v1/orders/:id/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderSvc.UpdateStatus(c.Request.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// CancelOrder handles PUT /api/v1/orders/:id/cancel. The body is optional.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelOrderRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	order, err := h.orderSvc.CancelOrder(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

