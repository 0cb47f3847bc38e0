package api

import (
	"net/http"
	"strconv"
	"strings"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"
	"dinein-service/internal/service"
	"dinein-service/internal/store"

	"github.com/gin-gonic/gin"
)

type couponRequest struct {
	Code string `json:"code" binding:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type availabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" binding:"required"`
}

func (h *Handler) validateScan(c *gin.Context) {
	var req service.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.Sessions.ValidateScan(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (h *Handler) getSession(c *gin.Context) {
	session, err := h.Sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, session)
}

func (h *Handler) applyCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.Sessions.ApplyCoupon(c.Request.Context(), c.Param("id"), req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (h *Handler) cancelSession(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	session, err := h.Sessions.CancelSession(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, session)
}

func requireQuery(c *gin.Context, key string) (string, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return "", apperr.Wrap(apperr.ErrInvalidInput, "query parameter %s is required", key)
	}
	return v, nil
}

func (h *Handler) getCart(c *gin.Context) {
	sessionID, err := requireQuery(c, "sessionId")
	if err != nil {
		h.fail(c, err)
		return
	}

	cart, err := h.Carts.GetCart(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	item, err := h.Carts.AddItem(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, item)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	item, err := h.Carts.UpdateQuantity(c.Request.Context(), c.Param("id"), *req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	if item == nil {
		respond(c, http.StatusOK, gin.H{"removed": true})
		return
	}
	respond(c, http.StatusOK, item)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	if err := h.Carts.RemoveItem(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"removed": true})
}

func (h *Handler) clearCart(c *gin.Context) {
	sessionID, err := requireQuery(c, "sessionId")
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.Carts.Clear(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"cleared": true})
}

// placeOrder honours the Idempotency-Key header when the body has no key
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.Orders.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	filter := store.OrderFilter{
		RestaurantID: c.Query("restaurantId"),
		SessionID:    c.Query("sessionId"),
		Status:       models.OrderStatus(strings.ToUpper(c.Query("status"))),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.fail(c, apperr.Wrap(apperr.ErrInvalidInput, "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	orders, err := h.Orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.Orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.Status = models.OrderStatus(strings.ToUpper(string(req.Status)))

	order, err := h.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) getMenu(c *gin.Context) {
	menu, err := h.Menu.GetMenu(c.Request.Context(), c.Param("restaurantId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, menu)
}

func (h *Handler) setAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	item, err := h.Menu.SetAvailability(c.Request.Context(), c.Param("id"), *req.IsAvailable)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, item)
}

func (h *Handler) submitFeedback(c *gin.Context) {
	var req service.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	feedback, err := h.Feedback.Submit(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, feedback)
}

func (h *Handler) tableQR(c *gin.Context) {
	png, err := h.QR.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}
