package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"dinein-service/internal/models"
	"dinein-service/internal/service"
	"dinein-service/internal/store"
	"dinein-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SessionAPI is the session manager as seen by the HTTP layer.
type SessionAPI interface {
	ValidateScan(ctx context.Context, req service.ScanRequest) (*service.ScanResult, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ApplyCoupon(ctx context.Context, sessionID, code string) (*service.CouponResult, error)
	CancelSession(ctx context.Context, sessionID, reason string) (*models.Session, error)
}

type CartAPI interface {
	AddItem(ctx context.Context, req service.AddItemRequest) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, itemID string) error
	Clear(ctx context.Context, sessionID string) error
	GetCart(ctx context.Context, sessionID string) (*service.CartView, error)
}

type OrderAPI interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, req service.UpdateStatusRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error)
}

type PaymentAPI interface {
	InitiatePayment(ctx context.Context, req service.InitiatePaymentRequest) (*models.Payment, error)
	ConfirmPayment(ctx context.Context, paymentID, transactionID string) (*service.Settlement, error)
	FailPayment(ctx context.Context, paymentID, reason string) (*models.Payment, error)
	ListPayments(ctx context.Context, sessionID string) ([]models.Payment, error)
	GenerateBill(ctx context.Context, sessionID string) (*models.Bill, error)
	GetBill(ctx context.Context, sessionID string) (*models.Bill, error)
}

type MenuAPI interface {
	GetMenu(ctx context.Context, restaurantID string) (*service.Menu, error)
	SetAvailability(ctx context.Context, menuItemID string, available bool) (*models.MenuItem, error)
}

type FeedbackAPI interface {
	Submit(ctx context.Context, req service.FeedbackRequest) (*models.Feedback, error)
}

// RoomSubscriber opens a pub/sub subscription on realtime rooms.
type RoomSubscriber interface {
	SubscribeRooms(ctx context.Context, rooms ...string) (*redis.PubSub, error)
}

// Marker de-duplicates webhook deliveries.
type Marker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ForgetMark(ctx context.Context, key string) error
}

// Deps are the collaborators of the HTTP handlers. Checks are run by the
// readiness check.
type Deps struct {
	Sessions SessionAPI
	Carts    CartAPI
	Orders   OrderAPI
	Payments PaymentAPI
	Menu     MenuAPI
	Feedback FeedbackAPI
	QR       service.QRGenerator
	Rooms    RoomSubscriber
	Marks    Marker
	Checks   map[string]func(context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		Deps:   deps,
		logger: util.ComponentLogger("http"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/scan/validate", h.validateScan)

		v1.GET("/sessions/:id", h.getSession)
		v1.POST("/sessions/:id/coupon", h.applyCoupon)
		v1.POST("/sessions/:id/cancel", h.cancelSession)
		v1.POST("/sessions/:id/bill", h.generateBill)
		v1.GET("/sessions/:id/bill", h.getBill)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart", h.addCartItem)
		v1.DELETE("/cart", h.clearCart)
		v1.PUT("/cart/items/:id", h.updateCartItem)
		v1.DELETE("/cart/items/:id", h.removeCartItem)

		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id/status", h.updateOrderStatus)

		v1.POST("/payments", h.initiatePayment)
		v1.GET("/payments", h.listPayments)
		v1.POST("/payments/:id/confirm", h.confirmPayment)
		v1.POST("/payments/:id/fail", h.failPayment)

		v1.GET("/menu/:restaurantId", h.getMenu)
		v1.PUT("/menu/items/:id/availability", h.setAvailability)

		v1.POST("/feedback", h.submitFeedback)
		v1.GET("/tables/:id/qr", h.tableQR)

		v1.GET("/stream", h.stream)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports not ready while any dependency check fails
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not ready",
				"dependency": name,
				"time":       time.Now().Unix(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}
		logger.Debug("Request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
