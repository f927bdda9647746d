package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/service"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/settings"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const principalKey = "principal"

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the operations exposed over HTTP
type Services struct {
	Sales     *service.SaleService
	Rewards   *service.RewardIssuer
	Orders    *service.OrderService
	Purchases *service.PurchaseService
	Reclaimer *service.Reclaimer
	Settings  *settings.Provider
}

// Handler contains HTTP handlers
type Handler struct {
	svc             Services
	principalHeader string
	readiness       map[string]Pinger
	logger          *zap.Logger
}

// NewHandler creates a new HTTP handler. The principal header carries the
// identity established by the upstream session layer.
func NewHandler(svc Services, principalHeader string, readiness map[string]Pinger) *Handler {
	return &Handler{
		svc:             svc,
		principalHeader: principalHeader,
		readiness:       readiness,
		logger:          util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.requirePrincipal())
	{
		v1.POST("/sales", h.createSale)
		v1.GET("/sales/:id", h.getSale)

		v1.POST("/rewards/:code/redeem", h.redeemReward)

		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/status", h.advanceOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)

		v1.POST("/purchase-orders/:id/receive", h.receivePurchaseOrder)

		admin := v1.Group("/admin")
		admin.POST("/reclaim", h.reclaim)
		admin.POST("/settings/invalidate", h.invalidateSettings)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(gin.H, len(h.readiness))
	ready := true
	for name, dep := range h.readiness {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// requirePrincipal rejects requests that arrive without an authenticated user
func (h *Handler) requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := c.GetHeader(h.principalHeader)
		if principal == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Unauthenticated", "authenticated user required", 0))
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

// createSale handles POS checkout
func (h *Handler) createSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.Sales.CreateSale(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getSale handles get sale by ID
func (h *Handler) getSale(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	sale, items, err := h.svc.Sales.GetSale(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sale":  sale,
		"items": items,
	})
}

func (h *Handler) redeemReward(c *gin.Context) {
	rc, err := h.svc.Rewards.Redeem(c.Request.Context(), c.Param("code"), principal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rc)
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if !h.bind(c, &req) {
		return
	}

	detail, err := h.svc.Orders.PlaceOrder(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	detail, err := h.svc.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type advanceOrderRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) advanceOrder(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var req advanceOrderRequest
	if !h.bind(c, &req) {
		return
	}

	order, err := h.svc.Orders.AdvanceOrder(c.Request.Context(), principal(c), id, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}

	order, err := h.svc.Orders.CancelOrder(c.Request.Context(), principal(c), id, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) receivePurchaseOrder(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	result, err := h.svc.Purchases.ReceivePurchaseOrder(c.Request.Context(), id, principal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reclaimRequest struct {
	// HoursThreshold overrides the configured threshold when present; 0 takes
	// every Pending order.
	HoursThreshold *int `json:"hours_threshold"`
}

func (h *Handler) reclaim(c *gin.Context) {
	var req reclaimRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}

	var (
		result *service.ReclaimResult
		err    error
	)
	if req.HoursThreshold == nil {
		result, err = h.svc.Reclaimer.AutoCancelStale(c.Request.Context())
	} else {
		result, err = h.svc.Reclaimer.AutoCancel(c.Request.Context(), time.Duration(*req.HoursThreshold)*time.Hour)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) invalidateSettings(c *gin.Context) {
	if err := h.svc.Settings.Invalidate(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("Settings invalidated", zap.String("by", principal(c)))
	c.Status(http.StatusNoContent)
}

func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(string(service.KindInvalidRequest), "invalid request body: "+err.Error(), 0))
		return false
	}
	return true
}

func (h *Handler) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorBody(string(service.KindInvalidRequest), "invalid id", 0))
		return 0, false
	}
	return id, true
}

// fail writes err as a JSON error. Domain errors keep their kind and message;
// anything else is logged and reported as an internal error.
func (h *Handler) fail(c *gin.Context, err error) {
	e, ok := service.AsError(err)
	if !ok {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("Internal", "internal error", 0))
		return
	}
	c.JSON(statusFor(e.Kind), errorBody(string(e.Kind), e.Error(), e.ProductID))
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindItemNotFound, service.KindRewardNotFound:
		return http.StatusNotFound
	case service.KindInsufficientStock, service.KindDuplicateReference, service.KindInvalidTransition,
		service.KindAlreadyReceived, service.KindRewardAlreadyRedeemed, service.KindRewardExpired:
		return http.StatusConflict
	case service.KindDiscountIneligible:
		return http.StatusUnprocessableEntity
	case service.KindCartEmpty, service.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(kind, message string, productID int64) gin.H {
	body := gin.H{"kind": kind, "message": message}
	if productID != 0 {
		body["product_id"] = productID
	}
	return gin.H{"error": body}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
