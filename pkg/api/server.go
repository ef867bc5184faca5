package api

import (
	"fmt"
	"net/http"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/orders"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/webhook"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wires the order, cart, payment and webhook services into the HTTP
// surface.
type Server struct {
	config       *config.Config
	logger       *zap.Logger
	router       *gin.Engine
	redis        *repository.RedisRepository
	carts        *cart.Service
	orders       *orders.Service
	orchestrator *payment.Orchestrator
	reconciler   *webhook.Reconciler
}

func NewServer(cfg *config.Config, logger *zap.Logger, redis *repository.RedisRepository,
	carts *cart.Service, orderSvc *orders.Service, orchestrator *payment.Orchestrator,
	reconciler *webhook.Reconciler) *Server {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(metricsMiddleware())

	return &Server{
		config:       cfg,
		logger:       logger,
		router:       router,
		redis:        redis,
		carts:        carts,
		orders:       orderSvc,
		orchestrator: orchestrator,
		reconciler:   reconciler,
	}
}

func (s *Server) SetupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Webhooks are provider-authenticated via signature, not user identity.
	s.router.POST("/webhooks/payment", s.paymentWebhook)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	v1.Use(authMiddleware())
	{
		ordersGroup := v1.Group("/orders")
		{
			ordersGroup.POST("", s.throttled(), s.createOrder)
			ordersGroup.GET("", s.listOrders)
			ordersGroup.GET("/:id", s.getOrder)
			ordersGroup.PATCH("/:id/cancel", s.cancelOrder)
			// Orders are immutable once created, aside from cancel.
			ordersGroup.PUT("/:id", methodNotAllowed)
			ordersGroup.PATCH("/:id", methodNotAllowed)
			ordersGroup.DELETE("/:id", methodNotAllowed)
		}

		cartGroup := v1.Group("/cart")
		{
			cartGroup.GET("", s.getCart)
			cartGroup.PUT("", s.putCartItem)
			cartGroup.DELETE("/:product_id", s.removeCartItem)
		}

		methods := v1.Group("/payment/methods")
		{
			methods.POST("", s.attachPaymentMethod)
			methods.GET("", s.listPaymentMethods)
			methods.DELETE("/:id", s.detachPaymentMethod)
		}
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.Info("API server starting", zap.String("address", addr))
	return s.router.Run(addr)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) throttled() gin.HandlerFunc {
	return throttleMiddleware(s.redis, &s.config.Throttle, s.logger)
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"detail": "Method not allowed."})
}
