package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/eldara-server/internal/auth"
	"github.com/annel0/eldara-server/internal/eventbus"
	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/middleware"
	"github.com/annel0/eldara-server/internal/network"
	"github.com/annel0/eldara-server/internal/session"
	"github.com/annel0/eldara-server/internal/world"
	"github.com/annel0/eldara-server/internal/world/entity"
	"github.com/annel0/eldara-server/internal/world/zone"
)

// WorldSource подсистемы, из которых REST API собирает статус мира.
// Любое поле может быть nil, тогда соответствующий раздел пуст.
type WorldSource struct {
	Router     *session.Router
	Entities   *entity.Manager
	Zones      *zone.Directory
	Simulation *world.Simulation
	Network    *network.NetworkMetrics
	Bus        eventbus.EventBus
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr       string // адрес для запуска сервера
	ServerName string
	Region     string
	MaxPlayers int
	Auth       *auth.Authenticator
	World      WorldSource
	Webhooks   WebhookConfig
}

// RestServer представляет REST API сервер
type RestServer struct {
	cfg      Config
	router   *gin.Engine
	metrics  *ServerMetrics
	webhooks *WebhookHandler
	outbound *OutboundWebhookManager
	http     *http.Server
	logger   *logging.Logger
}

// NewRestServer создаёт REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "eldara"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewRequestLogger().Handler())
	router.Use(otelgin.Middleware("rest_api"))

	promMw := middleware.NewPrometheusMiddleware("rest_api")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	rs := &RestServer{
		cfg:      cfg,
		router:   router,
		metrics:  NewServerMetrics(),
		webhooks: NewWebhookHandler(cfg.Webhooks),
		outbound: NewOutboundWebhookManager(cfg.ServerName, cfg.World.Bus),
		logger:   logging.GetComponentLogger("rest"),
	}
	rs.webhooks.RegisterEventHandler(WebhookAnnounce, rs.handleAnnounceEvent)
	rs.setupRoutes()
	return rs
}

// Handler HTTP обработчик (для тестов через httptest)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Outbound менеджер исходящих webhook'ов
func (rs *RestServer) Outbound() *OutboundWebhookManager { return rs.outbound }

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.POST("/auth/login", rs.handleLogin)
	api.POST("/webhook", rs.handleWebhook)

	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/world/status", rs.handleWorldStatus)
		protected.GET("/world/zones", rs.handleZones)
		protected.GET("/world/players", rs.handlePlayers)

		admin := protected.Group("/admin")
		admin.Use(rs.adminMiddleware())
		{
			admin.POST("/announce", rs.handleAnnounce)
			admin.GET("/webhooks", rs.handleGetOutboundWebhooks)
			admin.POST("/webhooks", rs.handleCreateOutboundWebhook)
			admin.DELETE("/webhooks/:id", rs.handleDeleteOutboundWebhook)
			admin.GET("/webhooks/events", rs.handleGetWebhookEventTypes)
		}
	}
}

// Start запускает HTTP сервер в фоне и подписывает исходящие webhook'и на шину
func (rs *RestServer) Start() error {
	if err := rs.outbound.Start(); err != nil {
		return fmt.Errorf("подписка webhook'ов: %w", err)
	}

	ln, err := net.Listen("tcp", rs.cfg.Addr)
	if err != nil {
		rs.outbound.Stop()
		return fmt.Errorf("ошибка запуска REST API на %s: %w", rs.cfg.Addr, err)
	}
	rs.http = &http.Server{
		Handler:           rs.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := rs.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.logger.Error("❌ REST API остановлен с ошибкой: %v", err)
		}
	}()
	rs.logger.Info("🌐 REST API слушает %s", ln.Addr())
	return nil
}

// Stop останавливает HTTP сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	rs.outbound.Stop()
	if rs.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return rs.http.Shutdown(ctx)
}
