package http

import (
	"dancebattle/internal/core/ports"
	"dancebattle/internal/core/services"
	"dancebattle/internal/infrastructure/middleware"
	"dancebattle/internal/infrastructure/monitoring"
	"dancebattle/pkg/config"
	"dancebattle/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Config    *config.Config
	Rooms     ports.RoomService
	Signaling ports.SignalingService
	Tokens    services.PlayerTokenService
	Relay     ports.WebSocketHandler
	Health    *monitoring.HealthChecker

	// Metrics and Gatherer are optional; /metrics is served only with a Gatherer.
	Metrics  *monitoring.PrometheusCollector
	Gatherer prometheus.Gatherer

	Logger *zap.SugaredLogger
}

// ICEServersFromConfig converts the configured STUN/TURN servers.
func ICEServersFromConfig(cfg *config.Config) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	log := deps.Logger

	router := gin.New()

	var observer middleware.HTTPObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(log), observer),
		middleware.ErrorHandlerMiddleware(log),
		middleware.CORSMiddleware(cfg.Auth.AllowedOrigins),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	NewHealthHandler(deps.Health).SetupRoutes(router)
	if cfg.Monitoring.PrometheusEnabled && deps.Gatherer != nil {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	playerAuth := middleware.PlayerAuthMiddleware(deps.Tokens, cfg.Auth.RequirePlayerToken)

	NewRoomHandler(deps.Rooms, deps.Signaling, deps.Tokens, ICEServersFromConfig(cfg), cfg.Server.PublicURL, log).
		SetupRoutes(api, playerAuth)
	NewSimilarityHandler().SetupRoutes(api)
	NewPoseHandler(log).SetupRoutes(router, api)

	router.GET("/ws/rooms/:id", deps.Relay.HandleWebSocket)

	return router
}
