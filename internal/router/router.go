package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/medgrid/dispatch-api/internal/handler"
	"github.com/medgrid/dispatch-api/internal/middleware"
)

// Handler is anything that can mount its routes on an API group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	CORS           middleware.CORSConfig
}

type Router struct {
	engine     *gin.Engine
	health     *handler.Health
	emergencyH Handler
	hospitalH  Handler
	streamH    Handler
}

func New(
	health *handler.Health,
	emergencyH Handler,
	hospitalH Handler,
	streamH Handler,
	logger zerolog.Logger,
	cfg Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.CORS(cfg.CORS),
	)
	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:     engine,
		health:     health,
		emergencyH: emergencyH,
		hospitalH:  hospitalH,
		streamH:    streamH,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	health := api.Group("/health")
	{
		health.GET("/live", r.health.Liveness)
		health.GET("/ready", r.health.Readiness)
		health.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.emergencyH.RegisterRoutes(api)
	r.hospitalH.RegisterRoutes(api)
	r.streamH.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
