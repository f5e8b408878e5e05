package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	analysish "github.com/humanplus/posture-console/internal/handler/analysis"
	"github.com/humanplus/posture-console/internal/handler/prometheus"
	"github.com/humanplus/posture-console/internal/middleware"
	"github.com/humanplus/posture-console/pkg/logger"
)

const defaultMaxBodyBytes = 1 << 20

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	config  RouterConfig
	metrics *prometheus.Handler

	authH        Handler
	healthH      Handler
	patientH     Handler
	visitH       Handler
	cameraH      Handler
	analysisH    *analysish.Handler
	preferencesH Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	MaxBodyBytes     int64
	// MetricsPath empty disables the metrics endpoint.
	MetricsPath      string
	RequireTokenOnWS bool
}

// Handlers groups the resource handlers mounted under /api.
type Handlers struct {
	Auth        Handler
	Health      Handler
	Patient     Handler
	Visit       Handler
	Camera      Handler
	Analysis    *analysish.Handler
	Preferences Handler
}

func NewRouter(
	log *logger.Logger,
	auth *middleware.AuthMiddleware,
	metrics *prometheus.Handler,
	handlers Handlers,
	config RouterConfig,
) *Router {
	engine := gin.New()

	if log == nil {
		log = logger.Nop()
	}

	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}

	r := &Router{
		engine:       engine,
		auth:         auth,
		config:       config,
		metrics:      metrics,
		authH:        handlers.Auth,
		healthH:      handlers.Health,
		patientH:     handlers.Patient,
		visitH:       handlers.Visit,
		cameraH:      handlers.Camera,
		analysisH:    handlers.Analysis,
		preferencesH: handlers.Preferences,
	}

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
	)
	if metrics != nil {
		engine.Use(metrics.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.Use(middleware.BodyLimit(config.MaxBodyBytes))

	return r
}

func (r *Router) Setup() {
	if r.metrics != nil && r.config.MetricsPath != "" {
		r.engine.GET(r.config.MetricsPath, r.metrics.Handler())
	}

	api := r.engine.Group("/api")

	// Public routes
	r.healthH.RegisterRoutes(api)
	r.authH.RegisterRoutes(api)

	// The relay authenticates itself so browsers can pass ?token=.
	var live []gin.HandlerFunc
	if r.config.RequireTokenOnWS {
		live = append(live, r.auth.Authenticate(true))
	}
	r.analysisH.RegisterLive(api, live...)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate(false))
	r.setupProtectedRoutes(protected)
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	r.patientH.RegisterRoutes(rg)
	r.visitH.RegisterRoutes(rg)
	r.cameraH.RegisterRoutes(rg)
	r.analysisH.RegisterRoutes(rg)
	r.preferencesH.RegisterRoutes(rg)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
