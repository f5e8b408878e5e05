package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/humanplus/posture-console/internal/auth"
	"github.com/humanplus/posture-console/internal/camera"
	"github.com/humanplus/posture-console/internal/config"
	"github.com/humanplus/posture-console/internal/docstore"
	"github.com/humanplus/posture-console/internal/docstore/memory"
	"github.com/humanplus/posture-console/internal/docstore/postgres"
	analysisHandler "github.com/humanplus/posture-console/internal/handler/analysis"
	authHandler "github.com/humanplus/posture-console/internal/handler/auth"
	cameraHandler "github.com/humanplus/posture-console/internal/handler/camera"
	"github.com/humanplus/posture-console/internal/handler/health"
	patientHandler "github.com/humanplus/posture-console/internal/handler/patient"
	preferencesHandler "github.com/humanplus/posture-console/internal/handler/preferences"
	promHandler "github.com/humanplus/posture-console/internal/handler/prometheus"
	visitHandler "github.com/humanplus/posture-console/internal/handler/visit"
	"github.com/humanplus/posture-console/internal/middleware"
	"github.com/humanplus/posture-console/internal/preferences"
	"github.com/humanplus/posture-console/internal/repository/document"
	"github.com/humanplus/posture-console/internal/router"
	analysisService "github.com/humanplus/posture-console/internal/service/analysis"
	patientService "github.com/humanplus/posture-console/internal/service/patient"
	visitService "github.com/humanplus/posture-console/internal/service/visit"
	"github.com/humanplus/posture-console/internal/stream"
	jwtauth "github.com/humanplus/posture-console/pkg/auth"
	"github.com/humanplus/posture-console/pkg/logger"
	"github.com/humanplus/posture-console/pkg/metrics"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of a password for auth.operators and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load configuration")
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	})

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Monitoring.Namespace, reg)

	checks := map[string]health.Checker{}

	// Initialize document store
	var store docstore.Store
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			log.Fatal(err, "failed to connect to database")
		}
		defer db.Close()

		pg := postgres.NewStore(db)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Fatal(err, "failed to migrate document store")
		}
		store = pg
		checks["database"] = pingDB(db)
	default:
		log.Warn("using in-memory document store, records are lost on restart")
		store = memory.NewStore()
	}
	store = docstore.WithMetrics(store, m)

	// Initialize repositories and services
	patientSvc := patientService.NewService(document.NewPatientRepository(store), log)
	visitSvc := visitService.NewService(document.NewVisitRepository(store), log)

	streamMgr := stream.NewManager(stream.Config{
		BaseURL:     cfg.Stream.BaseURL,
		BaseDelay:   cfg.Stream.BaseDelay,
		MaxAttempts: cfg.Stream.MaxAttempts,
	}, stream.NewWebsocketDialer(cfg.Stream.HandshakeTimeout),
		stream.WithLogger(log),
		stream.WithMetrics(m),
	)
	defer streamMgr.Disconnect()

	camClient := camera.NewClient(camera.Config{
		BaseURL:         cfg.Camera.BaseURL,
		Timeout:         cfg.Camera.Timeout,
		BreakerFailures: cfg.Camera.BreakerFailures,
		BreakerTimeout:  cfg.Camera.BreakerTimeout,
	}, log, m)

	analysisSvc := analysisService.NewService(visitSvc, camClient, streamMgr, log)

	// Auth
	listener := auth.NewListener()
	defer listener.Close()
	go logSessions(listener, log)

	operators := make([]auth.Operator, 0, len(cfg.Auth.Operators))
	for _, op := range cfg.Auth.Operators {
		operators = append(operators, auth.Operator{
			UID:          op.UID,
			Email:        op.Email,
			DisplayName:  op.DisplayName,
			PasswordHash: op.PasswordHash,
			Disabled:     op.Disabled,
		})
	}
	if len(operators) == 0 {
		log.Warn("no operators configured, sign-in will always fail")
	}
	provider := auth.NewLocalProvider(auth.LocalConfig{
		Operators:    operators,
		LoginRate:    rate.Limit(cfg.Auth.LoginRate),
		LoginBurst:   cfg.Auth.LoginBurst,
		LoginIdleTTL: cfg.Auth.LoginIdleTTL,
	}, jwtauth.NewJWTService(cfg.Secrets.JWTSecret, cfg.Auth.TokenExpiry), listener, log)

	// Preferences
	var kv preferences.KV = preferences.NewMemoryKV()
	if cfg.Redis.URL != "" {
		client, err := preferences.DialRedis(context.Background(), cfg.Redis.URL, cfg.Secrets.RedisPassword)
		if err != nil {
			log.Fatal(err, "failed to connect to Redis")
		}
		defer client.Close()
		kv = preferences.NewRedisKV(client, cfg.Redis.KeyPrefix)
		checks["redis"] = pingRedis(client)
	}
	prefsSvc := preferences.NewService(kv, log)

	// Initialize middleware
	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal(err, "failed to register validators")
	}
	authMiddleware := middleware.NewAuthMiddleware(provider)

	var metricsHandler *promHandler.Handler
	if cfg.Monitoring.PrometheusEnabled {
		metricsHandler = promHandler.New(reg, m)
	}

	// Setup router
	r := router.NewRouter(log, authMiddleware, metricsHandler, router.Handlers{
		Auth:        authHandler.NewHandler(provider, authMiddleware),
		Health:      health.NewHandler(checks),
		Patient:     patientHandler.NewHandler(patientSvc, visitSvc),
		Visit:       visitHandler.NewHandler(visitSvc),
		Camera:      cameraHandler.NewHandler(camClient),
		Analysis:    analysisHandler.NewHandler(analysisSvc, streamMgr, cfg.CORS.AllowedOrigins, log),
		Preferences: preferencesHandler.NewHandler(prefsSvc),
	}, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		CORSConfig:       middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins...),
		MetricsPath:      cfg.Monitoring.MetricsPath,
		RequireTokenOnWS: cfg.Auth.RequireTokenOnWS,
	})
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r.Engine(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout is left unset so the live relay is not cut off.
	}

	// Start server
	go func() {
		log.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	// Release the camera if a session is still running.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	analysisSvc.Stop(ctx)

	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}

func pingDB(db *sqlx.DB) health.Checker {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func pingRedis(client *redis.Client) health.Checker {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func logSessions(l *auth.Listener, log *logger.Logger) {
	sub := l.Subscribe()
	defer sub.Close()
	for ev := range sub.Events() {
		if ev.User == nil {
			log.Info("operator signed out")
			continue
		}
		log.Info("operator signed in", "uid", ev.User.UID)
	}
}
