// Package server assembles the application: infrastructure, services,
// middleware, and routes, plus the graceful shutdown sequence.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/api"
	"github.com/Abhi1997-1/Lumen-sub000/internal/config"
	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/apikeys"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/circuitbreaker"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/database"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/meetings"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/middleware"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/provider"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/storage"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/usage"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

const creditsResetInterval = time.Hour

// Server is one application instance.
type Server struct {
	config *config.Config
	app    *fiber.App
	db     *database.DB
	redis  *redis.Client

	usageWorker  *usage.Worker
	scheduler    *usage.CreditsResetScheduler
	orchestrator *meetings.Orchestrator
	handlers     handlerSet
}

func New(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create config")
	}
	return &Server{config: cfg}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	setupLogLevel(s.config)

	listenAddr := ":" + s.config.Server.Port

	db, err := database.New(s.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db
	defer func() {
		if err := s.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}()

	if s.config.Redis != nil && s.config.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.config.Redis.Addr,
			Password: s.config.Redis.Password,
			DB:       s.config.Redis.DB,
		})
		defer func() {
			if err := s.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}

	if err := s.setupServices(); err != nil {
		return err
	}
	defer s.usageWorker.Stop()

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go s.scheduler.Start(schedulerCtx)

	s.app = createFiberApp(s.config)
	s.setupMiddleware()
	s.setupRoutes()

	fmt.Printf("Lumen starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	fiberlog.Info("Server shutting down gracefully...")
	if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	// Let in-flight transcription jobs land their terminal state before the
	// usage worker drains.
	s.orchestrator.Wait()
	fiberlog.Info("Server shutdown completed successfully")
	return nil
}

func (s *Server) setupServices() error {
	gormDB := s.db.DB

	meetingService := meetings.NewService(gormDB)
	rateLimitService := usage.NewRateLimitService(gormDB)
	tracker := usage.NewTracker(gormDB)
	usageService := usage.NewService(gormDB, rateLimitService)

	for _, migrate := range []func() error{
		meetingService.AutoMigrate,
		rateLimitService.AutoMigrate,
		tracker.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	systemKeys := make(map[string]string, len(s.config.Providers))
	for id := range s.config.Providers {
		if key := s.config.SystemAPIKey(id); key != "" {
			systemKeys[id] = key
		}
	}
	keyService, err := apikeys.NewService(gormDB, s.config.Auth.KeyEncryptionSecret, systemKeys, s.config.Pipeline.DefaultProvider)
	if err != nil {
		return fmt.Errorf("failed to initialize key service: %w", err)
	}
	if err := keyService.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run key migrations: %w", err)
	}

	breakers := make(map[string]*circuitbreaker.CircuitBreaker)
	if s.redis != nil {
		for _, id := range []string{models.ProviderGemini, models.ProviderOpenAI, models.ProviderGroq, models.ProviderGrok} {
			breakers[id] = circuitbreaker.New(s.redis, id, circuitbreaker.DefaultConfig())
		}
	}

	s.usageWorker = usage.NewWorker(tracker, s.config.Pipeline.UsageWorkerPoolSize, s.config.Pipeline.UsageWorkerBuffer)
	s.scheduler = usage.NewCreditsResetScheduler(gormDB, creditsResetInterval)
	s.orchestrator = meetings.NewOrchestrator(
		s.config,
		meetingService,
		rateLimitService,
		tracker,
		s.usageWorker,
		keyService,
		provider.NewRegistry(s.config.Providers),
		storage.NewClient(),
		breakers,
	)

	s.handlers = handlerSet{
		meetings: api.NewMeetingHandler(meetingService, s.orchestrator),
		usage:    api.NewUsageHandler(usageService),
		keys:     api.NewKeyHandler(keyService),
		health:   api.NewHealthHandler(gormDB, s.redis),
	}
	return nil
}

type handlerSet struct {
	meetings *api.MeetingHandler
	usage    *api.UsageHandler
	keys     *api.KeyHandler
	health   *api.HealthHandler
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New())

	allowedOrigins := s.config.Server.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handlers.health.HealthCheck)

	auth := middleware.NewAuthMiddleware(s.config.Auth)
	s.app.Use("/v1", auth.RequireAuth())

	s.handlers.meetings.RegisterRoutes(s.app, "/v1/meetings")
	s.handlers.usage.RegisterRoutes(s.app, "/v1/usage")
	s.handlers.keys.RegisterRoutes(s.app, "/v1/keys")
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := strings.EqualFold(cfg.Server.Environment, "production")

	return fiber.New(fiber.Config{
		AppName:           "Lumen v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		BodyLimit:         4 * 1024 * 1024,
		ServerHeader:      "Lumen",
	})
}

func setupLogLevel(cfg *config.Config) {
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "warn":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
	}
}
