package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/qdispatch/api/internal/backend"
	"github.com/qdispatch/api/internal/client"
	"github.com/qdispatch/api/internal/config"
	"github.com/qdispatch/api/internal/handler"
	"github.com/qdispatch/api/internal/middleware"
	"github.com/qdispatch/api/internal/registry"
	"github.com/qdispatch/api/internal/service"
	"github.com/qdispatch/api/internal/worker"
	ws "github.com/qdispatch/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client (rate limiting only — jobs live in memory)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, rate limiting disabled: %v", err)
		redisClient = nil
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize storage for circuit sources and result documents
	var store client.StorageClient
	if strings.EqualFold(cfg.Storage.Backend, "s3") {
		store, err = client.NewS3Store(&cfg.S3)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
	} else {
		store, err = client.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			log.Fatalf("Failed to initialize file storage: %v", err)
		}
	}

	// Initialize hardware provider clients
	ibmClient := client.NewIBMClient(&cfg.IBM)
	googleClient := client.NewGoogleClient(&cfg.Google)

	var braketClient *client.BraketClient
	if cfg.AWS.AccessKeyID != "" && cfg.AWS.SecretAccessKey != "" {
		braketClient, err = client.NewBraketClient(&cfg.AWS)
		if err != nil {
			log.Printf("Warning: Braket client not initialized: %v", err)
		}
	} else {
		log.Println("Info: AWS Braket credentials not configured")
	}

	// Build the adapter catalog
	catalog := backend.NewCatalog()
	catalog.Register(backend.NewQiskitSimulator())
	catalog.Register(backend.NewCirqSimulator())
	catalog.Register(backend.NewBraketSimulator())
	catalog.RegisterHardware(backend.NewIBMHardware(ibmClient))
	catalog.RegisterHardware(backend.NewAWSHardware(braketClient, &cfg.AWS))
	catalog.RegisterHardware(backend.NewGoogleHardware(googleClient))
	for _, name := range cfg.Executor.DisabledProviders {
		log.Printf("Info: provider %s disabled by configuration", name)
		catalog.Disable(name)
	}

	// Initialize job registry and worker pool
	jobs := registry.New()
	pool := worker.NewPool(cfg.Executor.MaxConcurrent, cfg.Executor.QueueSize)

	// Initialize the dispatch engine
	executor := service.NewExecutorService(
		jobs, catalog, store, hub, pool,
		time.Duration(cfg.Executor.PollIntervalSeconds)*time.Second,
		time.Duration(cfg.Executor.PollTimeoutSeconds)*time.Second,
	)

	// Initialize handlers
	circuitsHandler := handler.NewCircuitsHandler(executor, validate)
	authHandler := handler.NewAuthHandler(cfg.JWT.Secret)

	// Initialize auth middleware
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(cfg.JWT.Secret).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB, circuits are text
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"ibm":    ibmClient.IsConfigured(),
				"aws":    braketClient != nil,
				"google": googleClient.IsConfigured(),
				"redis":  redisClient != nil,
				"auth":   cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Circuit routes
	circuits := api.Group("/circuits")
	circuits.Post("/execute", rateLimiter.ExecuteLimit(cfg.RateLimit.ExecutePerHour), circuitsHandler.Execute)
	circuits.Get("/providers", circuitsHandler.Providers)
	circuits.Get("/jobs/:jobId", circuitsHandler.Status)
	circuits.Get("/jobs/:jobId/result", circuitsHandler.Result)
	circuits.Post("/jobs/:jobId/cancel", circuitsHandler.Cancel)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		pool.Shutdown()
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
