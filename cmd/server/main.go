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
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/walkumentary/api/internal/cache"
	"github.com/walkumentary/api/internal/config"
	"github.com/walkumentary/api/internal/handler"
	"github.com/walkumentary/api/internal/middleware"
	"github.com/walkumentary/api/internal/provider"
	"github.com/walkumentary/api/internal/service"
	"github.com/walkumentary/api/internal/worker"
	"github.com/walkumentary/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize provider adapters
	openaiClient := provider.NewOpenAIClient(&cfg.OpenAI, cfg.Generation.MaxTTSChars)
	anthropicClient := provider.NewAnthropicClient(&cfg.Anthropic)

	textFallback := buildTextFallback(cfg.Generation.TextProviders, openaiClient, anthropicClient)
	audioFallback := provider.NewAudioFallback(openaiClient)

	// Initialize services around the shared cache store
	store := cache.NewRedisStore(redisClient)
	generationService := service.NewGenerationService(
		store, textFallback, audioFallback,
		openaiClient.TTSModel(),
		cfg.Generation.ContentTTL, cfg.Generation.AudioTTL,
	)
	tourService := service.NewTourService(store, asynqClient)
	costService := service.NewCostService(store, firstProvider(cfg.Generation.TextProviders))

	// Initialize handlers and middleware
	tourHandler := handler.NewTourHandler(tourService, costService, validate)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Range",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"openai":    openaiClient.IsConfigured(),
				"anthropic": anthropicClient.IsConfigured(),
				"redis":     redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// API routes
	api := app.Group("/api")
	tours := api.Group("/tours")
	tours.Post("/", rateLimiter.TourLimit(cfg.RateLimit.ToursPerHour), tourHandler.Create)
	tours.Post("/estimate", rateLimiter.EstimateLimit(cfg.RateLimit.EstimatesPerMin), tourHandler.Estimate)
	tours.Get("/:id", tourHandler.Get)
	tours.Get("/:id/status", tourHandler.Status)
	tours.Get("/:id/audio", tourHandler.Audio)

	// Unauthenticated stream endpoint for plain audio clients
	app.Get("/jobs/:id/audio", tourHandler.Audio)

	// Start Asynq worker server
	go startWorkerServer(cfg, tourService, generationService)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, tourService *service.TourService, generationService *service.GenerationService) {
	asynqLogLevel := asynq.InfoLevel
	switch {
	case strings.EqualFold(cfg.Server.LogLevel, "debug"):
		asynqLogLevel = asynq.DebugLevel
	case strings.EqualFold(cfg.Server.LogLevel, "warn"):
		asynqLogLevel = asynq.WarnLevel
	case strings.EqualFold(cfg.Server.LogLevel, "error"):
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"tours": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	tourWorker := worker.NewTourWorker(
		tourService, generationService,
		cfg.Generation.Voice, cfg.Generation.Speed, cfg.Generation.AudioTimeout,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeTourGenerate, tourWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

// buildTextFallback assembles the text provider chain in configured
// priority order; unknown names are skipped with a warning.
func buildTextFallback(order []string, openaiClient *provider.OpenAIClient, anthropicClient *provider.AnthropicClient) *provider.TextFallback {
	var chain []provider.TextGenerator
	for _, name := range order {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "openai":
			chain = append(chain, openaiClient)
		case "anthropic":
			chain = append(chain, anthropicClient)
		default:
			log.Printf("Warning: unknown text provider %q, skipping", name)
		}
	}
	return provider.NewTextFallback(chain...)
}

func firstProvider(order []string) string {
	for _, name := range order {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			return name
		}
	}
	return "openai"
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(response.ErrorResponse{
		Error: response.ErrorDetail{
			Code:    response.CodeServiceError,
			Message: message,
		},
	})
}
