package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/api/handlers"
	"github.com/maheshrc27/socialdash/internal/api/middleware"
	job "github.com/maheshrc27/socialdash/internal/jobs"
	"github.com/maheshrc27/socialdash/internal/queue"
	"github.com/maheshrc27/socialdash/internal/ratelimit"
	"github.com/maheshrc27/socialdash/internal/repository"
	"github.com/maheshrc27/socialdash/internal/service"
	"github.com/maheshrc27/socialdash/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	setupLogger(cfg.Env)

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	ctx := context.Background()
	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer redisClient.Close()

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	socialAccountRepo := repository.NewSocialAccountRepository(db, cfg.SecretKey)
	postRepo := repository.NewScheduledPostRepository(db)
	historyRepo := repository.NewPostingHistoryRepository(db)

	tokenService := service.NewTokenService(*cfg, socialAccountRepo, httpClient)
	mediaService, err := service.NewMediaService(ctx, *cfg)
	if err != nil {
		log.Fatalf("Failed to configure media storage: %v", err)
	}
	limiter := ratelimit.NewTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Refill, time.Hour)
	publishers := service.NewPublishers(*cfg, httpClient, tokenService)
	publishService := service.NewPublishService(tokenService, publishers, limiter, mediaService, cfg.Executor.Concurrency)
	relayService := service.NewRelayService(*cfg)
	platformService := service.NewPlatformService(*cfg, socialAccountRepo, httpClient)
	postService := service.NewScheduledPostService(postRepo, socialAccountRepo)

	executor := job.NewPostExecutor(postRepo, historyRepo, publishService, relayService, mediaService, job.PostExecutorOptions{
		BatchSize:    cfg.Executor.BatchSize,
		Concurrency:  cfg.Executor.Concurrency,
		StaleAfter:   cfg.Executor.StaleAfter,
		ClaimTimeout: cfg.Executor.ClaimTimeout,
	})

	var asynqServer *asynq.Server
	if cfg.Executor.Mode == "asynq" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		client := asynq.NewClient(redisConn)
		defer client.Close()
		executor.UseQueue(queue.NewQueue(client))

		asynqServer = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.Executor.Concurrency,
		})
		mux := asynq.NewServeMux()
		queue.NewWorker(executor).Register(mux)

		go func() {
			slog.Info("starting the asynq server")
			if err := asynqServer.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		BodyLimit:    25 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error(err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	health := handlers.NewHealthHandler(db)
	app.Get("/healthz", health.Health)
	app.Get("/metrics", adaptor.HTTPHandler(telemetry.Handler()))

	platform := handlers.NewPlatformHandler(platformService, *cfg)
	app.Get("/auth/:platform", platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Get("/accounts/connect/:platform", platform.ConnectURL)
	api.Post("/accounts/remove", platform.DeleteSocialAccount)
	api.Post("/accounts/revoke", platform.RevokeSocialAccount)

	publish := handlers.NewPublishHandler(platformService, publishService)
	api.Post("/publish", publish.Publish)

	post := handlers.NewPostHandler(postService)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Post("/posts/remove", post.RemovePost)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media", media.Upload)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(tokenService, cfg.TokenSweep.Window)

	c := cron.New()
	if err := c.AddFunc(cfg.Executor.Schedule, executor.Tick); err != nil {
		log.Fatalf("Invalid executor schedule: %v", err)
	}
	if err := c.AddFunc(cfg.TokenSweep.Schedule, refreshTokenJob.RefreshTokens); err != nil {
		log.Fatalf("Invalid token sweep schedule: %v", err)
	}
	c.Start()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("server is running", "port", cfg.Port, "executor_mode", cfg.Executor.Mode)

	gracefulShutdown(app, c, asynqServer)
}

func setupLogger(env string) {
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, asynqServer *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("shutting down server")

	c.Stop()
	if asynqServer != nil {
		asynqServer.Shutdown()
	}

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	slog.Info("server shutdown complete")
}
