package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
	"github.com/holotutor/hub-server-go/internal/external"
	"github.com/holotutor/hub-server-go/internal/handler"
	"github.com/holotutor/hub-server-go/internal/jobs"
	"github.com/holotutor/hub-server-go/internal/middleware"
	"github.com/holotutor/hub-server-go/internal/pipeline"
	"github.com/holotutor/hub-server-go/internal/redis"
	"github.com/holotutor/hub-server-go/internal/repository"
	"github.com/holotutor/hub-server-go/internal/service"
	"github.com/holotutor/hub-server-go/internal/signaling"
	"github.com/holotutor/hub-server-go/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	redisClient, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	var mediaStore *storage.MediaStore
	if cfg.S3Endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mediaStore, err = storage.NewMediaStore(ctx, cfg)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to object storage")
		}
		log.Info().Str("bucket", cfg.S3Bucket).Msg("object storage connected")
	} else {
		log.Warn().Msg("object storage not configured, replies will be text-only")
	}

	roomRepo := repository.NewRoomRepository(redisClient)
	conversationRepo := repository.NewConversationRepository(redisClient)
	sessionRepo := repository.NewSessionRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient)
	counterRepo := repository.NewCounterRepository(redisClient)

	rateLimiter := service.NewRateLimiter(counterRepo)
	usageTracker := service.NewUsageTracker(counterRepo)
	roomService := service.NewRoomService(roomRepo, conversationRepo, sessionRepo, cfg)
	companionService := service.NewCompanionService(cacheRepo, external.NewCatalogClient(cfg), cfg)

	gen := pipeline.New(
		external.NewLLMClient(cfg),
		external.NewTTSClient(cfg),
		external.NewAvatarClient(cfg),
		audioUploader(mediaStore),
		companionService,
		usageTracker,
		conversationRepo,
		cfg,
	)

	// hub and runner reference each other through their narrow interfaces,
	// so wire the hub first with the runner created right after
	var runner *pipeline.Runner
	hub := signaling.NewHub(roomRepo, conversationRepo, rateLimiter, schedulerFunc(func(roomID, companionID, userMessage string) bool {
		return runner.Schedule(roomID, companionID, userMessage)
	}), cfg)
	runner = pipeline.NewRunner(gen, conversationRepo, hub, cfg)

	runCtx, runCancel := context.WithCancel(context.Background())
	runner.Start(runCtx)

	roomHandler := handler.NewRoomHandler(roomService, cfg)
	sessionHandler := handler.NewSessionHandler(roomService)
	companionHandler := handler.NewCompanionHandler(companionService)
	wsHandler := handler.NewWSHandler(hub, cfg)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if !redisClient.Healthy(r.Context()) {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Get("/ws", wsHandler.Serve)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(rateLimiter, cfg.RateLimitPerMinute))
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(middleware.BodyLimit(0))

		r.Mount("/video", roomHandler.Routes())
		r.Mount("/video/sessions", sessionHandler.Routes())
		r.Mount("/companions", companionHandler.Routes())
	})

	sweepJob := jobs.NewSweepJob(hub, roomRepo, config.HubSweepInterval)
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// websocket connections outlive any write deadline
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	hub.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	runCancel()
	runner.Wait()

	log.Info().Msg("server stopped")
}

// schedulerFunc adapts a closure to the hub's scheduler interface.
type schedulerFunc func(roomID, companionID, userMessage string) bool

func (f schedulerFunc) Schedule(roomID, companionID, userMessage string) bool {
	return f(roomID, companionID, userMessage)
}

// audioUploader returns the media store, or a stub that skips the audio
// stage when object storage is not configured.
func audioUploader(store *storage.MediaStore) pipeline.AudioUploader {
	if store != nil {
		return store
	}
	return noUploader{}
}

type noUploader struct{}

func (noUploader) UploadAudio(ctx context.Context, roomID, filename string, data []byte) (string, error) {
	return "", errors.New("object storage not configured")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
