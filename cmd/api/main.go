package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/octobees/cardscan/internal/config"
	"github.com/octobees/cardscan/internal/contact"
	"github.com/octobees/cardscan/internal/contactstore"
	"github.com/octobees/cardscan/internal/database"
	"github.com/octobees/cardscan/internal/dto"
	"github.com/octobees/cardscan/internal/extraction"
	"github.com/octobees/cardscan/internal/handler"
	"github.com/octobees/cardscan/internal/logger"
	"github.com/octobees/cardscan/internal/metrics"
	middlewarepkg "github.com/octobees/cardscan/internal/middleware"
	"github.com/octobees/cardscan/internal/pipeline"
	"github.com/octobees/cardscan/internal/repository"
	"github.com/octobees/cardscan/internal/router"
	"github.com/octobees/cardscan/internal/service"
	"github.com/octobees/cardscan/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	stamper := repository.NewStamper(cfg.Location)
	var records repository.RecordsRepository
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare schema")
		}
		records = repository.NewPGXRecordsRepository(pool, stamper)
	} else {
		log.Warn().Msg("DATABASE_URL not set; extracted records are kept in memory")
		records = repository.NewMemoryRecordsRepository(stamper)
	}

	var sessions session.Store
	sessionBackend := "memory"
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect redis")
		}
		sessions = session.NewRedisStore(rdb, 0)
		sessionBackend = "redis"
	} else {
		sessions = session.NewMemoryStore()
	}

	provider, err := extraction.NewProvider(ctx, cfg.Extraction.Provider,
		extraction.OpenAIConfig{
			APIKey:  cfg.Extraction.OpenAI.APIKey,
			Model:   cfg.Extraction.OpenAI.Model,
			BaseURL: cfg.Extraction.OpenAI.BaseURL,
		},
		extraction.GeminiConfig{
			APIKey:  cfg.Extraction.Gemini.APIKey,
			Model:   cfg.Extraction.Gemini.Model,
			BaseURL: cfg.Extraction.Gemini.BaseURL,
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure extraction provider")
	}
	extractor := extraction.NewClient(provider,
		extraction.WithPrompt(cfg.Extraction.Prompt),
		extraction.WithTimeout(cfg.Extraction.Timeout),
		extraction.WithObserver(m),
		extraction.WithLogger(log.With().Str("component", "extraction").Logger()),
	)

	contacts, err := contactstore.New(cfg.ContactStore, cfg.VCardDir, cfg.ContactWebhook, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure contact store")
	}

	mapper := contact.NewMapper(cfg.PhoneRegion)
	orchestrator := pipeline.New(extractor, mapper, contacts,
		pipeline.WithRecords(records),
		pipeline.WithSessions(sessions),
		pipeline.WithObserver(m),
		pipeline.WithLogger(log.With().Str("component", "pipeline").Logger()),
		pipeline.WithTransitionHook(func(cycleID string, from, to pipeline.State) {
			log.Debug().Str("cycle_id", cycleID).Stringer("from", from).Stringer("to", to).Msg("pipeline transition")
		}),
	)

	ingestService := service.NewIngestService(extractor, records, m, log.With().Str("component", "ingest").Logger())
	historyService := service.NewHistoryService(records, mapper)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Metrics(m))
	e.Use(middlewarepkg.Logging(log))
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, router.Handlers{
		Records: handler.NewRecordsHandler(ingestService, historyService, cfg.MaxUploadBytes, true),
		Capture: handler.NewCaptureHandler(orchestrator, sessions, cfg.MaxUploadBytes),
		Metrics: m.Handler(),
		Health: dto.HealthStatus{
			Provider:     provider.Name(),
			Records:      cfg.DatabaseURL != "",
			Sessions:     sessionBackend,
			ContactStore: cfg.ContactStore,
		},
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("provider", provider.Name()).Msg("cardscan api listening")
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
