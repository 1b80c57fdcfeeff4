package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/domain/history"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/cache"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/config"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/eventbus"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/llm"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/logger"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/metrics"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/sqlite"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/tracing"
	"github.com/matiasleandrokruk/cropdoctor/internal/version"
)

// app holds the wired services shared by serve, diagnose and mcp.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	providers *llm.Router
	service   *diagnosis.Service
	bus       *eventbus.Bus

	// Optional; nil when not configured.
	metrics *metrics.Metrics
	cache   *cache.RedisCache
	db      *sql.DB
	history *history.Store

	shutdownTracing tracing.ShutdownFunc
}

type appOptions struct {
	// withHistory opens DB_PATH when set. One-shot commands skip it.
	withHistory bool
	withMetrics bool
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: log, bus: eventbus.New()}
	if err := a.wire(ctx, opts); err != nil {
		a.close(context.Background()) //nolint:errcheck
		return nil, err
	}
	log.Info("cropdoctor ready", map[string]interface{}{
		"provider": cfg.LLM.Provider,
		"cache":    a.cache != nil,
		"history":  a.history != nil,
		"tracing":  cfg.Tracing.JaegerEndpoint != "",
	})
	return a, nil
}

func (a *app) wire(ctx context.Context, opts appOptions) error {
	cfg, log := a.cfg, a.log
	var err error

	a.shutdownTracing, err = tracing.Setup(tracing.Config{
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version.Version,
	})
	if err != nil {
		return err
	}

	a.providers, err = llm.BuildRouter(ctx, llm.Settings{
		Provider:      cfg.LLM.Provider,
		GeminiAPIKey:  cfg.LLM.GeminiAPIKey,
		GeminiModel:   cfg.LLM.GeminiModel,
		GeminiBaseURL: cfg.LLM.GeminiBaseURL,
		OllamaBaseURL: cfg.LLM.OllamaBaseURL,
		OllamaModel:   cfg.LLM.OllamaChatModel,
		Timeout:       cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	limits := diagnosis.DefaultLimits()
	limits.MaxImageBytes = cfg.Diagnosis.MaxImageBytes
	opt := []diagnosis.Option{
		diagnosis.WithLimits(limits),
		diagnosis.WithEventBus(a.bus),
		diagnosis.WithLogger(log),
	}

	if opts.withMetrics {
		a.metrics = metrics.New()
		a.metrics.WatchEventBus(a.bus.Dropped)
		opt = append(opt, diagnosis.WithMetrics(a.metrics))
	}

	if cfg.Storage.RedisAddr != "" {
		a.cache = cache.NewRedis(cache.Config{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			TTL:      cfg.Storage.CacheTTL,
		})
		if pingErr := a.cache.Ping(ctx); pingErr != nil {
			// The cache is optional; lookups fail open.
			log.WithError(pingErr).Warn("redis unreachable, diagnoses will not be cached until it recovers",
				map[string]interface{}{"addr": cfg.Storage.RedisAddr})
		}
		opt = append(opt, diagnosis.WithCache(a.cache))
	}

	if opts.withHistory && cfg.Storage.DBPath != "" {
		a.db, err = sqlite.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		a.history = history.NewStore(a.db)
	}

	a.service = diagnosis.NewService(a.providers, opt...)
	return nil
}

// close releases everything newApp opened. The bus is closed last so a
// running recorder can drain first.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(ctx))
	}
	a.bus.Close()
	if n := a.bus.Dropped(); n > 0 {
		a.log.Warn("event deliveries dropped", map[string]interface{}{"count": n})
	}
	return errors.Join(errs...)
}

// loadConfig reads configuration and builds the logger.
func loadConfig(flags *globalFlags) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewStructured(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
