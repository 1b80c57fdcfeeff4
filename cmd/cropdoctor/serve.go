package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matiasleandrokruk/cropdoctor/internal/api"
	"github.com/matiasleandrokruk/cropdoctor/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/cropdoctor/internal/api/middleware"
	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/domain/history"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
	"github.com/matiasleandrokruk/cropdoctor/internal/server"
	"github.com/matiasleandrokruk/cropdoctor/internal/web"
	pkgauth "github.com/matiasleandrokruk/cropdoctor/pkg/auth"
)

const (
	shutdownTimeout = 15 * time.Second
	limiterIdleTTL  = 10 * time.Minute
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web app and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags)
		},
	}
}

func runServe(ctx context.Context, flags *globalFlags) error {
	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log, appOptions{withHistory: true, withMetrics: true})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := a.close(closeCtx); closeErr != nil {
			log.WithError(closeErr).Warn("shutdown cleanup", nil)
		}
	}()

	deps, err := routerDeps(a)
	if err != nil {
		return err
	}
	srv := server.NewServer(api.NewRouter(deps), server.ConfigFrom(cfg.HTTP), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })

	if a.history != nil {
		// The recorder stops when the bus closes, after in-flight requests
		// have published their events.
		events := a.bus.Subscribe(diagnosis.TopicCompleted)
		recorder := history.NewRecorder(a.history, log, a.metrics)
		g.Go(func() error {
			recorder.Run(context.WithoutCancel(gctx), events)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		a.bus.Close()
		return err
	})

	return g.Wait()
}

// routerDeps maps the wired app onto the router's optional features.
func routerDeps(a *app) (api.Deps, error) {
	renderer, err := web.NewRenderer(i18n.Default())
	if err != nil {
		return api.Deps{}, err
	}

	deps := api.Deps{
		Diagnosis: a.service,
		Providers: a.providers,
		Renderer:  renderer,
		Bundle:    i18n.Default(),
		Logger:    a.log,
		Metrics:   a.metrics,
		Limiter:   apmiddleware.NewLimiter(a.cfg.RateLimit.RPS, a.cfg.RateLimit.Burst, limiterIdleTTL),
		Ready:     map[string]handlers.Pinger{},

		TrustProxy: a.cfg.HTTP.TrustProxy,
	}
	if a.history != nil {
		deps.History = a.history
		deps.Ready["database"] = handlers.PingFunc(a.db.PingContext)
	}
	if a.cache != nil {
		deps.Ready["cache"] = a.cache
	}
	if a.cfg.Auth.JWTSecret != "" {
		signer, err := pkgauth.NewSigner(a.cfg.Auth.JWTSecret, a.cfg.Auth.JWTExpiry)
		if err != nil {
			return api.Deps{}, err
		}
		deps.Auth = signer
	}
	return deps, nil
}
