package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/debemdeboas/locs-review/internal/app"
	"github.com/debemdeboas/locs-review/internal/config"
	"github.com/debemdeboas/locs-review/internal/logger"
	"github.com/debemdeboas/locs-review/internal/observability"
	"github.com/debemdeboas/locs-review/internal/queue"
	"github.com/debemdeboas/locs-review/internal/routes"
	"github.com/debemdeboas/locs-review/internal/sse"
	"github.com/debemdeboas/locs-review/internal/workflow"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file loaded")
	}

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	cfg := config.AppConfig

	l := logger.NewWithOptions(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	app.SetLogger(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to register metrics")
	}

	a, err := app.Open(ctx, cfg, workflow.WithRecorder(metrics))
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer a.Close()

	clients := sse.NewSSEClients()

	var handler *routes.Handler
	q := queue.New(a.Meta, a.Workflow, a.Blobs,
		queue.WithLayout(a.Layout),
		queue.WithGauge(metrics),
		queue.WithNotifier(func(ev queue.Event) { handler.Notify(ev) }),
	)
	handler = routes.NewHandler(q, a.Meta, a.Blobs, a.Layout, clients)

	if err := q.Load(ctx); err != nil {
		l.Fatal().Err(err).Msg("Failed to load pending items")
	}

	mux := http.NewServeMux()
	handler.Register(mux, metrics.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           routes.SecureHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// SSE streams end with the server context instead of holding Shutdown open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	l.Info().Str("addr", srv.Addr).Int("pending", q.Len()).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Fatal().Err(err).Msg("Server failed")
	}
	l.Info().Msg("Server stopped")
}
