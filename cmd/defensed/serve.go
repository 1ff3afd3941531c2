package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/config"
	httptransport "github.com/example/defense-scheduler/internal/http"
	"github.com/example/defense-scheduler/internal/notify"
	"github.com/example/defense-scheduler/internal/persistence/sqlite"
	"github.com/example/defense-scheduler/internal/scheduler"
)

const (
	directoryCacheTTL     = 30 * time.Second
	directoryCacheEntries = 512
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := commandEnv(cmd)
			if err != nil {
				return err
			}
			if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
				logger.Info(fmt.Sprintf(format, v...))
			})); err != nil {
				logger.Warn("failed to set GOMAXPROCS", "error", err)
			}
			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

// app holds the wired service graph behind the HTTP handler.
type app struct {
	storage    *sqlite.Storage
	dispatcher *notify.Dispatcher
	handler    http.Handler
	logger     *slog.Logger
}

// newApp opens and migrates storage, starts the notification dispatcher and
// builds the HTTP handler. Callers must Close the returned app.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*app, error) {
	calendar, err := scheduler.LoadCalendar(cfg.Scheduling.Timezone, nil)
	if err != nil {
		return nil, err
	}

	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, err
	}

	sinks := []notify.Sink{notify.NewInboxSink(storage.Notifications, newID)}
	if len(cfg.Notify.WebhookURLs) > 0 {
		sinks = append(sinks, notify.NewWebhookSink(notify.WebhookConfig{
			URLs:    cfg.Notify.WebhookURLs,
			Secret:  cfg.Notify.WebhookSecret,
			Timeout: cfg.Notify.WebhookTimeout,
		}, logger))
	}
	dispatcher := notify.NewDispatcher(notify.Config{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.QueueSize,
	}, logger, reg, sinks...)
	if err := dispatcher.Start(ctx); err != nil {
		_ = storage.Close()
		return nil, err
	}

	identity := application.NewCachedIdentityResolver(
		newIdentityResolverAdapter(storage.Users), directoryCacheTTL, directoryCacheEntries, nil)

	defenses := application.NewDefenseService(application.DefenseServiceDeps{
		Defenses:    newDefenseRepositoryAdapter(storage.Defenses),
		Identity:    identity,
		Notifier:    newNotifierAdapter(dispatcher),
		Calendar:    calendar,
		IDGenerator: newID,
		Logger:      logger,
		Registerer:  reg,
	})
	inbox := application.NewInboxService(newInboxRepositoryAdapter(storage.Notifications), logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Defenses:    httptransport.NewDefenseHandler(defenses, calendar, logger),
		Inbox:       httptransport.NewInboxHandler(inbox, logger),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Health:      storage.Ping,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger,
	})

	return &app{
		storage:    storage,
		dispatcher: dispatcher,
		handler:    handler,
		logger:     logger,
	}, nil
}

// Close drains pending notifications and closes storage.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.dispatcher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop dispatcher: %w", err))
	}
	if err := a.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger, newRegistry())
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("defense scheduler listening", "addr", server.Addr, "timezone", cfg.Scheduling.Timezone)
	serveErr := server.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
		<-shutdownDone
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Error("failed to release resources", "error", err)
	}
	if serveErr != nil {
		return fmt.Errorf("server encountered error: %w", serveErr)
	}
	logger.Info("defense scheduler stopped")
	return nil
}
