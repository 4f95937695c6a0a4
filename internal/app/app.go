// Package app wires the store, source, dispatcher, poller and HTTP surface
// together and owns start/stop.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/example/dining-watcher/internal/config"
	"github.com/example/dining-watcher/internal/db"
	"github.com/example/dining-watcher/internal/dispatch"
	"github.com/example/dining-watcher/internal/metrics"
	"github.com/example/dining-watcher/internal/migrate"
	"github.com/example/dining-watcher/internal/notify"
	"github.com/example/dining-watcher/internal/poller"
	"github.com/example/dining-watcher/internal/server"
	"github.com/example/dining-watcher/internal/source"
	"github.com/example/dining-watcher/internal/subscription"
)

// Run starts the watcher and blocks until ctx is cancelled or a fatal error
// occurs. On cancellation it waits, bounded by the shutdown grace period,
// for the in-flight poll cycle to drain so a delivered-but-unrecorded
// resolution is never orphaned.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, pinger, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	client := source.NewDisneyClient(source.DisneyConfig{
		BaseURL:  cfg.Source.BaseURL,
		Username: cfg.Source.Username,
		Password: cfg.Source.Password,
	})
	// Warm the source session before the first cycle so no check observes
	// a half-initialized client. A failed login is not fatal; checks
	// re-authenticate lazily.
	if cfg.Source.Username != "" {
		loginCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := client.Login(loginCtx); err != nil {
			logger.Warn("initial source login failed, will retry on first check", zap.Error(err))
		}
		cancel()
	}
	src := source.NewBreaker(client)

	provider, err := newProvider(cfg.Notifier, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	dispatcher := dispatch.New(store, provider, cfg.Source.BaseURL, logger, m)
	p := poller.New(store, src, dispatcher, poller.Config{
		Interval:      cfg.PollInterval,
		MaxConcurrent: cfg.MaxConcurrent,
		CheckTimeout:  cfg.CheckTimeout,
		CycleDeadline: cfg.CycleDeadline,
	}, logger, m)

	srv := server.New(store, pinger, logger)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		_ = p.Run(ctx)
	}()

	httpDone := make(chan error, 1)
	go func() {
		httpDone <- server.Start(ctx, cfg.ListenAddr, srv.Routes(reg), cfg.ShutdownGrace)
	}()

	logger.Info("dining watcher started",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("notifier", provider.Name()),
		zap.Duration("poll_interval", cfg.PollInterval))

	select {
	case <-ctx.Done():
	case err := <-httpDone:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// Drain the poller within the grace period.
	drain := time.NewTimer(cfg.ShutdownGrace)
	defer drain.Stop()
	select {
	case <-pollerDone:
		logger.Info("poller drained")
	case <-drain.C:
		logger.Warn("shutdown grace period elapsed with checks still in flight")
	}
	return nil
}

// OpenStore opens the configured store backend, running migrations for
// postgres. The returned func releases the backend.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (subscription.Store, server.Pinger, func(), error) {
	switch cfg.StoreDriver {
	case "sqlite":
		st, err := subscription.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, st, func() { _ = st.Close() }, nil

	default: // postgres
		d, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := d.Ping(ctx); err != nil {
			d.Close()
			return nil, nil, nil, fmt.Errorf("db ping: %w", err)
		}
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Debug("database ready")
		return subscription.NewPostgresStore(d), d, d.Close, nil
	}
}

func newProvider(cfg config.NotifierConfig, logger *zap.Logger) (notify.Provider, error) {
	switch cfg.Provider {
	case "webhook":
		return notify.NewWebhookProvider(cfg.WebhookURL), nil
	case "smtp":
		return notify.NewSMTPProvider(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}), nil
	case "log":
		return notify.NewLogProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier provider %q", cfg.Provider)
	}
}
