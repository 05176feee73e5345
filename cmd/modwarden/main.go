package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modwarden/internal/analytics"
	"modwarden/internal/bot"
	"modwarden/internal/command"
	"modwarden/internal/config"
	"modwarden/internal/moderation"
	"modwarden/internal/modules/audit"
	"modwarden/internal/scheduler"
	"modwarden/internal/settings"
	"modwarden/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	cache := newSettingsCache(cfg, logger)
	repo := settings.NewRepository(store, cache, logger)

	auditLogger := audit.NewLogger(logger)

	botSvc, err := bot.New(cfg.DiscordToken, repo, logger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}
	platform := botSvc.Platform()
	auditLogger.SetNotifier(platform.AuditNotifier())

	svc := moderation.NewService(moderation.Deps{
		Log:      store,
		Timeouts: store,
		Warns:    store,
		Enforcer: platform,
		Observer: auditLogger,
		Logger:   logger,
	})
	sched := scheduler.New(store, svc.Expire, logger, cfg.Scheduler.FireTimeout())
	svc.SetScheduler(sched)

	// Stored timeouts must be armed before any new action can supersede them.
	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := sched.Reconcile(startCtx); err != nil {
		startCancel()
		logger.Fatal("timeout reconcile failed", zap.Error(err))
	}
	startCancel()
	logger.Info("timeouts reconciled", zap.Int("pending", sched.Len()))

	pipeline := command.NewPipeline(command.Deps{
		Parser:    command.Parser{Prefix: cfg.CommandPrefix},
		Settings:  repo,
		Responder: platform,
		Channels:  platform,
		Moderator: svc,
		WarnRules: store,
		Actions:   store,
		Reporter:  analytics.New(store),
		Logger:    logger,
	})

	if err := botSvc.Start(pipeline); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := store.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("storage unavailable"))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
	if err := sched.Close(ctx); err != nil {
		logger.Warn("scheduler close", zap.Error(err))
	}
	if closer, ok := cache.(*settings.RedisCache); ok {
		_ = closer.Close()
	}
}

func newSettingsCache(cfg config.Config, logger *zap.Logger) settings.Cache {
	if cfg.SettingsCache.RedisURL == "" {
		return settings.NewMemCache(cfg.SettingsCache.Size, cfg.SettingsCache.TTL())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cache, err := settings.DialRedisCache(ctx, cfg.SettingsCache.RedisURL, cfg.SettingsCache.TTL())
	if err != nil {
		logger.Warn("redis settings cache unavailable, using memory", zap.Error(err))
		return settings.NewMemCache(cfg.SettingsCache.Size, cfg.SettingsCache.TTL())
	}
	return cache
}
