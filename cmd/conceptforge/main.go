package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conceptforge/conceptforge/internal/app"
	"github.com/conceptforge/conceptforge/internal/auth"
	"github.com/conceptforge/conceptforge/internal/metaproject"
	"github.com/conceptforge/conceptforge/internal/observability"
	"github.com/conceptforge/conceptforge/internal/platform/cache"
	"github.com/conceptforge/conceptforge/internal/server"
	"github.com/conceptforge/conceptforge/internal/storage"
	"github.com/conceptforge/conceptforge/internal/versioning"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	store, closeStore, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		logger.Error("open snapshot store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	strategy, err := auth.ParseStrategy(cfg.AuthStrategy)
	if err != nil {
		logger.Error("auth strategy", slog.Any("error", err))
		os.Exit(1)
	}

	serverCfg, err := loadOrSeed(ctx, logger, cfg, store, strategy)
	if err != nil {
		logger.Error("load server configuration", slog.Any("error", err))
		os.Exit(1)
	}

	facade := server.New(logger, serverCfg, store, versioning.NewService(logger))
	loginService := auth.NewLoginService(facade, strategy)

	sessions, closeSessions, err := openSessionStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("open session store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeSessions()

	metrics := observability.NewMetrics()
	authHandler := auth.NewHandler(logger, loginService, sessions)
	serverHandler := server.NewHandler(logger, facade, metrics)

	params := app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		AuthHandler:   authHandler,
		ServerHandler: serverHandler,
		Sessions:      sessions,
		Metrics:       metrics,
	}

	primary := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      app.NewRouter(params),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	adminAddr := adminAddress(cfg, serverCfg.Host)
	admin := &http.Server{
		Addr:         adminAddr,
		Handler:      app.NewAdminRouter(params),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := primary.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Info("starting admin server", slog.String("addr", adminAddr))
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var shutdownErr error
		if err := primary.Shutdown(shutdownCtx); err != nil {
			shutdownErr = err
		}
		if err := admin.Shutdown(shutdownCtx); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
		return shutdownErr
	})

	if err := group.Wait(); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

// adminAddress picks the listen address of the admin surface. The secondary
// port persisted in the host descriptor wins; ADMIN_ADDR is the fallback for
// configurations that never set one.
func adminAddress(cfg *app.Config, host metaproject.Host) string {
	if host.SecondaryPort > 0 {
		return fmt.Sprintf(":%d", host.SecondaryPort)
	}
	return cfg.AdminAddr
}

func openSnapshotStore(ctx context.Context, cfg *app.Config) (storage.SnapshotStore, func(), error) {
	switch cfg.SnapshotBackend {
	case "sqlite":
		sqliteStore, err := storage.OpenSQLiteStore(ctx, cfg.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		return sqliteStore, func() { _ = sqliteStore.Close() }, nil
	default:
		return storage.NewFileStore(cfg.SnapshotPath), func() {}, nil
	}
}

func openSessionStore(ctx context.Context, logger *slog.Logger, cfg *app.Config) (auth.TokenStore, func(), error) {
	if cfg.SessionStore == "redis" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return auth.NewRedisTokenTable(client, cfg.SessionTTL), func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}, nil
	}
	table := auth.NewTokenTable(cfg.SessionTTL)
	if cfg.SessionSweep > 0 {
		go table.SweepEvery(ctx, cfg.SessionSweep)
	}
	return table, func() {}, nil
}

// loadOrSeed returns the persisted configuration, or seeds a fresh one with
// the bootstrap admin account when no snapshot exists yet.
func loadOrSeed(ctx context.Context, logger *slog.Logger, cfg *app.Config, store storage.SnapshotStore, strategy auth.Strategy) (*metaproject.ServerConfiguration, error) {
	serverCfg, err := store.Load(ctx)
	if err == nil {
		return serverCfg, nil
	}
	if !errors.Is(err, storage.ErrNoSnapshot) {
		return nil, err
	}

	serverCfg = metaproject.NewServerConfiguration(metaproject.Host{URI: cfg.BootstrapHostURI}, cfg.BootstrapRoot)
	admin := metaproject.User{
		ID:   metaproject.UserID(cfg.BootstrapAdminUser),
		Name: cfg.BootstrapAdminUser,
	}
	if err := serverCfg.Users.Add(admin.ID, admin); err != nil {
		return nil, err
	}
	switch strategy {
	case auth.StrategyLocal:
		if cfg.BootstrapAdminPassword == "" {
			return nil, errors.New("bootstrap admin password required for local auth")
		}
		digest, err := auth.HashPassword(cfg.BootstrapAdminPassword)
		if err != nil {
			return nil, err
		}
		serverCfg.Credentials[admin.ID] = digest
	case auth.StrategyDevMode:
		logger.Warn("devmode auth enabled, passwords are not checked")
	}

	if err := store.Save(ctx, serverCfg); err != nil {
		return nil, err
	}
	logger.Info("seeded configuration",
		slog.String("admin", cfg.BootstrapAdminUser),
		slog.String("root", cfg.BootstrapRoot))
	return serverCfg, nil
}
