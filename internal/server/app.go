// Package server initializes and runs the collaborative editing server.
// It selects the storage and directory backends, reconciles the directory
// with durable storage at startup and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/usernamedt/multitext-server/internal/logging"
	"github.com/usernamedt/multitext-server/internal/server/access"
	"github.com/usernamedt/multitext-server/internal/server/broadcast"
	"github.com/usernamedt/multitext-server/internal/server/config"
	"github.com/usernamedt/multitext-server/internal/server/files"
	"github.com/usernamedt/multitext-server/internal/server/metrics"
	"github.com/usernamedt/multitext-server/internal/server/repositories/repomanager"
	"github.com/usernamedt/multitext-server/internal/server/sessions"
	"github.com/usernamedt/multitext-server/internal/server/storage"
	"github.com/usernamedt/multitext-server/internal/server/users"
	"github.com/usernamedt/multitext-server/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config       *config.Config
	logger       logging.Logger
	repoManager  repomanager.RepositoryManager
	userService  *users.Service
	fileService  *files.Service
	server       *ws.Server
	promRegistry *prometheus.Registry
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewDefaultLogger()

	store, err := newDocumentStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	rm, err := newRepositoryManager(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(promRegistry)

	userService := users.NewService(rm.Users(), store, logger)
	fileService := files.NewService(store, files.NewHistoryStore(), logger)
	registry := sessions.NewRegistry()
	engine := broadcast.NewEngine(fileService.Histories(), registry, recorder, logger)
	authority := access.NewAuthority(userService)

	router := ws.NewRouter(userService, fileService, engine, authority, registry,
		recorder, logger, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	server := ws.NewServer(cfg.ListenAddr, router, registry, recorder, promRegistry, logger)

	return &App{
		config:       cfg,
		logger:       logger,
		repoManager:  rm,
		userService:  userService,
		fileService:  fileService,
		server:       server,
		promRegistry: promRegistry,
	}, nil
}

func newDocumentStore(ctx context.Context, cfg *config.Config) (storage.DocumentStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		return storage.NewS3Store(ctx, storage.S3Options{
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	case config.StorageLocal:
		return storage.NewLocalStore(cfg.UsersDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newRepositoryManager(ctx context.Context, cfg *config.Config) (repomanager.RepositoryManager, error) {
	if cfg.DatabaseDSN != "" {
		return repomanager.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	}
	return repomanager.NewFileRepositoryManager(cfg.UsersDBFile)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.userService.Reconcile(ctx); err != nil {
		app.logger.Error(ctx, "directory reconciliation failed", "error", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.ListenAndServe(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "server shutdown failed", "error", err)
	}
	if err := app.repoManager.Close(); err != nil {
		app.logger.Error(shutdownCtx, "closing repositories failed", "error", err)
	}

	wg.Wait()
}
