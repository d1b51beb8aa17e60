// @title           AR Asset Backend API
// @version         1.0.0
// @description     Turns uploaded photographs into tracking markers and keeps each user's original/marker pairs as assets for the AR viewer.

// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ar-asset-backend/internal/assets"
	"ar-asset-backend/internal/config"
	"ar-asset-backend/internal/database"
	"ar-asset-backend/internal/handlers"
	"ar-asset-backend/internal/index"
	"ar-asset-backend/internal/kv"
	"ar-asset-backend/internal/logging"
	"ar-asset-backend/internal/marker"
	"ar-asset-backend/internal/middleware"
	"ar-asset-backend/internal/storage"
	"ar-asset-backend/internal/supabase"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logging.New(os.Stdout, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var sb *supabase.Client
	if cfg.SupabaseURL != "" && cfg.SupabasePublishableKey != "" {
		sb, err = supabase.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey)
		if err != nil {
			return fmt.Errorf("failed to initialize Supabase client: %w", err)
		}
	}

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	kvStore, closeKV, err := newKVStore(ctx, cfg, sb, log)
	if err != nil {
		return err
	}
	defer closeKV()

	opts := []assets.Option{
		assets.WithLogger(log.With("component", "assets")),
		assets.WithMarkerPreset(cfg.MarkerPreset),
	}
	if cfg.RealtimeEnabled {
		opts = append(opts, assets.WithEvents(supabase.NewRealtimeClient(cfg.SupabaseURL, cfg.SupabasePublishableKey)))
	}
	service := assets.NewService(store, index.New(kvStore), marker.Default(), opts...)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)
	router.GET("/health/ready", handlers.ReadyHandler(service))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))
	handlers.NewAssetsHandler(service).Register(api, !cfg.IsProduction())

	if ms, ok := store.(*storage.MemoryStore); ok {
		router.GET("/objects/*path", handlers.ObjectsHandler(ms))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting",
			"port", cfg.Port,
			"storage_backend", cfg.StorageBackend,
			"index_backend", cfg.IndexBackend,
			"realtime", cfg.RealtimeEnabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.BackendSupabase:
		return supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket), nil
	case config.BackendS3:
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
		}
		return s, nil
	default:
		return storage.NewMemoryStore(cfg.BaseURL + "/objects"), nil
	}
}

func newKVStore(ctx context.Context, cfg *config.Config, sb *supabase.Client, log logging.Logger) (kv.Store, func(), error) {
	noop := func() {}

	switch cfg.IndexBackend {
	case config.BackendPostgres:
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := database.NewMigrator(db, cfg.IndexTable, log.With("component", "migrator")).Run(ctx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("migration failed: %w", err)
		}
		pg := supabase.NewPostgresKV(db, cfg.IndexTable)
		return pg, func() { pg.Close() }, nil
	case config.BackendSupabase:
		if sb == nil {
			return nil, noop, errors.New("supabase client not configured")
		}
		return sb.IndexStore(cfg.IndexTable), noop, nil
	default:
		log.Warn(ctx, "using in-memory asset index; records are lost on restart")
		return kv.NewMemory(), noop, nil
	}
}
