package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"agentdocs/internal/api"
	"agentdocs/internal/auth"
	"agentdocs/internal/config"
	"agentdocs/internal/metrics"
	"agentdocs/internal/redis"
	"agentdocs/internal/service/ai"
	"agentdocs/internal/service/assistant"
	"agentdocs/internal/service/chat"
	"agentdocs/internal/service/document"
	"agentdocs/internal/storage"
	"agentdocs/internal/worker"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting agentdocs", "db", dbType, "llm_backend", cfg.LLM.Backend, "llm_provider", cfg.LLM.Provider)
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := assistant.NewService(db)
	if created, err := seedAgents(ctx, store); err != nil {
		return err
	} else if created > 0 {
		logger.Info("seeded agents", "count", created)
	}
	if err := store.EnsureUser(ctx, cfg.BasicConfig.TestUserID); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	provider, err := ai.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init completion provider: %w", err)
	}

	locker, closeLocker, err := newLocker(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	blob, closeBlob, err := newBlob(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlob()

	pool := worker.NewDispatcher(worker.Options{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: cfg.WorkerIdleTimeout(),
	}, logger)
	defer pool.Close()

	collector := metrics.NewCollector()
	chatSvc := chat.NewService(store, provider, locker, collector, logger, chat.Config{
		StreamTimeout: cfg.StreamTimeout(),
		TitleTimeout:  cfg.TitleTimeout(),
	})
	handler := api.NewHandler(api.Deps{
		Store:     store,
		Chat:      chatSvc,
		Documents: document.NewService(store, blob, pool, collector, logger),
		Metrics:   collector,
		Pool:      pool,
		Resolver:  auth.FixedUser(cfg.BasicConfig.TestUserID),
		Logger:    logger,
	})

	if config.ParseLogLevel(cfg.Logging.Level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           api.NewRouter(handler, cfg.CORS.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// replies already accepted still get persisted before the store closes
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), chatSvc.DrainTimeout()+time.Second)
	defer cancelDrain()
	if err := chatSvc.Wait(drainCtx); err != nil {
		logger.Warn("in-flight replies did not finish", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

func newLocker(cfg *config.Config, logger *slog.Logger) (chat.Locker, func(), error) {
	noop := func() {}
	if !*cfg.BasicConfig.LockConversations {
		return chat.NoopLocker{}, noop, nil
	}
	if !cfg.Redis.Enabled {
		return chat.NewLocalLocker(), noop, nil
	}
	client, err := redis.NewRedisClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	// outlive the longest stream so a live reply never loses its lock
	ttl := cfg.StreamTimeout() + 30*time.Second
	return chat.NewRedisLocker(client, ttl, logger), func() { client.Close() }, nil
}

func newBlob(ctx context.Context, cfg *config.Config) (storage.Blob, func(), error) {
	switch cfg.Storage.Backend {
	case "gcs":
		b, err := storage.NewGCSBlob(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix, cfg.Storage.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	default:
		b, err := storage.NewLocalBlob(cfg.Storage.DocumentsDir)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	}
}
