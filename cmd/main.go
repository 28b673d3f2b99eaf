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

	"github.com/jmoiron/sqlx"
	"github.com/okian/thermo/internal/adapters/http/api"
	"github.com/okian/thermo/internal/adapters/http/site"
	"github.com/okian/thermo/internal/adapters/http/swagger"
	"github.com/okian/thermo/internal/adapters/mq/queue"
	"github.com/okian/thermo/internal/adapters/repository"
	app "github.com/okian/thermo/internal/app"
	"github.com/okian/thermo/internal/config"
	"github.com/okian/thermo/pkg/logger"
	"github.com/okian/thermo/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// HTTP server timeout constants. Uploads can be large, so reads get longer
// than the rest. The upload handler moves its write deadline once the body
// has been read.
const (
	readTimeout       = 5 * time.Minute
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	redisPingTimeout  = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "thermo stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run starts every component the configured role needs and blocks until ctx
// is done.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.Init(logger.WithFormat(logger.Format(cfg.LogFormat))); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	q, closeQueue, err := openQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeQueue()

	svc := app.New(repository.NewSQLStore(db), q,
		app.WithLogger(log.Named("service")),
		app.WithDataDir(cfg.DataDir),
		app.WithWorkers(cfg.RunsWorkers()),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithScheduler(cfg.SchedulerEnabled, cfg.ScanInterval, cfg.StartupScanDelay),
		app.WithClaimTTL(cfg.ClaimTTL),
		app.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("role", cfg.Role))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// openStore connects to the configured database and creates the schema.
func openStore(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// openQueue builds the configured queue backend. The returned func releases
// the queue and any connection it holds.
func openQueue(ctx context.Context, cfg *config.Config) (queue.Queue, func(), error) {
	if cfg.QueueBackend != config.QueueRedis {
		q := queue.NewInMemoryQueue(
			queue.WithCapacity(cfg.QueueSize),
			queue.WithStatusTTL(cfg.StatusTTL),
		)
		return q, func() { _ = q.Close() }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr, err)
	}

	q := queue.NewRedisQueue(client,
		queue.WithPrefix(cfg.RedisPrefix),
		queue.WithConsumer(cfg.RedisConsumer),
		queue.WithRedisStatusTTL(cfg.StatusTTL),
	)
	return q, func() {
		_ = q.Close()
		_ = client.Close()
	}, nil
}

// newMux registers the routes the configured role serves. Worker-only
// processes expose metrics and stats.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	if !cfg.RunsAPI() {
		mux.HandleFunc("/healthz", api.MetricsMiddleware(api.NewHealthHandler().HandleHealth, "healthz"))
		mux.HandleFunc("/stats", api.MetricsMiddleware(api.NewStatsHandler(svc).HandleStats, "stats"))
		return mux
	}

	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}

// startServiceMetricsUpdater refreshes gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue length and record count gauges.
			svc.GetStats()
		}
	}
}
