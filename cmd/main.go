package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/facequiz/internal/adapters/cache"
	"github.com/okian/facequiz/internal/adapters/geo"
	"github.com/okian/facequiz/internal/adapters/http/api"
	"github.com/okian/facequiz/internal/adapters/http/site"
	"github.com/okian/facequiz/internal/adapters/http/swagger"
	"github.com/okian/facequiz/internal/adapters/repository"
	app "github.com/okian/facequiz/internal/app"
	"github.com/okian/facequiz/internal/config"
	"github.com/okian/facequiz/internal/seed"
	"github.com/okian/facequiz/pkg/logger"
	"github.com/okian/facequiz/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	connectTimeout            = 10 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	geoBurst                  = 1
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> .env -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, logger.Format(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "facequiz exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts down in order: HTTP server,
// maintenance loop and visit workers, store and cache.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var errs []error
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down server...")
	case err := <-serveErr:
		if err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("service stop: %w", err))
	}

	log.Info(ctx, "server stopped")
	return errors.Join(errs...)
}

// newService opens the configured store, cache and locator and builds the service.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithLocator(newLocator(cfg)),
		app.WithCacheTTL(cfg.CacheTTL()),
		app.WithWorkerCount(cfg.VisitWorkerCount),
		app.WithQueueSize(cfg.VisitQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithLeaderboardSize(cfg.LeaderboardSize),
		app.WithMaxSample(cfg.MaxSample),
		app.WithPruneInterval(cfg.PruneInterval()),
		app.WithAllowedOccupations(cfg.AllowedOccupations),
	}

	if cfg.RedisURL != "" {
		c, err := openCache(ctx, cfg)
		if err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		opts = append(opts, app.WithCache(c))
	}
	return app.New(store, opts...), nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	if cfg.Store == config.StoreMemory {
		store := repository.NewMemoryStore()
		if err := seedMemory(ctx, store, cfg.SeedFile, log); err != nil {
			return nil, err
		}
		return store, nil
	}
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	store, err := repository.NewMongoStore(cctx, cfg.MongoURI,
		repository.WithDatabase(cfg.MongoDatabase),
		repository.WithPeopleCollection(cfg.PeopleCollection),
	)
	if err != nil {
		return nil, fmt.Errorf("open mongo store: %w", err)
	}
	return store, nil
}

// seedMemory imports people from path into a fresh memory store. An empty
// path leaves the store empty.
func seedMemory(ctx context.Context, store *repository.MemoryStore, path string, log logger.Logger) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	stats, err := seed.Import(ctx, store, f, 0)
	if err != nil {
		return fmt.Errorf("seed memory store: %w", err)
	}
	log.Info(ctx, "memory store seeded",
		logger.String("file", path),
		logger.Int("inserted", stats.Inserted),
		logger.Int("skipped", stats.Skipped))
	return nil
}

func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	c, err := cache.NewRedisCache(cctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("open redis cache: %w", err)
	}
	return c, nil
}

func newLocator(cfg *config.Config) geo.Locator {
	if !cfg.GeoEnabled {
		return geo.Disabled{}
	}
	return geo.NewClient(
		geo.WithURL(cfg.GeoURL),
		geo.WithTimeout(cfg.GeoTimeout()),
		geo.WithRate(cfg.GeoRPS, geoBurst),
	)
}

// newHandler registers every route and wraps the mux in the shared middleware.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)
	site.Register(ctx, mux, cfg.StaticDir)

	apiServer := api.NewServer(svc,
		api.WithLogger(log.Named("api")),
		api.WithCORSOrigins(cfg.CORSOrigins),
	)
	apiServer.Register(ctx, mux)
	return apiServer.Handler(mux)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
	}
}
