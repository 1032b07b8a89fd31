package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/beije/packet-storefront/api/controllers"
	"github.com/beije/packet-storefront/api/routes"
	"github.com/beije/packet-storefront/internal/auth"
	"github.com/beije/packet-storefront/internal/gateway"
	"github.com/beije/packet-storefront/internal/session"
	"github.com/beije/packet-storefront/internal/storage"
	"github.com/beije/packet-storefront/pkg/config"
	"github.com/beije/packet-storefront/pkg/db"
	"github.com/beije/packet-storefront/pkg/logger"
	"github.com/beije/packet-storefront/pkg/metrics"
	"github.com/beije/packet-storefront/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient)
	}

	kv, readiness, err := openStorage(ctx, cfg, logg, redisClient, &closers)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storefrontMetrics := metrics.New(promReg)

	gw, err := gateway.NewClient(cfg.Gateway.BaseURL,
		gateway.WithVerifyURL(cfg.Gateway.VerifyBaseURL()),
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithRecorder(storefrontMetrics),
		gateway.WithLogger(logg),
	)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Gateway: gw,
		Tokens:  kv,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	params := session.RegistryParams{
		Storage:       kv,
		Verifier:      gw,
		Tokens:        authService,
		Metrics:       storefrontMetrics,
		Logger:        logg,
		IdleTTL:       cfg.Session.IdleTTL,
		SubmitTimeout: cfg.Checkout.SubmitTimeout,
		LockTTL:       cfg.Checkout.LockTTL,
	}
	deps := routes.Dependencies{
		Readiness: readiness,
		Gatherer:  promReg,
		Auth:      authService,
		Catalog:   gw,
	}
	// Leave the interfaces nil without redis so the lock and limiter stay disabled.
	if redisClient != nil {
		params.Locker = redisClient
		deps.RateStore = redisClient
	}

	registry, err := session.NewRegistry(params)
	if err != nil {
		return err
	}
	deps.Workspaces = registry

	go func() {
		if err := registry.Run(ctx, cfg.Session.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "session sweeper stopped", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"storage": cfg.Storage.NormalizedDriver(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStorage picks the KV backend named by the config and the dependencies the
// readiness probe should ping.
func openStorage(ctx context.Context, cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, closers *[]io.Closer) (storage.KV, map[string]controllers.Pinger, error) {
	readiness := map[string]controllers.Pinger{}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	switch cfg.Storage.NormalizedDriver() {
	case config.StorageDriverRedis:
		return storage.NewRedis(redisClient), readiness, nil
	case config.StorageDriverSQL:
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, dbClient)
		readiness["database"] = dbClient
		return storage.NewSQL(dbClient), readiness, nil
	default:
		mem := storage.NewMemory()
		readiness["storage"] = mem
		return mem, readiness, nil
	}
}
