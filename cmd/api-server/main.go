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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/turnos-scheduling/internal/api"
	"github.com/hackgods/turnos-scheduling/internal/appointment"
	"github.com/hackgods/turnos-scheduling/internal/config"
	"github.com/hackgods/turnos-scheduling/internal/db"
	"github.com/hackgods/turnos-scheduling/internal/events"
	"github.com/hackgods/turnos-scheduling/internal/logging"
	"github.com/hackgods/turnos-scheduling/internal/metrics"
	"github.com/hackgods/turnos-scheduling/internal/profile"
	redisclient "github.com/hackgods/turnos-scheduling/internal/redis"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store", cfg.StoreDriver),
		zap.String("timezone", cfg.Location.String()),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Fatal("api-server stopped with error", zap.Error(err))
	}
	logger.Info("api-server shut down")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("slot catalog: %w", err)
	}
	logger.Info("slot catalog loaded", zap.Int("slots", catalog.Len()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	schedMetrics := metrics.NewSchedulingMetrics(reg)

	deps := appointment.Deps{
		Catalog:  catalog,
		Metrics:  schedMetrics,
		Logger:   logger,
		Location: cfg.Location,
	}
	var publishers events.Fanout

	var pgPool *pgxpool.Pool
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
			MaxConns: cfg.PostgresMaxConns,
			MinConns: cfg.PostgresMinConns,
		})
		cancel()
		if err != nil {
			return err
		}
		defer pgPool.Close()
		logger.Info("connected to Postgres")

		deps.Store = appointment.NewPgStore(pgPool)
		deps.Profiles = profile.NewPgLookup(pgPool)
		publishers = append(publishers, events.NewPgLog(pgPool))
	default:
		deps.Store = appointment.NewMemoryStore()
		logger.Warn("using in-memory store; appointments are lost on restart")
	}

	var rdb *redis.Client
	if cfg.UseRedisLock() {
		rdb, err = redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", zap.Error(err))
			}
		}()
		deps.Locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		logger.Info("connected to Redis", zap.Duration("lock_ttl", cfg.LockTTL))
	}

	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return fmt.Errorf("dial amqp: %w", err)
		}
		defer conn.Close()

		pub, err := events.NewAMQPPublisher(conn, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		publishers = append(publishers, pub)
		logger.Info("publishing events to AMQP", zap.String("exchange", cfg.AMQPExchange))
	}
	if len(publishers) > 0 {
		deps.Events = publishers
	}

	svc := appointment.NewService(deps)

	identity := api.HeaderIdentity
	if cfg.JWTSecret != "" {
		identity = api.JWTIdentity([]byte(cfg.JWTSecret))
	}

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Health:   api.NewHealthHandler(api.PostgresCheck(pgPool), api.RedisCheck(rdb), cfg.Env, version),
		Identity: identity,
		Metrics:  schedMetrics,
		Gatherer: reg,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildCatalog(cfg config.Config) (*appointment.SlotCatalog, error) {
	if len(cfg.SlotCatalog) > 0 {
		return appointment.NewSlotCatalog(cfg.SlotCatalog)
	}
	return appointment.NewIntervalCatalog(cfg.SlotStart, cfg.SlotEnd, cfg.SlotInterval)
}
