// Package app собирает сервис: хранилище, бизнес-сервисы, HTTP API,
// gRPC health, метрики и outbox worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/idempotency"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/orderstatus"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
	"github.com/vladislavdragonenkov/shop/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

// Run запускает сервис и блокируется до отмены ctx или ошибки сервера.
// При отмене ctx возвращает ctx.Err() после graceful shutdown.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if deps.memoryStore != nil && cfg.SeedDemoData {
		if err := deps.memoryStore.SeedProducts(ctx, demoProducts()...); err != nil {
			return fmt.Errorf("seed demo products: %w", err)
		}
		logger.Info("demo catalog seeded")
	}

	orderMetrics := metrics.NewOrderMetrics()
	outboxMetrics := metrics.NewOutboxMetrics()
	httpMetrics := metrics.NewHTTPMetrics()
	idemMetrics := metrics.NewIdempotencyMetrics()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)

	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	idemStore, closeIdem := initIdempotency(workerCtx, cfg, healthHandler, idemMetrics, &workers, logger)
	defer closeIdem()

	checkoutSvc := checkout.NewService(deps.tx,
		checkout.WithLogger(log.WithField("component", "checkout")),
		checkout.WithMetrics(orderMetrics),
		checkout.WithMinShippingAddressLength(cfg.ShippingAddressMinLength),
	)
	router := httpapi.NewRouter(httpapi.Dependencies{
		Carts:       cart.NewService(deps.tx, log.WithField("component", "cart")),
		Orders:      checkoutSvc,
		Statuses:    orderstatus.NewService(deps.tx, log.WithField("component", "orderstatus"), orderMetrics),
		Idempotency: idemStore,
	}, httpapi.Options{
		Logger:             log.WithField("component", "http"),
		Metrics:            httpMetrics,
		IdempotencyMetrics: idemMetrics,
		RequestTimeout:     cfg.RequestTimeout,
	})

	var producer *kafka.Producer
	if cfg.kafkaEnabled() {
		producer, err = initKafkaProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Warn("outbox publishing is disabled")
		}
	} else {
		logger.Info("SHOP_KAFKA_BROKERS is empty, outbox messages stay pending")
	}
	defer closeKafkaProducer(producer, logger)

	var outboxDone chan struct{}
	if producer != nil {
		outboxDone = startOutboxWorker(workerCtx, cfg, deps, producer, outboxMetrics, logger)
	}

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	grpcServer, grpcHealth := newGRPCServer(logger)
	workers.Add(1)
	go func() {
		defer workers.Done()
		healthHandler.RunGRPCSync(workerCtx, grpcHealth, 5*time.Second, logger.WithField("component", "grpc-health"))
	}()

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	apiSrv := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("HTTP API слушает %s", httpLis.Addr())
		if err := apiSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Infof("gRPC health слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("server failed, shutting down")
	}

	shutdownHTTP(apiSrv, cfg.ShutdownTimeout, logger)
	stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
	shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
	shutdownOutboxWorker(stopWorkers, outboxDone, logger)
	workers.Wait()

	return runErr
}

// initIdempotency выбирает хранилище ключей: Redis, если задан адрес, иначе память
// с фоновой очисткой просроченных ключей.
func initIdempotency(ctx context.Context, cfg Config, h *healthcheck.Handler, m *metrics.IdempotencyMetrics, workers *sync.WaitGroup, logger *log.Entry) (idempotency.Store, func()) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := idempotency.NewRedisStore(client, cfg.IdempotencyTTL)
		h.RegisterChecker("redis", healthcheck.NewOptionalChecker("redis", store.Ping))
		logger.WithField("addr", cfg.RedisAddr).Info("idempotency keys are stored in redis")
		return store, func() {
			if err := client.Close(); err != nil {
				logger.WithError(err).Warn("failed to close redis client")
			}
		}
	}

	store := idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	cleanup := idempotency.NewCleanupWorker(store,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
		idempotency.WithMetrics(m),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	workers.Add(1)
	go func() {
		defer workers.Done()
		cleanup.Run(ctx)
	}()
	return store, func() {}
}

func startOutboxWorker(ctx context.Context, cfg Config, deps *runtimeDependencies, producer *kafka.Producer, m *metrics.OutboxMetrics, logger *log.Entry) chan struct{} {
	worker := outbox.NewWorker(
		deps.outboxRepo,
		kafka.NewOutboxPublisher(producer, cfg.OutboxTopic),
		outbox.Config{
			PollInterval:   cfg.OutboxPollInterval,
			BatchSize:      cfg.OutboxBatchSize,
			MaxAttempts:    cfg.OutboxMaxAttempts,
			RetryBaseDelay: cfg.OutboxRetryDelay,
		},
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(m),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.OutboxDLQTopic)),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()
	logger.WithField("topic", cfg.OutboxTopic).Info("outbox worker started")
	return done
}

// newGRPCServer создаёт gRPC-сервер со стандартным health-сервисом и reflection.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *grpchealth.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	grpcHealth := healthcheck.NewGRPCServer()
	healthpb.RegisterHealthServer(server, grpcHealth)
	reflection.Register(server)
	grpcMetrics.InitializeMetrics(server)
	return server, grpcHealth
}

// startMetricsServer запускает HTTP-обработчики /metrics и health-проб.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 0, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

// stopGRPC выполняет GracefulStop, а по таймауту принудительный Stop.
func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	if server == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// shutdownOutboxWorker останавливает worker и ждёт завершения текущего цикла.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("outbox worker stopped")
	case <-time.After(5 * time.Second):
		logger.Warn("outbox worker did not stop in time")
	}
}
