package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	invH "github.com/fekuna/omnipos-inventory-service/internal/inventory/handler"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/jobs"
	invListenerPkg "github.com/fekuna/omnipos-inventory-service/internal/inventory/listener"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/notifier"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/sweep"
	invUCPkg "github.com/fekuna/omnipos-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"github.com/fekuna/omnipos-inventory-service/internal/metrics"
	"github.com/fekuna/omnipos-inventory-service/internal/platform/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func normalizePort(port string) string {
	if !strings.HasPrefix(port, ":") {
		return ":" + port
	}
	return port
}

// engine holds the wired use case plus everything that must be released on
// shutdown.
type engine struct {
	uc      invUCPkg.InventoryUseCase
	sweeper *sweep.Sweeper
	closers []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func buildEngine(ctx context.Context, cfg *config.Config, log logger.ZapLogger, m *metrics.Metrics) (*engine, error) {
	e := &engine{}

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, closeStore)

	locker, closeLocker, err := openLocker(ctx, cfg, log)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.closers = append(e.closers, closeLocker)

	opts := []invUCPkg.Option{
		invUCPkg.WithMetrics(m),
		invUCPkg.WithReservationTTL(cfg.Inventory.ReservationTTL),
	}
	if cfg.Kafka.Enabled {
		writer := notifier.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
		alerts := notifier.NewKafkaNotifier(writer)
		e.closers = append(e.closers, func() { _ = alerts.Close() })
		opts = append(opts, invUCPkg.WithNotifier(alerts))
		log.Info("Publishing inventory alerts", zap.String("topic", cfg.Kafka.AlertTopic))
	}

	e.uc = invUCPkg.NewInventoryUseCase(repo, locker, log, opts...)
	e.sweeper = sweep.New(e.uc, log, cfg.Inventory.SweepBatchSize, time.Now)
	return e, nil
}

func runServe(parent context.Context) error {
	// 1. Load Configuration
	cfg := loadConfig()

	// 2. Initialize Logger
	appLogger := newLogger(cfg)
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing
	shutdownTracing, err := observability.SetupTracingSDK(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			appLogger.Warn("Tracing shutdown failed", zap.Error(err))
		}
	}()

	// 4. Store, locks, use case
	invMetrics := metrics.New(prometheus.DefaultRegisterer)
	eng, err := buildEngine(ctx, cfg, appLogger, invMetrics)
	if err != nil {
		return err
	}
	defer eng.Close()

	// 5. Background jobs
	scheduler := jobs.NewScheduler(eng.uc, eng.sweeper, appLogger, jobs.Config{
		SweepInterval:         cfg.Inventory.SweepInterval,
		LowStockCheckInterval: cfg.Inventory.LowStockCheckInterval,
	})
	go scheduler.Start(ctx)

	// 6. Order events
	if cfg.Kafka.Enabled {
		reader := invListenerPkg.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
		defer reader.Close()
		invListener := invListenerPkg.NewInventoryListener(reader, eng.uc, scheduler, appLogger)
		go invListener.Start(ctx)
		appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// 7. Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              normalizePort(cfg.Server.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// 8. Start gRPC Server
	port := normalizePort(cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", port)
	if err != nil {
		return fmt.Errorf("listen %s: %w", port, err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(auth.UnaryServerInterceptor()),
	)
	invH.RegisterInventoryServiceServer(grpcServer, invH.NewInventoryHandler(eng.uc, eng.sweeper, appLogger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(invH.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			appLogger.Error("failed to serve", zap.Error(err))
		}
	}

	// Graceful Shutdown
	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	appLogger.Info("Server stopped")
	return nil
}

func runSweep(parent context.Context) error {
	cfg := loadConfig()
	appLogger := newLogger(cfg)
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg, appLogger, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.sweeper.Run(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	appLogger.Info("Sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("expired", res.Expired),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return nil
}
