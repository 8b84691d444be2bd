package health

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName — имя сервиса в grpc.health.v1.
const ServiceName = "shop.OrderCore"

// NewGRPCServer создаёт стандартный health-сервер в статусе NOT_SERVING
// до первой синхронизации.
func NewGRPCServer() *grpchealth.Server {
	srv := grpchealth.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return srv
}

// SyncGRPC выставляет статус gRPC health по результату Evaluate.
// degraded считается обслуживающим состоянием.
func (h *Handler) SyncGRPC(ctx context.Context, srv *grpchealth.Server) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if h.Evaluate(ctx).Status == StatusUnhealthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	srv.SetServingStatus("", status)
	srv.SetServingStatus(ServiceName, status)
	return status
}

// RunGRPCSync периодически синхронизирует статус до отмены ctx,
// после чего переводит сервер в NOT_SERVING.
func (h *Handler) RunGRPCSync(ctx context.Context, srv *grpchealth.Server, interval time.Duration, logger *log.Entry) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = log.WithField("component", "grpc-health")
	}

	last := h.SyncGRPC(ctx, srv)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			srv.Shutdown()
			return
		case <-ticker.C:
			current := h.SyncGRPC(ctx, srv)
			if current != last {
				logger.WithField("status", current.String()).Info("grpc health status changed")
				last = current
			}
		}
	}
}
