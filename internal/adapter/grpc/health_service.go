package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

// HealthService implements grpc.health.v1.Health. The serving status of
// both the server ("") and the named service follows the dependency checks.
type HealthService struct {
	*health.Server
	service string
	checks  map[string]Check
	timeout time.Duration
	log     *zap.Logger
}

// NewHealthService creates a health service reporting SERVING until the
// first probe says otherwise.
func NewHealthService(service string, checks map[string]Check, log *zap.Logger) *HealthService {
	h := &HealthService{
		Server:  health.NewServer(),
		service: service,
		checks:  checks,
		timeout: 2 * time.Second,
		log:     log,
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return h
}

func (h *HealthService) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.SetServingStatus("", status)
	h.SetServingStatus(h.service, status)
}

// Probe runs every check once and updates the serving status.
func (h *HealthService) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	h.set(status)
	return status
}

// Run probes every interval until ctx is done.
func (h *HealthService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}
