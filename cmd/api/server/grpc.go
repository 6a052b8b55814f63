package server

import (
	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcadapter "student-service/internal/adapter/grpc"
	"student-service/internal/adapter/grpc/middleware"
	"student-service/internal/adapter/ratelimit"
	"student-service/pkg/logger"
)

// SetupGRPC creates the gRPC server exposing grpc.health.v1.Health.
func SetupGRPC(healthService *grpcadapter.HealthService, limiter *ratelimit.Limiter, l *zap.Logger) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			logger.LoggingInterceptor(l),
			middleware.NewRateLimiter(limiter, l).UnaryInterceptor(),
		),
	)
	healthpb.RegisterHealthServer(grpcServer, healthService)

	return grpcServer
}
