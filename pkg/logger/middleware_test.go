package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestRequestIDInterceptor_GeneratesID(t *testing.T) {
	var seen string
	_, err := RequestIDInterceptor()(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) {
		seen = GetRequestID(ctx)
		return nil, nil
	})

	require.NoError(t, err)
	assert.Len(t, seen, 36)
}

func TestRequestIDInterceptor_KeepsIncomingID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "abc-123"))

	var seen string
	_, err := RequestIDInterceptor()(ctx, nil, testInfo, func(ctx context.Context, req any) (any, error) {
		seen = GetRequestID(ctx)
		return nil, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "abc-123", seen)
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	ctx := WithRequestID(context.Background(), "req-1")
	_, err := LoggingInterceptor(log)(ctx, nil, testInfo, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})

	require.Error(t, err)
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "Unavailable", fields["code"])
	assert.Equal(t, testInfo.FullMethod, fields["method"])
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	WithContext(context.Background(), log).Info("no id")
	WithContext(WithRequestID(context.Background(), "r-9"), log).Info("with id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0].ContextMap(), "request_id")
	assert.Equal(t, "r-9", entries[1].ContextMap()["request_id"])
}
