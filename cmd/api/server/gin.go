package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	ginhandler "student-service/internal/adapter/gin/handler"
	ginrouter "student-service/internal/adapter/gin/router"
	"student-service/internal/adapter/ratelimit"
)

// multipartMemory is the in-memory part of an upload; larger photos spill
// to temporary files.
const multipartMemory = 8 << 20

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	studentHandler *ginhandler.StudentHandler,
	healthHandler *ginhandler.HealthHandler,
	limiter *ratelimit.Limiter,
	ginAddr string,
	debug bool,
	l *zap.Logger,
) *http.Server {
	router := ginrouter.SetupRouter(studentHandler, healthHandler, limiter, l, ginrouter.Options{
		MaxMultipartMemory: multipartMemory,
		Debug:              debug,
	})

	l.Info("Gin REST API configured", zap.String("address", ginAddr))
	l.Info("Swagger UI available at", zap.String("url", "http://localhost"+ginAddr+"/swagger/index.html"))

	return &http.Server{
		Addr:              ginAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
