package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"student-service/api/swagger"
	"student-service/internal/adapter/gin/handler"
	"student-service/internal/adapter/gin/middleware"
	"student-service/internal/adapter/ratelimit"
)

// Route prefixes. Both serve the same student API.
const (
	StudentsPath   = "/students"
	APIStudentPath = "/api/v1/students"
	swaggerDocPath = "/students.swagger.json"
)

// Options tunes the engine.
type Options struct {
	// MaxMultipartMemory bounds the part of a multipart body kept in memory;
	// the rest spills to temporary files.
	MaxMultipartMemory int64
	Debug              bool
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(
	studentHandler *handler.StudentHandler,
	healthHandler *handler.HealthHandler,
	limiter *ratelimit.Limiter,
	log *zap.Logger,
	opts Options,
) *gin.Engine {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if opts.MaxMultipartMemory > 0 {
		router.MaxMultipartMemory = opts.MaxMultipartMemory
	}

	// Global middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))

	router.GET("/health", healthHandler.Health)

	swaggerUI := httpSwagger.Handler(httpSwagger.URL("/swagger" + swaggerDocPath))
	router.GET("/swagger/*any", func(c *gin.Context) {
		if c.Param("any") == swaggerDocPath {
			c.Data(http.StatusOK, "application/json", swagger.Spec)
			return
		}
		swaggerUI(c.Writer, c.Request)
	})

	for _, prefix := range []string{StudentsPath, APIStudentPath} {
		students := router.Group(prefix, middleware.RateLimiter(limiter))
		{
			students.POST("", studentHandler.CreateStudent)
			students.GET("", studentHandler.ListStudents)
			students.GET("/:id", studentHandler.GetStudent)
			students.GET("/:id/photo", studentHandler.GetPhoto)
			students.PUT("/:id", studentHandler.UpdateStudent)
			students.DELETE("/:id", studentHandler.DeleteStudent)
		}
	}

	return router
}
