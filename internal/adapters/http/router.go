package http

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"github.com/sentryops/bypassguard/internal/logger"
)

// ginLogger returns a gin.HandlerFunc (middleware) that logs requests using our logger
func ginLogger() gin.HandlerFunc {
	log := logger.New("gin-http")

	return func(c *gin.Context) {
		// Start timer
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Calculate latency
		latency := time.Since(start)

		// Get status code and other details
		statusCode := c.Writer.Status()
		method := c.Request.Method
		clientIP := c.ClientIP()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		// Build log fields
		fields := []interface{}{
			"status", statusCode,
			"method", method,
			"path", path,
			"ip", clientIP,
			"latency_ms", latency.Milliseconds(),
		}

		if query != "" {
			fields = append(fields, "query", query)
		}

		if errorMessage != "" {
			fields = append(fields, "error", errorMessage)
		}

		// Log based on status code
		if statusCode >= 500 {
			log.Errorw("HTTP request error", fields...)
		} else if statusCode >= 400 {
			log.Warnw("HTTP request warning", fields...)
		} else {
			log.Infow("HTTP request", fields...)
		}
	}
}

// ginRecovery returns a gin.HandlerFunc (middleware) that recovers from panics and logs them
func ginRecovery() gin.HandlerFunc {
	log := logger.New("gin-recovery")

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// Get the full stack trace
				stack := debug.Stack()

				// Log the panic with full stack trace
				log.Errorw("Panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"ip", c.ClientIP(),
					"stack", string(stack),
				)

				// Also print to stderr for immediate visibility
				fmt.Printf("\n=== PANIC RECOVERED ===\n")
				fmt.Printf("Error: %v\n", err)
				fmt.Printf("Path: %s\n", c.Request.URL.Path)
				fmt.Printf("Method: %s\n", c.Request.Method)
				fmt.Printf("Client IP: %s\n", c.ClientIP())
				fmt.Printf("\nStack Trace:\n%s\n", string(stack))
				fmt.Printf("======================\n\n")

				// Abort with 500 status
				c.AbortWithStatus(500)
			}
		}()
		c.Next()
	}
}

// SetupRouter creates and configures the HTTP router
func SetupRouter(bypassService ports.BypassService, db ports.DatabaseAdapter) *gin.Engine {
	// Set Gin to release mode to disable debug logging
	gin.SetMode(gin.ReleaseMode)

	// Create router without default middleware
	router := gin.New()

	// Add custom recovery middleware (must be first)
	router.Use(ginRecovery())

	// Add custom logger middleware
	router.Use(ginLogger())

	handler := NewHandler(bypassService, db)

	api := router.Group("/api/v1")
	{
		api.POST("/requests", handler.SubmitRequest)
		api.GET("/requests", handler.ListRequests)
		api.GET("/requests/:id", handler.GetRequest)
		api.POST("/requests/:id/validate", handler.ValidateRequest)
		api.POST("/requests/:id/cancel", handler.CancelRequest)

		api.GET("/sensors/:id", handler.GetSensor)
		api.PUT("/sensors/:id/status", handler.UpdateSensorStatus)
	}

	// Health check
	router.GET("/health", handler.HealthCheck)

	return router
}
