package httpserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func (srv *HTTPServer) mapHandlers() {
	srv.gin.Use(gin.Recovery())
	srv.gin.Use(srv.requestID())
	srv.gin.Use(srv.requestLog())

	srv.gin.GET("/", srv.root)
	srv.gin.GET("/health", srv.healthCheck)

	// The :id segment is a user id on list/create/quick and a task id on
	// update/complete/delete. Gin requires one wildcard name per subtree.
	srv.gin.GET("/tasks", srv.listTasksQuery)
	srv.gin.GET("/tasks/:id", srv.listTasks)
	srv.gin.POST("/tasks/:id", srv.createTask)
	srv.gin.POST("/tasks/:id/quick", srv.quickTask)
	srv.gin.POST("/tasks/:id/complete", srv.completeTask)
	srv.gin.PUT("/tasks/:id", srv.updateTask)
	srv.gin.DELETE("/tasks/:id", srv.deleteTask)

	srv.gin.GET("/users/:id", srv.getUser)
	srv.gin.GET("/stats/:id", srv.stats)
	srv.gin.GET("/suggestions/:id", srv.suggestions)

	if srv.dispatcher != nil {
		srv.gin.POST("/webhook", srv.webhookRateLimit(), srv.webhook)
	}
}

// requestID tags every request so log lines can be correlated.
func (srv *HTTPServer) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (srv *HTTPServer) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		srv.logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}

// webhookRateLimit shields the ingress from bursts; Telegram retries
// rejected deliveries.
func (srv *HTTPServer) webhookRateLimit() gin.HandlerFunc {
	perMin := srv.ratePerMin
	if perMin <= 0 {
		perMin = 60
	}
	limiter := rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(429, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
