package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/logger"
)

// SetupRoutes sets up the API routes. metrics is served on /metrics when
// non-nil.
func SetupRoutes(handler *Handler, log *logger.Logger, metrics http.Handler) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger(log))

	// Health check
	router.GET("/health", handler.HealthCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		tickets := v1.Group("/tickets")
		{
			tickets.GET("", handler.ListTickets)
			tickets.GET("/:id", handler.GetTicket)
			tickets.GET("/:id/metrics", handler.GetTicketMetrics)
			tickets.GET("/:id/comments", handler.GetTicketComments)
		}

		satisfaction := v1.Group("/satisfaction")
		{
			satisfaction.GET("/summary", handler.GetSatisfactionSummary)
			satisfaction.GET("/channels", handler.GetChannelBreakdown)
		}

		v1.GET("/runs", handler.ListRuns)
	}

	return router
}
