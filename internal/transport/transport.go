package transport

import (
	"time"

	"github.com/ds124wfegd/notification-engine/internal/service"
	"github.com/ds124wfegd/notification-engine/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

func InitRoutes(svc service.NotificationService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(10))

	handler := NewNotificationHandler(svc)

	api := router.Group("/api/v1")
	{
		api.POST("/notifications", handler.Publish)
		api.GET("/notifications/pending", handler.FetchPending)
		api.GET("/notifications/:id", handler.GetNotification)
		api.POST("/notifications/:id/read", handler.MarkAsRead)
		api.POST("/notifications/:id/ack", handler.Acknowledge)
		api.POST("/notifications/:id/dismiss", handler.Dismiss)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"service":   "notification-engine",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	return router
}
