package api

import (
	"net/http"

	activityDelivery "crono-backend/internal/activity/delivery"
	"crono-backend/internal/auth/delivery"
	authUsecase "crono-backend/internal/auth/usecase"
	notificationDelivery "crono-backend/internal/notification/delivery"

	"github.com/gin-gonic/gin"
)

// Routes bundles what SetupRoutes mounts
type Routes struct {
	Tokens   authUsecase.TokenUsecase
	Activity *activityDelivery.ActivityHandler
	Scan     *activityDelivery.ScanHandler
	Devices  *notificationDelivery.DeviceHandler
	Settings ScanSettings
}

func SetupRoutes(r *gin.Engine, routes Routes) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Manual trigger for external cron, guarded by CRON_SECRET
		notifications := api.Group("/notifications")
		{
			notifications.POST("/check-overdue", routes.Scan.CheckOverdue)
		}

		// Activity routes (protected)
		activities := api.Group("/activities")
		activities.Use(delivery.AuthMiddleware(routes.Tokens))
		{
			activities.GET("/completed", routes.Activity.ListCompleted)
			activities.PATCH("/:id/completed", routes.Activity.SetCompleted)
		}

		// Device routes (protected)
		devices := api.Group("/devices")
		devices.Use(delivery.AuthMiddleware(routes.Tokens))
		{
			devices.POST("", routes.Devices.RegisterDevice)
			devices.DELETE("/:token", routes.Devices.UnregisterDevice)
		}

		settings := api.Group("/settings")
		settings.Use(delivery.AuthMiddleware(routes.Tokens))
		{
			settings.GET("/scan", GetScanSettings(routes.Settings))
		}
	}
}
