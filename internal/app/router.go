// internal/app/router.go
package app

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medconnect-service/internal/config"
	"medconnect-service/internal/domain/usage"
	adminHandler "medconnect-service/internal/handlers/admin"
	appointmentHandler "medconnect-service/internal/handlers/appointment"
	assistantHandler "medconnect-service/internal/handlers/assistant"
	healthHandler "medconnect-service/internal/handlers/health"
	subscriptionHandler "medconnect-service/internal/handlers/subscription"
	usageHandler "medconnect-service/internal/handlers/usage"
	wsHandler "medconnect-service/internal/handlers/websocket"
	"medconnect-service/internal/middleware"
	"medconnect-service/internal/pkg/jwt"
	usageUsecase "medconnect-service/internal/service/usage"
)

type Handlers struct {
	UsageHandler        *usageHandler.UsageHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	AdminHandler        *adminHandler.AdminHandler
	AssistantHandler    *assistantHandler.AssistantHandler
	AppointmentHandler  *appointmentHandler.AppointmentHandler
	HealthHandler       *healthHandler.HealthHandler
	WSHandler           *wsHandler.WebSocketHandler
	AuthMiddleware      *middleware.AuthMiddleware

	UsageGate middleware.UsageGate
	// RateLimiter may be nil, which turns API rate limiting off.
	RateLimiter middleware.RateChecker
}

func SetupRouter(r *gin.Engine, cfg config.AppConfig, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api")

	// ==================== Health Check ====================
	api.GET("/health", h.HealthHandler.Health)

	// ==================== WebSocket ====================
	api.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Public Plans ====================
	api.GET("/subscriptions/plans", h.SubscriptionHandler.ListPlans)

	// Everything below requires a token.
	authed := []gin.HandlerFunc{h.AuthMiddleware.Auth()}
	if h.RateLimiter != nil {
		authed = append(authed, middleware.RateLimit(h.RateLimiter, "api", cfg.APIRateLimit, cfg.APIRateWindow, logger))
	}
	admin := h.AuthMiddleware.RequireRole(jwt.RoleAdmin)

	gate := func(action usage.Action, channel usage.Channel) gin.HandlerFunc {
		return middleware.UsageGateMiddleware(h.UsageGate, action, channel, usageUsecase.UpgradeURL, logger)
	}

	// ==================== Usage ====================
	usageRoutes := api.Group("/usage", authed...)
	{
		usageRoutes.GET("/summary", h.UsageHandler.GetSummary)
		usageRoutes.GET("/check/:action", h.UsageHandler.CheckAction)
		usageRoutes.GET("/current", h.UsageHandler.GetCurrent)
		usageRoutes.GET("/history", h.UsageHandler.GetHistory)
		usageRoutes.GET("/analytics", admin, h.UsageHandler.GetAnalytics)
		usageRoutes.POST("/reset/:userId", admin, h.UsageHandler.ResetUsage)
	}

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscriptions", authed...)
	{
		subscriptions.GET("/current", h.SubscriptionHandler.GetCurrent)
		subscriptions.POST("/update", h.SubscriptionHandler.UpdateSubscription)
		subscriptions.POST("/cancel", h.SubscriptionHandler.CancelSubscription)
		subscriptions.GET("/history", h.SubscriptionHandler.GetHistory)
		subscriptions.GET("/analytics", admin, h.SubscriptionHandler.GetAnalytics)
	}

	// ==================== AI Assistant ====================
	ai := api.Group("/ai", authed...)
	{
		ai.POST("/chat", gate(usage.ActionAIMessage, usage.ChannelConsultation), h.AssistantHandler.Chat)
		ai.POST("/symptom", gate(usage.ActionAIMessage, usage.ChannelSymptomChecker), h.AssistantHandler.SymptomCheck)
	}

	// ==================== Appointments ====================
	appointments := api.Group("/appointments", authed...)
	{
		appointments.POST("", gate(usage.ActionAppointment, usage.ChannelNone), h.AppointmentHandler.Book)
		appointments.GET("", h.AppointmentHandler.List)
		appointments.POST("/:id/cancel", h.AppointmentHandler.Cancel)
	}

	// ==================== Admin ====================
	adminRoutes := api.Group("/admin", append(authed, admin)...)
	{
		adminRoutes.GET("/users-with-subscriptions", h.AdminHandler.ListUsers)
		adminRoutes.POST("/change-user-plan", h.AdminHandler.ChangeUserPlan)
		adminRoutes.POST("/bulk-change-plans", h.AdminHandler.BulkChangePlans)
		adminRoutes.GET("/plan-change-logs", h.AdminHandler.ListPlanChangeLogs)
		adminRoutes.GET("/subscription-stats", h.AdminHandler.GetStats)
		adminRoutes.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
