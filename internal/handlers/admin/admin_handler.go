// internal/handlers/admin/admin_handler.go
package admin

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"medconnect-service/internal/domain/subscription"
	"medconnect-service/internal/middleware"
	"medconnect-service/internal/pkg/response"
	service "medconnect-service/internal/service/subscription"
)

// AdminHandler serves plan management for administrators.
type AdminHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewAdminHandler(subscriptionService *service.SubscriptionService) *AdminHandler {
	return &AdminHandler{
		subscriptionService: subscriptionService,
	}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	var q subscription.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.subscriptionService.ListUsers(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, "failed to list users", err)
		return
	}

	response.Success(c, http.StatusOK, "users retrieved", result)
}

// ChangeUserPlan sets a user's tier manually
func (h *AdminHandler) ChangeUserPlan(c *gin.Context) {
	admin := middleware.CurrentUser(c)

	var req subscription.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.ChangeUserPlan(c.Request.Context(), admin, req)
	if err != nil {
		response.FromError(c, "failed to change user plan", err)
		return
	}

	response.Success(c, http.StatusOK,
		fmt.Sprintf("plan changed from %s to %s", result.FromTier, result.ToTier), result)
}

func (h *AdminHandler) BulkChangePlans(c *gin.Context) {
	admin := middleware.CurrentUser(c)

	var req subscription.BulkChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.BulkChangePlans(c.Request.Context(), admin, req)
	if err != nil {
		response.FromError(c, "failed to change plans", err)
		return
	}

	response.Success(c, http.StatusOK,
		fmt.Sprintf("bulk change completed: %d successful, %d failed", result.Summary.Successful, result.Summary.Failed),
		result)
}

func (h *AdminHandler) ListPlanChangeLogs(c *gin.Context) {
	var q subscription.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.subscriptionService.PlanChangeLogs(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, "failed to list plan changes", err)
		return
	}

	response.Success(c, http.StatusOK, "plan change logs retrieved", result)
}

func (h *AdminHandler) GetStats(c *gin.Context) {
	result, err := h.subscriptionService.Stats(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to get subscription stats", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription stats retrieved", result)
}
