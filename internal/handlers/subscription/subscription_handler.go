// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medconnect-service/internal/domain/subscription"
	"medconnect-service/internal/middleware"
	"medconnect-service/internal/pkg/response"
	service "medconnect-service/internal/service/subscription"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// ListPlans returns the public plan catalog
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	response.Success(c, http.StatusOK, "plans retrieved", h.subscriptionService.Plans())
}

// GetCurrent returns the caller's subscription with usage and billing history
func (h *SubscriptionHandler) GetCurrent(c *gin.Context) {
	user := middleware.CurrentUser(c)

	result, err := h.subscriptionService.Current(c.Request.Context(), user)
	if err != nil {
		response.FromError(c, "failed to get subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", result)
}

// UpdateSubscription moves the caller to another tier
func (h *SubscriptionHandler) UpdateSubscription(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req subscription.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.Update(c.Request.Context(), user, req)
	if err != nil {
		response.FromError(c, "failed to update subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription "+string(result.Action), result)
}

func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req subscription.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ValidationError(c, "invalid request", err)
			return
		}
	}

	result, err := h.subscriptionService.Cancel(c.Request.Context(), user, req)
	if err != nil {
		response.FromError(c, "failed to cancel subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription cancelled", result)
}

// GetHistory lists the caller's subscription events
func (h *SubscriptionHandler) GetHistory(c *gin.Context) {
	userID := middleware.MustGetIdentity(c).UserID
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.subscriptionService.History(c.Request.Context(), userID, limit)
	if err != nil {
		response.FromError(c, "failed to get subscription history", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription history retrieved", result)
}

// GetAnalytics is admin only
func (h *SubscriptionHandler) GetAnalytics(c *gin.Context) {
	result, err := h.subscriptionService.Analytics(c.Request.Context(), c.Query("period"))
	if err != nil {
		response.FromError(c, "failed to get subscription analytics", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription analytics retrieved", result)
}
