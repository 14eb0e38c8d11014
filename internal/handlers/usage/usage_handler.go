// internal/handlers/usage/usage_handler.go
package usage

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"medconnect-service/internal/domain/usage"
	"medconnect-service/internal/middleware"
	xerrors "medconnect-service/internal/pkg/errors"
	"medconnect-service/internal/pkg/response"
	service "medconnect-service/internal/service/usage"
)

type UsageHandler struct {
	usageService *service.UsageService
}

func NewUsageHandler(usageService *service.UsageService) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
	}
}

// GetSummary returns the dashboard summary for the current month
func (h *UsageHandler) GetSummary(c *gin.Context) {
	userID := middleware.MustGetIdentity(c).UserID

	result, err := h.usageService.Summary(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to get usage summary", err)
		return
	}

	response.Success(c, http.StatusOK, "usage summary retrieved", result)
}

// CheckAction reports whether the caller may perform an action. It never counts.
func (h *UsageHandler) CheckAction(c *gin.Context) {
	userID := middleware.MustGetIdentity(c).UserID

	action, err := usage.ParseAction(c.Param("action"))
	if err != nil {
		response.ValidationError(c, "invalid action", fmt.Errorf("%w: %s", xerrors.ErrUnknownAction, c.Param("action")))
		return
	}

	result, err := h.usageService.Check(c.Request.Context(), userID, action)
	if err != nil {
		response.FromError(c, "failed to check usage limit", err)
		return
	}

	response.Success(c, http.StatusOK, "usage limit checked", result)
}

func (h *UsageHandler) GetCurrent(c *gin.Context) {
	userID := middleware.MustGetIdentity(c).UserID

	result, err := h.usageService.Current(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to get current usage", err)
		return
	}

	response.Success(c, http.StatusOK, "current usage retrieved", result)
}

func (h *UsageHandler) GetHistory(c *gin.Context) {
	userID := middleware.MustGetIdentity(c).UserID

	var q usage.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.usageService.History(c.Request.Context(), userID, q)
	if err != nil {
		response.FromError(c, "failed to get usage history", err)
		return
	}

	response.Success(c, http.StatusOK, "usage history retrieved", result)
}

// ========== Admin Endpoints ==========

func (h *UsageHandler) GetAnalytics(c *gin.Context) {
	var q usage.AnalyticsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.usageService.Analytics(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, "failed to get usage analytics", err)
		return
	}

	response.Success(c, http.StatusOK, "usage analytics retrieved", result)
}

// ResetUsage zeroes a user's current period record
func (h *UsageHandler) ResetUsage(c *gin.Context) {
	userID := c.Param("userId")

	var req usage.ResetRequest
	// the body is optional; period defaults to monthly
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ValidationError(c, "invalid request", err)
			return
		}
	}

	result, err := h.usageService.Reset(c.Request.Context(), userID, req)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "no usage record found for the current period")
			return
		}
		response.FromError(c, "failed to reset usage", err)
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}
