// internal/handlers/assistant/assistant_handler.go
package assistant

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medconnect-service/internal/domain/assistant"
	"medconnect-service/internal/domain/usage"
	"medconnect-service/internal/middleware"
	"medconnect-service/internal/pkg/response"
	service "medconnect-service/internal/service/assistant"
)

// AssistantHandler serves the AI chat endpoints. Both routes sit behind the
// usage gate for aiMessage.
type AssistantHandler struct {
	assistantService *service.AssistantService
}

func NewAssistantHandler(assistantService *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
	}
}

func (h *AssistantHandler) Chat(c *gin.Context) {
	h.reply(c, usage.ChannelConsultation)
}

func (h *AssistantHandler) SymptomCheck(c *gin.Context) {
	h.reply(c, usage.ChannelSymptomChecker)
}

func (h *AssistantHandler) reply(c *gin.Context, channel usage.Channel) {
	userID := middleware.MustGetIdentity(c).UserID

	var req assistant.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.assistantService.Chat(c.Request.Context(), userID, channel, req.Message)
	if err != nil {
		response.FromError(c, "failed to get assistant reply", err)
		return
	}

	response.Success(c, http.StatusOK, "assistant replied", result)
}
