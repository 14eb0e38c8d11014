// internal/handlers/websocket/websocket.go
package websocket

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"medconnect-service/internal/middleware"
	"medconnect-service/internal/pkg/response"
	ws "medconnect-service/internal/websocket"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins; "*" allows any.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	anyOrigin := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return anyOrigin || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// HandleConnection authenticates before upgrading, so a bad token gets a
// plain 401 instead of a socket that closes immediately.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		response.Unauthorized(c, "missing authorization token")
		return
	}

	auth, err := h.hub.AuthenticateClient(c.Request.Context(), token)
	switch {
	case errors.Is(err, ws.ErrInvalidToken):
		response.Unauthorized(c, "invalid or expired token")
		return
	case errors.Is(err, ws.ErrTokenRevoked):
		response.Unauthorized(c, "session has been revoked")
		return
	case err != nil:
		h.logger.Error("websocket auth failed", zap.String("ip", c.ClientIP()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to validate session", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", auth.UserID), zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, auth)
	h.hub.Register <- client

	h.logger.Debug("websocket client connected",
		zap.String("user_id", auth.UserID),
		zap.String("session_id", auth.SessionID))

	go client.WritePump()
	go client.ReadPump()
}

// GetStats reports open sockets per channel (admin only).
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "websocket stats", gin.H{
		"stats":     h.hub.Stats(),
		"timestamp": time.Now().UTC(),
	})
}
