// internal/websocket/handler/usage.go
package handler

import (
	"context"
	"fmt"

	"medconnect-service/internal/domain/usage"
	wstypes "medconnect-service/internal/domain/websocket"
	ws "medconnect-service/internal/websocket"
)

// UsageReader answers usage questions for a user.
type UsageReader interface {
	Summary(ctx context.Context, userID string) (*usage.Summary, error)
	Check(ctx context.Context, userID string, action usage.Action) (*usage.CheckResult, error)
}

// UsageHandler serves usage:summary and usage:check requests over the socket.
type UsageHandler struct {
	usage UsageReader
}

func NewUsageHandler(u UsageReader) *UsageHandler {
	return &UsageHandler{usage: u}
}

func (h *UsageHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeUsageSummary,
		wstypes.EventTypeUsageCheck,
	}
}

func (h *UsageHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeUsageSummary:
		summary, err := h.usage.Summary(ctx, client.UserID())
		if err != nil {
			return fmt.Errorf("load usage summary: %w", err)
		}
		client.SendMessage(wstypes.NewMessage(wstypes.EventTypeUsageSummary, summary))
		return nil

	case wstypes.EventTypeUsageCheck:
		var req wstypes.UsageCheckRequest
		if err := ws.DecodeData(msg.Data, &req); err != nil {
			return fmt.Errorf("invalid usage check request: %w", err)
		}
		action, err := usage.ParseAction(req.Action)
		if err != nil {
			return err
		}
		res, err := h.usage.Check(ctx, client.UserID(), action)
		if err != nil {
			return fmt.Errorf("check usage: %w", err)
		}
		client.SendMessage(wstypes.NewMessage(wstypes.EventTypeUsageCheck, map[string]interface{}{
			"action": action,
			"result": res,
		}))
		return nil

	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}
