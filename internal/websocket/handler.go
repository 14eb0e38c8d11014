// internal/websocket/handler.go
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	wstypes "medconnect-service/internal/domain/websocket"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// MessageHandler answers client requests for a set of events.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// HandlerRegistry routes inbound events. An event belongs to one handler.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[wstypes.EventType]MessageHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[wstypes.EventType]MessageHandler)}
}

// Register claims every event handler supports. Nothing is registered if one
// of them is already taken.
func (r *HandlerRegistry) Register(handler MessageHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := handler.SupportedEvents()
	for _, ev := range events {
		if _, taken := r.handlers[ev]; taken {
			return fmt.Errorf("websocket: event %s already has a handler", ev)
		}
	}
	for _, ev := range events {
		r.handlers[ev] = handler
	}
	return nil
}

func (r *HandlerRegistry) Lookup(ev wstypes.EventType) (MessageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[ev]
	return h, ok
}

// DecodeData reads a request payload into target. Payloads arrive as
// generic JSON values, so they take one marshal round trip.
func DecodeData(data interface{}, target interface{}) error {
	if raw, ok := data.(json.RawMessage); ok {
		return json.Unmarshal(raw, target)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
