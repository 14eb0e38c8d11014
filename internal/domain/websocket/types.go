// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Usage events (server -> client)
	EventTypeUsageUpdated      EventType = "usage:updated"
	EventTypeUsageLimitReached EventType = "usage:limit_reached"

	// Usage requests (client -> server)
	EventTypeUsageSummary EventType = "usage:summary"
	EventTypeUsageCheck   EventType = "usage:check"

	// Subscription events
	EventTypeSubscriptionChanged EventType = "subscription:changed"

	// Channel management
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// ChannelType is a topic a client can subscribe to.
type ChannelType string

const (
	ChannelUsage        ChannelType = "usage"
	ChannelSubscription ChannelType = "subscription"
	ChannelSystem       ChannelType = "system"
)

// DefaultChannels are subscribed on connect.
var DefaultChannels = []ChannelType{ChannelUsage, ChannelSubscription, ChannelSystem}

// SubscribeRequest sent by client to subscribe to specific channels
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest sent by client to unsubscribe from channels
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UsageCheckRequest is the payload of a usage:check request.
type UsageCheckRequest struct {
	Action string `json:"action"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// LimitReachedData is pushed the moment a gated action is denied.
type LimitReachedData struct {
	Action     string `json:"action"`
	Current    int64  `json:"current"`
	Limit      int64  `json:"limit"`
	UpgradeURL string `json:"upgradeUrl"`
}

// SubscriptionChangedData is pushed after any tier or status change.
type SubscriptionChangedData struct {
	FromTier string `json:"fromTier"`
	ToTier   string `json:"toTier"`
	Status   string `json:"status"`
	Action   string `json:"action"`
}

// NewMessage stamps a message with a sortable id.
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
