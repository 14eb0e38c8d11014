// internal/domain/assistant/dto.go
package assistant

import (
	"time"

	"medconnect-service/internal/domain/usage"
)

// ChatRequest is the body of POST /ai/chat and POST /ai/symptom.
type ChatRequest struct {
	Message string `json:"message" binding:"required,max=4000"`
}

type ChatReply struct {
	ID        string        `json:"id"`
	Channel   usage.Channel `json:"channel"`
	Message   string        `json:"message"`
	Reply     string        `json:"reply"`
	Provider  string        `json:"provider"`
	CreatedAt time.Time     `json:"createdAt"`
}
