// internal/service/assistant/assistant_service.go
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"medconnect-service/internal/domain/assistant"
	"medconnect-service/internal/domain/usage"
	xerrors "medconnect-service/internal/pkg/errors"
)

const disclaimer = "This is general information, not a diagnosis. Seek emergency care for severe or sudden symptoms."

var systemPrompts = map[usage.Channel]string{
	usage.ChannelConsultation: "You are MedConnect AI, a careful medical assistant. Answer health questions in plain " +
		"language, ask for missing context, and recommend seeing a doctor when appropriate. " + disclaimer,
	usage.ChannelSymptomChecker: "You are MedConnect AI's symptom checker. List likely causes from most to least " +
		"likely, flag red-flag symptoms, and suggest whether to self-care, book an appointment or seek urgent care. " + disclaimer,
}

type AssistantService struct {
	responder Responder
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewAssistantService(responder Responder, timeout time.Duration, logger *zap.Logger) *AssistantService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AssistantService{responder: responder, timeout: timeout, logger: logger, now: time.Now}
}

// Chat sends one message on a channel. Provider failures are reported as
// ErrAssistantUnavailable so the caller can release the usage reservation.
func (s *AssistantService) Chat(ctx context.Context, userID string, channel usage.Channel, message string) (*assistant.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", xerrors.ErrInvalidInput)
	}
	system, ok := systemPrompts[channel]
	if !ok {
		return nil, fmt.Errorf("%w: unknown channel %q", xerrors.ErrInvalidInput, channel)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	reply, err := s.responder.Reply(ctx, system, message)
	if err != nil {
		s.logger.Error("assistant reply failed",
			zap.String("user_id", userID),
			zap.String("provider", s.responder.Name()),
			zap.String("channel", string(channel)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", xerrors.ErrAssistantUnavailable, err)
	}

	s.logger.Debug("assistant replied",
		zap.String("user_id", userID),
		zap.String("provider", s.responder.Name()),
		zap.Duration("latency", s.now().Sub(start)))

	return &assistant.ChatReply{
		ID:        ulid.Make().String(),
		Channel:   channel,
		Message:   message,
		Reply:     strings.TrimSpace(reply),
		Provider:  s.responder.Name(),
		CreatedAt: s.now().UTC(),
	}, nil
}
