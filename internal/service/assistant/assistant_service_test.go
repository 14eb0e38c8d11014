package assistant_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medconnect-service/internal/domain/usage"
	xerrors "medconnect-service/internal/pkg/errors"
	service "medconnect-service/internal/service/assistant"
)

type failingResponder struct{}

func (failingResponder) Name() string { return "failing" }

func (failingResponder) Reply(context.Context, string, string) (string, error) {
	return "", errors.New("quota exhausted")
}

type promptRecorder struct {
	system string
}

func (p *promptRecorder) Name() string { return "recorder" }

func (p *promptRecorder) Reply(_ context.Context, system, prompt string) (string, error) {
	p.system = system
	return "  " + prompt + "  ", nil
}

func TestChat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("echo", func(t *testing.T) {
		t.Parallel()
		s := service.NewAssistantService(service.EchoResponder{}, time.Second, zap.NewNop())

		reply, err := s.Chat(ctx, "u1", usage.ChannelConsultation, "  Is ibuprofen safe?  ")
		require.NoError(t, err)
		assert.Equal(t, "Is ibuprofen safe?", reply.Message)
		assert.Contains(t, reply.Reply, "Is ibuprofen safe?")
		assert.Equal(t, "echo", reply.Provider)
		assert.Equal(t, usage.ChannelConsultation, reply.Channel)
	})

	t.Run("channel picks the prompt", func(t *testing.T) {
		t.Parallel()
		rec := &promptRecorder{}
		s := service.NewAssistantService(rec, time.Second, zap.NewNop())

		reply, err := s.Chat(ctx, "u1", usage.ChannelSymptomChecker, "fever")
		require.NoError(t, err)
		assert.Equal(t, "fever", reply.Reply)
		assert.Contains(t, rec.system, "symptom checker")
	})

	t.Run("empty message", func(t *testing.T) {
		t.Parallel()
		s := service.NewAssistantService(service.EchoResponder{}, time.Second, zap.NewNop())

		_, err := s.Chat(ctx, "u1", usage.ChannelConsultation, "   ")
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("unknown channel", func(t *testing.T) {
		t.Parallel()
		s := service.NewAssistantService(service.EchoResponder{}, time.Second, zap.NewNop())

		_, err := s.Chat(ctx, "u1", usage.ChannelNone, "hello")
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()
		s := service.NewAssistantService(failingResponder{}, time.Second, zap.NewNop())

		_, err := s.Chat(ctx, "u1", usage.ChannelConsultation, "hello")
		assert.ErrorIs(t, err, xerrors.ErrAssistantUnavailable)
	})
}
