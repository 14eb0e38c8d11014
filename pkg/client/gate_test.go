package client_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect-service/pkg/client"
)

type checkerFunc func(ctx context.Context, action client.Action) (*client.CheckResult, error)

func (f checkerFunc) CheckAction(ctx context.Context, action client.Action) (*client.CheckResult, error) {
	return f(ctx, action)
}

func answer(res *client.CheckResult, err error) checkerFunc {
	return func(context.Context, client.Action) (*client.CheckResult, error) { return res, err }
}

func TestCheckActionLimitFailsClosed(t *testing.T) {
	t.Parallel()

	gate := client.NewGate(answer(nil, errors.New("network down")), nil)

	res, err := gate.CheckActionLimit(context.Background(), client.ActionAIMessage)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Allowed)
	assert.Equal(t, client.ReasonError, res.Reason)
}

func TestCheckActionLimitPassesAnswer(t *testing.T) {
	t.Parallel()

	gate := client.NewGate(answer(&client.CheckResult{Allowed: true, Current: 1, Limit: 3, Remaining: 2}, nil), nil)

	res, err := gate.CheckActionLimit(context.Background(), client.ActionAIMessage)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(2), res.Remaining)
}

func TestCheckAndExecuteAction(t *testing.T) {
	t.Parallel()

	slow := checkerFunc(func(ctx context.Context, _ client.Action) (*client.CheckResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	tests := []struct {
		name       string
		checker    client.ActionChecker
		wantRun    bool
		failedOpen bool
		modalOpen  bool
	}{
		{
			name:    "allowed",
			checker: answer(&client.CheckResult{Allowed: true, Current: 1, Limit: 3, Remaining: 2}, nil),
			wantRun: true,
		},
		{
			name:      "denied opens the modal",
			checker:   answer(&client.CheckResult{Allowed: false, Current: 3, Limit: 3}, nil),
			modalOpen: true,
		},
		{
			name:       "check error fails open",
			checker:    answer(nil, errors.New("network down")),
			wantRun:    true,
			failedOpen: true,
		},
		{
			name:       "empty answer fails open",
			checker:    answer(nil, nil),
			wantRun:    true,
			failedOpen: true,
		},
		{
			name:       "timeout fails open",
			checker:    slow,
			wantRun:    true,
			failedOpen: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			modal := client.NewLimitModal()
			gate := client.NewGate(tt.checker, modal, client.WithCheckTimeout(20*time.Millisecond))

			var runs atomic.Int32
			out, err := gate.CheckAndExecuteAction(context.Background(), client.ActionAIMessage, func(context.Context) error {
				runs.Add(1)
				return nil
			})
			require.NoError(t, err)

			if tt.wantRun {
				assert.Equal(t, int32(1), runs.Load())
			} else {
				assert.Zero(t, runs.Load())
			}
			assert.Equal(t, tt.wantRun, out.Executed)
			assert.Equal(t, tt.failedOpen, out.FailedOpen)
			assert.Equal(t, tt.modalOpen, modal.IsOpen())

			if tt.modalOpen {
				data := modal.Data()
				require.NotNil(t, data)
				assert.Equal(t, client.ActionAIMessage, data.LimitType)
				assert.Equal(t, int64(3), data.CurrentUsage.Current)
				assert.Equal(t, int64(3), data.CurrentUsage.Limit)
			}
		})
	}
}

func TestCheckAndExecuteActionReturnsCallbackError(t *testing.T) {
	t.Parallel()

	gate := client.NewGate(answer(&client.CheckResult{Allowed: true}, nil), nil)
	boom := errors.New("booking failed")

	out, err := gate.CheckAndExecuteAction(context.Background(), client.ActionAppointment, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, out.Executed)
}

func TestCheckAndExecuteActionCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked := checkerFunc(func(ctx context.Context, _ client.Action) (*client.CheckResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	gate := client.NewGate(blocked, nil)

	out, err := gate.CheckAndExecuteAction(ctx, client.ActionAIMessage, func(context.Context) error {
		t.Error("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, out.Executed)
}
