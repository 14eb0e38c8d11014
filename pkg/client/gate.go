// pkg/client/gate.go
package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultCheckTimeout bounds how long CheckAndExecuteAction waits for the
// server before running the action anyway.
const DefaultCheckTimeout = 5 * time.Second

// ActionChecker is satisfied by *Client.
type ActionChecker interface {
	CheckAction(ctx context.Context, action Action) (*CheckResult, error)
}

type GateOption func(*Gate)

func WithCheckTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithGateLogger(logger *zap.Logger) GateOption {
	return func(g *Gate) { g.logger = logger }
}

// Gate guards actions that count against a usage limit.
type Gate struct {
	checker ActionChecker
	modal   *LimitModal
	timeout time.Duration
	logger  *zap.Logger
}

// NewGate returns a gate that opens modal on denials. modal may be nil.
func NewGate(checker ActionChecker, modal *LimitModal, opts ...GateOption) *Gate {
	g := &Gate{
		checker: checker,
		modal:   modal,
		timeout: DefaultCheckTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckActionLimit asks whether action may run now. It fails closed: when the
// check errors the result is a denial with reason "error", and the error is
// returned alongside it.
func (g *Gate) CheckActionLimit(ctx context.Context, action Action) (*CheckResult, error) {
	res, err := g.checker.CheckAction(ctx, action)
	if err == nil && res == nil {
		err = errors.New("empty check result")
	}
	if err != nil {
		return &CheckResult{Allowed: false, Reason: ReasonError}, err
	}
	return res, nil
}

// Outcome reports what CheckAndExecuteAction did.
type Outcome struct {
	// Executed is true when the callback ran.
	Executed bool
	// FailedOpen is true when the callback ran because the check failed or timed out.
	FailedOpen bool
	// Check is the server answer; nil when the check failed.
	Check *CheckResult
}

// CheckAndExecuteAction runs fn only if the server allows action. On a
// denial fn is not called and the limit modal opens. If the check errors or
// takes longer than the check timeout the gate fails open and calls fn
// anyway. fn runs at most once and its error is returned as is. If ctx is
// cancelled before a decision, fn is not called and ctx.Err() is returned.
func (g *Gate) CheckAndExecuteAction(ctx context.Context, action Action, fn func(context.Context) error) (Outcome, error) {
	type answer struct {
		res *CheckResult
		err error
	}

	checkCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch := make(chan answer, 1)
	go func() {
		res, err := g.checker.CheckAction(checkCtx, action)
		ch <- answer{res: res, err: err}
	}()

	var (
		a        answer
		timedOut bool
	)
	select {
	case a = <-ch:
	case <-checkCtx.Done():
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		timedOut = true
	}

	if timedOut || a.err != nil || a.res == nil {
		fields := []zap.Field{zap.String("action", string(action)), zap.Bool("timed_out", timedOut)}
		if a.err != nil {
			fields = append(fields, zap.Error(a.err))
		}
		g.logger.Warn("usage check failed, running action anyway", fields...)
		return Outcome{Executed: true, FailedOpen: true}, fn(ctx)
	}

	if !a.res.Allowed {
		if g.modal != nil {
			g.modal.Open(LimitData{
				LimitType: action,
				CurrentUsage: UsageSnapshot{
					Current:   a.res.Current,
					Limit:     a.res.Limit,
					Remaining: a.res.Remaining,
				},
			})
		}
		return Outcome{Check: a.res}, nil
	}

	return Outcome{Executed: true, Check: a.res}, fn(ctx)
}
