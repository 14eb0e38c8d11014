// internal/service/subscription/payment.go
package subscription

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medconnect-service/internal/domain/plan"
)

// DeclinedPaymentMethod is the test payment method the simulated gateway always declines.
const DeclinedPaymentMethod = "pm_card_declined"

var ErrCardDeclined = errors.New("card declined")

type ChargeRequest struct {
	UserID          string
	Tier            plan.Tier
	Amount          float64
	Currency        string
	PaymentMethodID string
}

type ChargeResult struct {
	TransactionID string
}

// PaymentGateway charges the first period of a paid plan.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// SimulatedGateway approves every charge except DeclinedPaymentMethod. It is
// used when no real processor is configured.
type SimulatedGateway struct {
	logger *zap.Logger
}

func NewSimulatedGateway(logger *zap.Logger) *SimulatedGateway {
	return &SimulatedGateway{logger: logger}
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.HasPrefix(req.PaymentMethodID, DeclinedPaymentMethod) {
		return nil, ErrCardDeclined
	}

	txn := "sim_" + uuid.NewString()
	g.logger.Info("simulated charge approved",
		zap.String("user_id", req.UserID),
		zap.String("tier", string(req.Tier)),
		zap.Float64("amount", req.Amount),
		zap.String("transaction_id", txn))
	return &ChargeResult{TransactionID: txn}, nil
}
