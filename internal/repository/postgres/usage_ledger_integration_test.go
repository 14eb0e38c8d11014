//go:build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medconnect-service/internal/db"
	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/usage"
	"medconnect-service/internal/repository/postgres"
)

// Run with: MEDCONNECT_TEST_PG_URL=postgres://... go test -tags integration ./internal/repository/postgres/
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("MEDCONNECT_TEST_PG_URL")
	if url == "" {
		t.Skip("MEDCONNECT_TEST_PG_URL not set")
	}
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx, url, zap.NewNop()))
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{
		URL:           url,
		MaxConns:      25,
		MinConns:      1,
		RetryAttempts: 1,
		RetryInterval: time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func req(userID string, limit int64, at time.Time) usage.ConsumeRequest {
	return usage.ConsumeRequest{
		UserID:  userID,
		Action:  usage.ActionAIMessage,
		Channel: usage.ChannelConsultation,
		Tier:    plan.TierFree,
		Limit:   limit,
		At:      at,
	}
}

func TestUsageLedger_ConcurrentConsumeOnLastSlot(t *testing.T) {
	ctx := context.Background()
	l := postgres.NewUsageLedger(testPool(t))
	userID := "it-" + ulid.Make().String()
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		res, err := l.Consume(ctx, req(userID, 3, at))
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	const workers = 50
	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
		failed  atomic.Int64
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := l.Consume(ctx, req(userID, 3, at))
			switch {
			case err != nil:
				failed.Add(1)
			case res.Allowed:
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Zero(t, failed.Load())
	assert.Equal(t, int64(1), allowed.Load())

	monthly, err := l.Get(ctx, userID, usage.PeriodMonthly, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, int64(3), monthly.Usage.AIMessages)
	assert.Equal(t, int64(3), monthly.Usage.AIConsultationMessages)

	daily, err := l.Get(ctx, userID, usage.PeriodDaily, "2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, int64(3), daily.Usage.AIMessages)
}

func TestUsageLedger_ConcurrentFirstConsume(t *testing.T) {
	ctx := context.Background()
	l := postgres.NewUsageLedger(testPool(t))
	userID := "it-" + ulid.Make().String()
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	// no record exists yet, so every worker races on the insert as well
	const workers = 30
	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := l.Consume(ctx, req(userID, 1, at))
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), allowed.Load())
	monthly, err := l.Get(ctx, userID, usage.PeriodMonthly, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, int64(1), monthly.Usage.AIMessages)
}

func TestUsageLedger_ReleaseAfterResetStaysAtZero(t *testing.T) {
	ctx := context.Background()
	l := postgres.NewUsageLedger(testPool(t))
	userID := "it-" + ulid.Make().String()
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	_, err := l.Consume(ctx, req(userID, 3, at))
	require.NoError(t, err)
	_, err = l.Reset(ctx, userID, usage.PeriodMonthly, "2025-03", at)
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, req(userID, 3, at)))

	monthly, err := l.Get(ctx, userID, usage.PeriodMonthly, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, usage.Counters{}, monthly.Usage)
}
