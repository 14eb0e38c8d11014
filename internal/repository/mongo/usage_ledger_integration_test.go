//go:build integration

package mongo_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medconnect-service/internal/db"
	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/usage"
	mongorepo "medconnect-service/internal/repository/mongo"
)

// Run with: MEDCONNECT_TEST_MONGO_URL=mongodb://... go test -tags integration ./internal/repository/mongo/
func testLedger(t *testing.T) *mongorepo.UsageLedger {
	t.Helper()
	url := os.Getenv("MEDCONNECT_TEST_MONGO_URL")
	if url == "" {
		t.Skip("MEDCONNECT_TEST_MONGO_URL not set")
	}
	ctx := context.Background()

	client, err := db.ConnectMongo(ctx, db.MongoConfig{
		URL:            url,
		Database:       "medconnect_test",
		ConnectTimeout: 5 * time.Second,
		RetryAttempts:  1,
		RetryInterval:  time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	l := mongorepo.NewUsageLedger(client.Database("medconnect_test"))
	require.NoError(t, l.EnsureIndexes(ctx))
	return l
}

func symptomReq(userID string, limit int64, at time.Time) usage.ConsumeRequest {
	return usage.ConsumeRequest{
		UserID:  userID,
		Action:  usage.ActionAIMessage,
		Channel: usage.ChannelSymptomChecker,
		Tier:    plan.TierFree,
		Limit:   limit,
		At:      at,
	}
}

func TestUsageLedger_ConcurrentConsumeOnLastSlot(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t)
	userID := "it-" + ulid.Make().String()
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	const workers = 40
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
			res, err := l.Consume(ctx, symptomReq(userID, 2, at))
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(2), allowed.Load())
	monthly, err := l.Get(ctx, userID, usage.PeriodMonthly, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, int64(2), monthly.Usage.AIMessages)
	assert.Equal(t, int64(2), monthly.Usage.SymptomCheckerMessages)
}

func TestUsageLedger_ReleaseAfterResetStaysAtZero(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t)
	userID := "it-" + ulid.Make().String()
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	_, err := l.Consume(ctx, symptomReq(userID, 3, at))
	require.NoError(t, err)
	_, err = l.Reset(ctx, userID, usage.PeriodMonthly, "2025-03", at)
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, symptomReq(userID, 3, at)))

	monthly, err := l.Get(ctx, userID, usage.PeriodMonthly, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, usage.Counters{}, monthly.Usage)

	daily, err := l.Get(ctx, userID, usage.PeriodDaily, "2025-03-14")
	require.NoError(t, err)
	assert.Zero(t, daily.Usage.AIMessages)
	assert.Zero(t, daily.Usage.SymptomCheckerMessages)
}
