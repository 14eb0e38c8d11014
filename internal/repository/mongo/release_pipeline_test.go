package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"medconnect-service/internal/domain/usage"
)

func TestReleasePipeline_FloorsEveryTouchedCounter(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		delta  usage.Counters
		fields []string
	}{
		{
			name:   "consultation message",
			delta:  usage.Delta(usage.ActionAIMessage, usage.ChannelConsultation),
			fields: []string{"usage.ai_messages", "usage.ai_consultation_messages", "updated_at"},
		},
		{
			name:   "symptom checker message",
			delta:  usage.Delta(usage.ActionAIMessage, usage.ChannelSymptomChecker),
			fields: []string{"usage.ai_messages", "usage.symptom_checker_messages", "updated_at"},
		},
		{
			name:   "appointment",
			delta:  usage.Delta(usage.ActionAppointment, usage.ChannelNone),
			fields: []string{"usage.appointments", "updated_at"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := releasePipeline(tt.delta, at)
			require.Len(t, p, 1)
			require.Equal(t, "$set", p[0][0].Key)
			set, ok := p[0][0].Value.(bson.D)
			require.True(t, ok)

			var got []string
			for _, e := range set {
				got = append(got, e.Key)
				if e.Key == "updated_at" {
					assert.Equal(t, at, e.Value)
					continue
				}
				expr, ok := e.Value.(bson.D)
				require.True(t, ok)
				assert.Equal(t, "$max", expr[0].Key, "%s must be floored at zero", e.Key)
				args, ok := expr[0].Value.(bson.A)
				require.True(t, ok)
				assert.Equal(t, 0, args[0])
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}
