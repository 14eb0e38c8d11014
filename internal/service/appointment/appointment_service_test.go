package appointment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medconnect-service/internal/domain/appointment"
	xerrors "medconnect-service/internal/pkg/errors"
	"medconnect-service/internal/repository/memory"
	service "medconnect-service/internal/service/appointment"
)

var now = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newService() *service.AppointmentService {
	return service.NewAppointmentService(memory.NewAppointmentStore(), zap.NewNop()).
		WithClock(func() time.Time { return now })
}

func TestBook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     appointment.BookRequest
		wantErr error
	}{
		{
			name: "ok",
			req:  appointment.BookRequest{DoctorID: "doc-1", ScheduledAt: now.Add(24 * time.Hour), Reason: "  follow-up "},
		},
		{
			name:    "missing doctor",
			req:     appointment.BookRequest{ScheduledAt: now.Add(time.Hour)},
			wantErr: xerrors.ErrInvalidInput,
		},
		{
			name:    "in the past",
			req:     appointment.BookRequest{DoctorID: "doc-1", ScheduledAt: now.Add(-time.Hour)},
			wantErr: xerrors.ErrInvalidInput,
		},
		{
			name:    "with yourself",
			req:     appointment.BookRequest{DoctorID: "patient-1", ScheduledAt: now.Add(time.Hour)},
			wantErr: xerrors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := newService().Book(context.Background(), "patient-1", tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, appointment.StatusScheduled, a.Status)
			assert.Equal(t, "follow-up", a.Reason)
			assert.NotEmpty(t, a.ID)
		})
	}
}

func TestBookTakenSlot(t *testing.T) {
	t.Parallel()
	s := newService()
	ctx := context.Background()
	req := appointment.BookRequest{DoctorID: "doc-1", ScheduledAt: now.Add(time.Hour)}

	_, err := s.Book(ctx, "patient-1", req)
	require.NoError(t, err)

	_, err = s.Book(ctx, "patient-2", req)
	assert.ErrorIs(t, err, xerrors.ErrConflict)
}

func TestCancel(t *testing.T) {
	t.Parallel()
	s := newService()
	ctx := context.Background()

	a, err := s.Book(ctx, "patient-1", appointment.BookRequest{DoctorID: "doc-1", ScheduledAt: now.Add(time.Hour)})
	require.NoError(t, err)

	_, err = s.Cancel(ctx, "patient-2", a.ID)
	assert.ErrorIs(t, err, xerrors.ErrNotFound, "other patients cannot see the appointment")

	got, err := s.Cancel(ctx, "patient-1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, got.Status)

	_, err = s.Cancel(ctx, "patient-1", a.ID)
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	list, err := s.List(ctx, "patient-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, appointment.StatusCancelled, list[0].Status)

	empty, err := s.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
