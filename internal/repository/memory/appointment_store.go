// internal/repository/memory/appointment_store.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"medconnect-service/internal/domain/appointment"
	xerrors "medconnect-service/internal/pkg/errors"
)

type AppointmentStore struct {
	mu    sync.Mutex
	items map[string]appointment.Appointment
}

func NewAppointmentStore() *AppointmentStore {
	return &AppointmentStore{items: make(map[string]appointment.Appointment)}
}

func (s *AppointmentStore) Create(_ context.Context, a *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.items {
		if other.Status == appointment.StatusScheduled &&
			other.DoctorID == a.DoctorID && other.ScheduledAt.Equal(a.ScheduledAt) {
			return fmt.Errorf("%w: slot already booked", xerrors.ErrConflict)
		}
	}
	s.items[a.ID] = *a
	return nil
}

func (s *AppointmentStore) Get(_ context.Context, id string) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &a, nil
}

func (s *AppointmentStore) ListByPatient(_ context.Context, patientID string, limit int) ([]*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*appointment.Appointment
	for _, a := range s.items {
		if a.PatientID == patientID {
			cp := a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AppointmentStore) UpdateStatus(_ context.Context, id string, status appointment.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = at
	s.items[id] = a
	return nil
}
