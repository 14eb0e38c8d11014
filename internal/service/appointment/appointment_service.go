// internal/service/appointment/appointment_service.go
package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"medconnect-service/internal/domain/appointment"
	xerrors "medconnect-service/internal/pkg/errors"
)

const defaultListLimit = 50

type AppointmentService struct {
	repo   appointment.Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewAppointmentService(repo appointment.Repository, logger *zap.Logger) *AppointmentService {
	return &AppointmentService{repo: repo, logger: logger, now: time.Now}
}

// WithClock replaces time.Now.
func (s *AppointmentService) WithClock(now func() time.Time) *AppointmentService {
	s.now = now
	return s
}

// Book schedules an appointment. It runs behind the usage gate, so any error
// here gives the patient's reservation back.
func (s *AppointmentService) Book(ctx context.Context, patientID string, req appointment.BookRequest) (*appointment.Appointment, error) {
	now := s.now()
	if strings.TrimSpace(req.DoctorID) == "" {
		return nil, fmt.Errorf("%w: doctorId is required", xerrors.ErrInvalidInput)
	}
	if !req.ScheduledAt.After(now) {
		return nil, fmt.Errorf("%w: scheduledAt must be in the future", xerrors.ErrInvalidInput)
	}
	if req.DoctorID == patientID {
		return nil, fmt.Errorf("%w: cannot book an appointment with yourself", xerrors.ErrInvalidInput)
	}

	a := &appointment.Appointment{
		ID:          ulid.Make().String(),
		PatientID:   patientID,
		DoctorID:    req.DoctorID,
		ScheduledAt: req.ScheduledAt.UTC(),
		Reason:      strings.TrimSpace(req.Reason),
		Status:      appointment.StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", a.ID),
		zap.String("patient_id", patientID),
		zap.String("doctor_id", a.DoctorID),
		zap.Time("scheduled_at", a.ScheduledAt))
	return a, nil
}

func (s *AppointmentService) List(ctx context.Context, patientID string) ([]*appointment.Appointment, error) {
	out, err := s.repo.ListByPatient(ctx, patientID, defaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if out == nil {
		out = []*appointment.Appointment{}
	}
	return out, nil
}

// Cancel cancels one of the patient's scheduled appointments. Booking usage
// is not refunded.
func (s *AppointmentService) Cancel(ctx context.Context, patientID, id string) (*appointment.Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, xerrors.ErrNotFound
	}
	if a.Status != appointment.StatusScheduled {
		return nil, fmt.Errorf("%w: appointment is %s", xerrors.ErrConflict, a.Status)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, appointment.StatusCancelled, now); err != nil {
		return nil, err
	}
	a.Status = appointment.StatusCancelled
	a.UpdatedAt = now
	return a, nil
}
