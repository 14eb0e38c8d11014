// internal/domain/appointment/entity.go
package appointment

import (
	"context"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Appointment is a booked consultation slot. Booking one is a gated action.
type Appointment struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId"`
	DoctorID    string    `json:"doctorId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Reason      string    `json:"reason,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Repository interface {
	// Create fails with xerrors.ErrConflict when the doctor's slot is taken.
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*Appointment, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
}
