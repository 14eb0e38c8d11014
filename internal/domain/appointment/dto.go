// internal/domain/appointment/dto.go
package appointment

import "time"

type BookRequest struct {
	DoctorID    string    `json:"doctorId" binding:"required"`
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
	Reason      string    `json:"reason"`
}
