package store

import (
	"context"
	"time"

	"fitsched/internal/domain"
)

// AppointmentFilter narrows a collection listing. Zero-valued fields are not
// applied; From is inclusive and Until exclusive, matching the half-open
// booking intervals.
type AppointmentFilter struct {
	UserID    int64
	TrainerID int64
	From      time.Time
	Until     time.Time
}

// AppointmentRepository owns the booked-interval index. Create serializes
// writes per trainer and returns ErrConflict when the interval overlaps an
// existing booking for the same trainer.
type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Get(ctx context.Context, id int64) (domain.Appointment, error)
	List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error)
	ListByTrainer(ctx context.Context, trainerID int64) ([]domain.Appointment, error)
	ListBookedIntervals(ctx context.Context, trainerID int64, windowStart, windowEnd time.Time) ([]domain.Interval, error)
}
