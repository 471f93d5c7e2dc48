package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitsched/internal/domain"
	"fitsched/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	appts      store.AppointmentRepository
	identities store.IdentityRepository
	cal        domain.BusinessCalendar
}

func NewService(appts store.AppointmentRepository, identities store.IdentityRepository, cal domain.BusinessCalendar) *Service {
	return &Service{appts: appts, identities: identities, cal: cal}
}

type BookingInput struct {
	ID        int64 // optional; seed imports carry explicit ids
	StartTime time.Time
	EndTime   time.Time
	UserID    int64
	TrainerID int64
}

// CreateAppointment runs the booking checks in a fixed order: interval
// ordering, identity existence, business-hours containment and slot shape,
// then the per-trainer overlap check inside the store. The first violated
// rule determines the error.
func (s *Service) CreateAppointment(ctx context.Context, in BookingInput) (domain.Appointment, error) {
	if in.UserID <= 0 {
		return domain.Appointment{}, validationError("user_id is required")
	}
	if in.TrainerID <= 0 {
		return domain.Appointment{}, validationError("trainer_id is required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if !end.After(start) {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}

	if ok, err := s.identities.UserExists(ctx, in.UserID); err != nil {
		return domain.Appointment{}, err
	} else if !ok {
		return domain.Appointment{}, fmt.Errorf("user %d: %w", in.UserID, store.ErrNotFound)
	}
	if ok, err := s.identities.TrainerExists(ctx, in.TrainerID); err != nil {
		return domain.Appointment{}, err
	} else if !ok {
		return domain.Appointment{}, fmt.Errorf("trainer %d: %w", in.TrainerID, store.ErrNotFound)
	}

	if !s.cal.Contains(start, end) {
		return domain.Appointment{}, validationError("appointment is outside business hours")
	}
	if end.Sub(start) != s.cal.Slot {
		return domain.Appointment{}, validationError(
			fmt.Sprintf("appointment must be exactly %d minutes long", int(s.cal.Slot.Minutes())))
	}
	if !s.cal.OnSlotBoundary(start) {
		return domain.Appointment{}, validationError("appointment must start on a slot boundary")
	}

	return s.appts.Create(ctx, domain.Appointment{
		ID:        in.ID,
		StartTime: start,
		EndTime:   end,
		UserID:    in.UserID,
		TrainerID: in.TrainerID,
	})
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	if id <= 0 {
		return domain.Appointment{}, validationError("appointment id is required")
	}
	return s.appts.Get(ctx, id)
}

// ListAppointments returns bookings matching the filter, chronologically.
// Unlike the by-trainer listing it does not require the filter ids to be
// registered; an unknown id simply matches nothing.
func (s *Service) ListAppointments(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, error) {
	if filter.UserID < 0 || filter.TrainerID < 0 {
		return nil, validationError("filter ids must not be negative")
	}
	if !filter.From.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.From) {
		return nil, validationError("end_time must not be before start_time")
	}
	return s.appts.List(ctx, filter)
}

func (s *Service) ListTrainerAppointments(ctx context.Context, trainerID int64) ([]domain.Appointment, error) {
	if trainerID <= 0 {
		return nil, validationError("trainer_id is required")
	}
	if ok, err := s.identities.TrainerExists(ctx, trainerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("trainer %d: %w", trainerID, store.ErrNotFound)
	}
	return s.appts.ListByTrainer(ctx, trainerID)
}

// AvailableSlots enumerates bookable slot starts for each date in
// [startsAt, endsAt] inclusive, subtracting the trainer's booked intervals
// from the calendar's open windows.
func (s *Service) AvailableSlots(ctx context.Context, trainerID int64, startsAt, endsAt time.Time) ([]time.Time, error) {
	if trainerID <= 0 {
		return nil, validationError("trainer_id is required")
	}
	if endsAt.Before(startsAt) {
		return nil, validationError("ends_at must not be before starts_at")
	}
	if ok, err := s.identities.TrainerExists(ctx, trainerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("trainer %d: %w", trainerID, store.ErrNotFound)
	}

	windowStart, windowEnd := s.rangeBounds(startsAt, endsAt)
	booked, err := s.appts.ListBookedIntervals(ctx, trainerID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return domain.AvailableSlots(s.cal, startsAt, endsAt, booked), nil
}

// rangeBounds widens the date range to whole local days so every booking that
// could block a slot in the range is loaded.
func (s *Service) rangeBounds(startsAt, endsAt time.Time) (time.Time, time.Time) {
	loc := s.cal.Location
	sy, sm, sd := startsAt.In(loc).Date()
	ey, em, ed := endsAt.In(loc).Date()
	return time.Date(sy, sm, sd, 0, 0, 0, 0, loc),
		time.Date(ey, em, ed, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}

type IdentityInput struct {
	ID    int64 // optional; seed imports carry explicit ids
	Name  string
	Email string
}

// RegisterUser stores a user. The returned flag reports whether a new row was
// inserted; an identical re-registration returns the stored row and false.
func (s *Service) RegisterUser(ctx context.Context, in IdentityInput) (domain.User, bool, error) {
	name, email, err := normalizeIdentity(in)
	if err != nil {
		return domain.User{}, false, err
	}
	return s.identities.RegisterUser(ctx, domain.User{ID: in.ID, Name: name, Email: email})
}

func (s *Service) RegisterTrainer(ctx context.Context, in IdentityInput) (domain.Trainer, bool, error) {
	name, email, err := normalizeIdentity(in)
	if err != nil {
		return domain.Trainer{}, false, err
	}
	return s.identities.RegisterTrainer(ctx, domain.Trainer{ID: in.ID, Name: name, Email: email})
}

func normalizeIdentity(in IdentityInput) (string, string, error) {
	if in.ID < 0 {
		return "", "", validationError("id must not be negative")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", "", validationError("name is required")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return "", "", validationError("email is required")
	}
	return name, email, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.identities.ListUsers(ctx)
}

func (s *Service) ListTrainers(ctx context.Context) ([]domain.Trainer, error) {
	return s.identities.ListTrainers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id int64) (domain.User, error) {
	if id <= 0 {
		return domain.User{}, validationError("user id is required")
	}
	return s.identities.GetUser(ctx, id)
}

func (s *Service) GetTrainer(ctx context.Context, id int64) (domain.Trainer, error) {
	if id <= 0 {
		return domain.Trainer{}, validationError("trainer id is required")
	}
	return s.identities.GetTrainer(ctx, id)
}
