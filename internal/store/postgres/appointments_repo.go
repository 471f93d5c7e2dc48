package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"fitsched/internal/domain"
	"fitsched/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// Create books the interval inside a transaction that holds the trainer's
// schedule lock, so concurrent bookings for one trainer serialize and the
// overlap check always sees committed state. The appointments_no_overlap
// exclusion constraint stays as the database-level backstop.
//
// An explicit-id booking is checked against the stored row up front, before
// the overlap check: a re-post of an identical record is the same booking,
// not a conflict, and confirming it early keeps the transaction free of
// failed statements, which would abort the session.
func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockTrainerSchedule(ctx, tx, appt.TrainerID); err != nil {
			return err
		}

		if appt.ID != 0 {
			var existing domain.Appointment
			err := tx.NewSelect().
				Model(&existing).
				Where("id = ?", appt.ID).
				Limit(1).
				Scan(ctx)
			switch {
			case err == nil:
				if !sameAppointment(existing, appt) {
					return store.ErrDuplicateID
				}
				m = existing
				return nil
			case !errors.Is(err, sql.ErrNoRows):
				return err
			}
		}

		overlapping, err := tx.NewSelect().
			Model((*domain.Appointment)(nil)).
			Where("trainer_id = ?", appt.TrainerID).
			Where("start_time < ?", appt.EndTime).
			Where("end_time > ?", appt.StartTime).
			Count(ctx)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return store.ErrConflict
		}

		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return err
		}

		// Seed imports post explicit ids; keep the serial sequence ahead of
		// them so later id-less inserts don't collide.
		if appt.ID != 0 {
			return bumpSequence(ctx, tx, "appointments")
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
				return domain.Appointment{}, store.ErrConflict
			}
			if pgErr.Code == "23505" {
				// Lost a race with a concurrent insert of the same id. The
				// transaction has rolled back, so re-read outside it.
				return r.confirmExisting(ctx, appt)
			}
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) confirmExisting(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	existing, err := r.Get(ctx, appt.ID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !sameAppointment(existing, appt) {
		return domain.Appointment{}, store.ErrDuplicateID
	}
	return existing, nil
}

// sameAppointment treats a re-post of an identical record as the same booking.
func sameAppointment(a, b domain.Appointment) bool {
	return a.UserID == b.UserID &&
		a.TrainerID == b.TrainerID &&
		a.StartTime.Equal(b.StartTime) &&
		a.EndTime.Equal(b.EndTime)
}

func (r *AppointmentRepo) Get(ctx context.Context, id int64) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepo) List(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().Model(&rows)
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.TrainerID != 0 {
		q = q.Where("trainer_id = ?", filter.TrainerID)
	}
	if !filter.From.IsZero() {
		q = q.Where("start_time >= ?", filter.From)
	}
	if !filter.Until.IsZero() {
		q = q.Where("end_time < ?", filter.Until)
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListByTrainer(ctx context.Context, trainerID int64) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("trainer_id = ?", trainerID).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListBookedIntervals(ctx context.Context, trainerID int64, windowStart, windowEnd time.Time) ([]domain.Interval, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Column("start_time", "end_time").
		Where("trainer_id = ?", trainerID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Interval, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.Interval())
	}
	return out, nil
}

func lockTrainerSchedule(ctx context.Context, tx bun.Tx, trainerID int64) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(?)", trainerID).Exec(ctx)
	return err
}

func bumpSequence(ctx context.Context, tx bun.Tx, table string) error {
	_, err := tx.NewRaw(
		"SELECT setval(pg_get_serial_sequence(?, 'id'), (SELECT COALESCE(MAX(id), 1) FROM "+table+"))",
		table,
	).Exec(ctx)
	return err
}
