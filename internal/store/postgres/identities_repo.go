package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"fitsched/internal/domain"
	"fitsched/internal/store"
)

type IdentityRepo struct {
	db *bun.DB
}

func NewIdentityRepo(db *bun.DB) *IdentityRepo {
	return &IdentityRepo{db: db}
}

// RegisterUser checks for an existing row before inserting so an identical
// re-registration is confirmed without ever tripping the primary key. A
// unique violation can still happen when two registrations of the same id
// race; the loser re-reads outside the rolled-back transaction, since an
// aborted session rejects further statements.
func (r *IdentityRepo) RegisterUser(ctx context.Context, u domain.User) (domain.User, bool, error) {
	if u.ID != 0 {
		existing, err := r.GetUser(ctx, u.ID)
		switch {
		case err == nil:
			return confirmUnchangedUser(existing, u)
		case !errors.Is(err, store.ErrNotFound):
			return domain.User{}, false, err
		}
	}

	m := u
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return err
		}
		if u.ID != 0 {
			return bumpSequence(ctx, tx, "users")
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetUser(ctx, u.ID)
			if getErr != nil {
				return domain.User{}, false, err
			}
			return confirmUnchangedUser(existing, u)
		}
		return domain.User{}, false, err
	}
	return m, true, nil
}

func confirmUnchangedUser(existing, u domain.User) (domain.User, bool, error) {
	if existing.Name != u.Name || existing.Email != u.Email {
		return domain.User{}, false, store.ErrDuplicateID
	}
	return existing, false, nil
}

func (r *IdentityRepo) RegisterTrainer(ctx context.Context, t domain.Trainer) (domain.Trainer, bool, error) {
	if t.ID != 0 {
		existing, err := r.GetTrainer(ctx, t.ID)
		switch {
		case err == nil:
			return confirmUnchangedTrainer(existing, t)
		case !errors.Is(err, store.ErrNotFound):
			return domain.Trainer{}, false, err
		}
	}

	m := t
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return err
		}
		if t.ID != 0 {
			return bumpSequence(ctx, tx, "trainers")
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetTrainer(ctx, t.ID)
			if getErr != nil {
				return domain.Trainer{}, false, err
			}
			return confirmUnchangedTrainer(existing, t)
		}
		return domain.Trainer{}, false, err
	}
	return m, true, nil
}

func confirmUnchangedTrainer(existing, t domain.Trainer) (domain.Trainer, bool, error) {
	if existing.Name != t.Name || existing.Email != t.Email {
		return domain.Trainer{}, false, store.ErrDuplicateID
	}
	return existing, false, nil
}

func (r *IdentityRepo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *IdentityRepo) GetTrainer(ctx context.Context, id int64) (domain.Trainer, error) {
	var t domain.Trainer
	err := r.db.NewSelect().
		Model(&t).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Trainer{}, store.ErrNotFound
		}
		return domain.Trainer{}, err
	}
	return t, nil
}

func (r *IdentityRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []domain.User
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *IdentityRepo) ListTrainers(ctx context.Context) ([]domain.Trainer, error) {
	var rows []domain.Trainer
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *IdentityRepo) UserExists(ctx context.Context, id int64) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.User)(nil)).
		Where("id = ?", id).
		Exists(ctx)
}

func (r *IdentityRepo) TrainerExists(ctx context.Context, id int64) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Trainer)(nil)).
		Where("id = ?", id).
		Exists(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
