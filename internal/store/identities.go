package store

import (
	"context"

	"fitsched/internal/domain"
)

// IdentityRepository tracks registered users and trainers. Registration is
// insert-or-confirm-unchanged: re-registering an id with identical fields
// returns the stored row and created=false, while divergent fields fail with
// ErrDuplicateID.
type IdentityRepository interface {
	RegisterUser(ctx context.Context, u domain.User) (_ domain.User, created bool, _ error)
	RegisterTrainer(ctx context.Context, t domain.Trainer) (_ domain.Trainer, created bool, _ error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetTrainer(ctx context.Context, id int64) (domain.Trainer, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListTrainers(ctx context.Context) ([]domain.Trainer, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	TrainerExists(ctx context.Context, id int64) (bool, error)
}
