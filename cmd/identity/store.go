package identity

import (
	"context"
	"time"
)

type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

type CreateUserInput struct {
	Username string
	Password string
	Now      time.Time
}

// Store is the user persistence boundary.
//
// Error contract (kinds from apperr):
//   - CreateUser: ErrInvalidInput for a bad username/password, ErrConflict for a taken username.
//   - GetUserByID / GetUserByUsername: ErrNotFound when absent.
//   - Exists / CheckPassword: never ErrNotFound; unknown users report false.
//   - any store failure: ErrInternal.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	Exists(ctx context.Context, id string) (bool, error)

	// CheckPassword is the credential check consumed by the session authority.
	CheckPassword(ctx context.Context, id, secret string) (bool, error)
}
