package auth

import (
	"context"
	"time"

	"safepath/internal/domain"
	"safepath/internal/pkg/jwt"
)

// UserRepository is the part of the user store the auth service needs.
// Every change to sessions, reset state or the password hash goes
// through Mutate.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Mutate(ctx context.Context, id int64, fn func(u *domain.User) error) (*domain.User, error)
}

type TokenSigner interface {
	GenerateAccessToken(userID int64) (string, error)
	GenerateRefreshToken(userID int64) (token, rotationID string, err error)
	GenerateResetToken(userID int64) (string, time.Time, error)
	ValidateToken(token string, kind jwt.Kind) (*jwt.Claims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}
