package vault

import (
	"context"
	"time"

	"safepath/internal/domain"
	"safepath/internal/pkg/github"
)

type Validator interface {
	Validate(ctx context.Context, secret string) github.Result
	CheckRateLimit(ctx context.Context, secret string) (github.RateLimit, error)
}

// Cipher is satisfied by *secretbox.Codec.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
	Hash(plaintext string) string
}

type Repository interface {
	GetByUserID(ctx context.Context, userID int64) (*domain.VaultEntry, error)
	Replace(ctx context.Context, e *domain.VaultEntry) error
	Upsert(ctx context.Context, e *domain.VaultEntry) error
	MarkValidated(ctx context.Context, userID int64, secretHash string, scopes []string, at time.Time) (bool, error)
	Deactivate(ctx context.Context, userID int64, secretHash string) (bool, error)
	Delete(ctx context.Context, userID int64) (bool, error)
}
