package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safepath/internal/domain"
	"safepath/internal/pkg/clock"
	"safepath/internal/pkg/github"
	"safepath/internal/pkg/logging"
	"safepath/internal/pkg/secretbox"
	"safepath/internal/repository"
)

const DefaultStaleAfter = time.Hour

// Service keeps at most one encrypted GitHub credential per user. A
// secret is only written after GitHub has confirmed it, and GetForUse
// re-checks it with GitHub once it is older than staleAfter.
type Service struct {
	repo       Repository
	cipher     Cipher
	validator  Validator
	clock      clock.Clock
	staleAfter time.Duration
	log        logging.Logger
}

func NewService(repo Repository, cipher Cipher, validator Validator, clk clock.Clock, staleAfter time.Duration, log logging.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		repo:       repo,
		cipher:     cipher,
		validator:  validator,
		clock:      clk,
		staleAfter: staleAfter,
		log:        log.With("component", "vault"),
	}
}

// Store replaces whatever the user had with secret.
func (s *Service) Store(ctx context.Context, userID int64, secret string) error {
	entry, err := s.sealValidated(ctx, userID, secret)
	if err != nil {
		return err
	}
	if err := s.repo.Replace(ctx, entry); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	s.log.Info(ctx, "credential stored", "user_id", userID, "secret_fp", logging.Fingerprint(secret))
	return nil
}

// Update writes secret over the user's existing row, keeping its id.
func (s *Service) Update(ctx context.Context, userID int64, secret string) error {
	entry, err := s.sealValidated(ctx, userID, secret)
	if err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	s.log.Info(ctx, "credential updated", "user_id", userID, "entry_id", entry.ID, "secret_fp", logging.Fingerprint(secret))
	return nil
}

func (s *Service) sealValidated(ctx context.Context, userID int64, secret string) (*domain.VaultEntry, error) {
	res := s.validator.Validate(ctx, secret)
	if !res.IsValid() {
		s.log.Info(ctx, "credential rejected", "user_id", userID, "outcome", res.Outcome.String())
		return nil, rejected(res)
	}

	blob, err := s.cipher.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return &domain.VaultEntry{
		UserID:          userID,
		Ciphertext:      blob,
		SecretHash:      s.cipher.Hash(secret),
		Scopes:          res.Scopes,
		LastValidatedAt: &now,
		IsActive:        true,
	}, nil
}

// Get returns the stored secret, or ok=false when the user has no
// active entry.
func (s *Service) Get(ctx context.Context, userID int64) (secret string, ok bool, err error) {
	entry, err := s.activeEntry(ctx, userID)
	if err != nil || entry == nil {
		return "", false, err
	}
	secret, err = s.open(entry)
	if err != nil {
		return "", false, err
	}
	return secret, true, nil
}

// GetForUse is Get for callers about to send the secret to GitHub. A
// stale entry is revalidated first; if GitHub no longer accepts it the
// entry is deactivated and nothing is returned. When GitHub cannot
// answer the row is left alone and nothing is returned either.
func (s *Service) GetForUse(ctx context.Context, userID int64) (string, bool, error) {
	entry, err := s.activeEntry(ctx, userID)
	if err != nil || entry == nil {
		return "", false, err
	}
	secret, err := s.open(entry)
	if err != nil {
		return "", false, err
	}

	now := s.clock.Now()
	if !entry.NeedsRevalidation(now, s.staleAfter) {
		return secret, true, nil
	}

	res := s.validator.Validate(ctx, secret)
	switch res.Outcome {
	case github.OutcomeValid:
		if _, err := s.repo.MarkValidated(ctx, userID, entry.SecretHash, res.Scopes, now); err != nil {
			return "", false, fmt.Errorf("record revalidation: %w", err)
		}
		s.log.Debug(ctx, "credential revalidated", "user_id", userID)
		return secret, true, nil

	case github.OutcomeInvalid:
		if _, err := s.repo.Deactivate(ctx, userID, entry.SecretHash); err != nil {
			return "", false, fmt.Errorf("deactivate credential: %w", err)
		}
		s.log.Info(ctx, "stale credential no longer valid, deactivated", "user_id", userID)
		return "", false, nil

	default:
		s.log.Warn(ctx, "credential revalidation inconclusive", "user_id", userID, "outcome", res.Outcome.String())
		return "", false, nil
	}
}

func (s *Service) Remove(ctx context.Context, userID int64) error {
	removed, err := s.repo.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}
	if !removed {
		return ErrNothingToRemove
	}
	s.log.Info(ctx, "credential removed", "user_id", userID)
	return nil
}

func (s *Service) Describe(ctx context.Context, userID int64) (Description, error) {
	entry, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrVaultEntryNotFound) {
		return Description{Scopes: []string{}}, nil
	}
	if err != nil {
		return Description{}, err
	}

	secret, err := s.open(entry)
	if err != nil {
		return Description{}, err
	}
	return Description{
		Present:       true,
		MaskedSecret:  secretbox.Mask(secret),
		Scopes:        entry.Scopes,
		LastValidated: entry.LastValidatedAt,
		Active:        entry.IsActive,
	}, nil
}

// VerifyHash reports whether candidate is the stored secret without
// decrypting anything.
func (s *Service) VerifyHash(ctx context.Context, userID int64, candidate string) (bool, error) {
	entry, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrVaultEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return secretbox.HashEqual(s.cipher.Hash(candidate), entry.SecretHash), nil
}

// HasScopes checks required against the scopes recorded at the last
// successful validation.
func (s *Service) HasScopes(ctx context.Context, userID int64, required ...string) (bool, error) {
	entry, err := s.activeEntry(ctx, userID)
	if err != nil || entry == nil {
		return false, err
	}
	return github.HasRequiredScopes(entry.Scopes, required), nil
}

// RateLimit reports GitHub's core rate limit for the stored secret. A
// stale secret GitHub no longer accepts is deactivated on the way.
func (s *Service) RateLimit(ctx context.Context, userID int64) (github.RateLimit, error) {
	secret, ok, err := s.GetForUse(ctx, userID)
	if err != nil {
		return github.RateLimit{}, err
	}
	if !ok {
		return github.RateLimit{}, ErrNoCredential
	}
	return s.validator.CheckRateLimit(ctx, secret)
}

func (s *Service) activeEntry(ctx context.Context, userID int64) (*domain.VaultEntry, error) {
	entry, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrVaultEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !entry.IsActive {
		return nil, nil
	}
	return entry, nil
}

func (s *Service) open(entry *domain.VaultEntry) (string, error) {
	secret, err := s.cipher.Decrypt(entry.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("open credential %d: %w", entry.ID, err)
	}
	return secret, nil
}
