package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"safepath/internal/domain"
	"safepath/internal/pkg/jwt"
	"safepath/internal/pkg/logging"
	"safepath/internal/pkg/validator"
	"safepath/internal/repository"
)

const resetAcceptedMessage = "If an account exists for this email, a reset link has been sent."

// RequestPasswordReset returns the same result whether or not the email
// belongs to an account. A new request supersedes any earlier token.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (*ResetRequestResult, error) {
	result := &ResetRequestResult{Status: "accepted", Message: resetAcceptedMessage}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Info(ctx, "password reset requested for unknown email", "email", logging.MaskEmail(email))
			return result, nil
		}
		return nil, err
	}

	token, expiresAt, err := s.tokens.GenerateResetToken(user.ID)
	if err != nil {
		return nil, err
	}

	_, err = s.users.Mutate(ctx, user.ID, func(u *domain.User) error {
		u.PendingReset = &domain.PasswordReset{Token: token, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return result, nil
		}
		return nil, err
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
			s.log.Warn(ctx, "password reset email failed", "user_id", user.ID, "error", err)
		}
	}

	s.log.Info(ctx, "password reset issued", "user_id", user.ID, "token_fp", logging.Fingerprint(token))
	return result, nil
}

// CompletePasswordReset consumes a reset token. The token must be the
// one currently stored for the user, unused and unexpired. On success
// every session of the user is revoked.
func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if !validator.Password(newPassword) {
		return ErrWeakPassword
	}

	claims, err := s.tokens.ValidateToken(token, jwt.KindPasswordReset)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenInvalid
	}
	if claims == nil {
		return ErrTokenInvalid
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	user, err := s.users.Mutate(ctx, claims.UserID, func(u *domain.User) error {
		pending := u.PendingReset
		if pending == nil || subtle.ConstantTimeCompare([]byte(pending.Token), []byte(token)) != 1 {
			return ErrTokenInvalid
		}
		if pending.Used {
			return ErrTokenAlreadyUsed
		}
		if !now.Before(pending.ExpiresAt) {
			return ErrTokenExpired
		}
		pending.Used = true
		u.PasswordHash = hash
		u.PasswordChangedAt = &now
		u.ClearSessions()
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrTokenInvalid
		}
		if errors.Is(err, ErrTokenAlreadyUsed) {
			s.log.Warn(ctx, "reset token replayed", "user_id", claims.UserID, "token_fp", logging.Fingerprint(token))
		}
		return err
	}

	s.log.Info(ctx, "password reset completed, sessions revoked", "user_id", user.ID)
	s.notifyPasswordChanged(ctx, user)
	return nil
}
