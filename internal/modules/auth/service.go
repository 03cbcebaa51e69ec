package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"safepath/internal/domain"
	"safepath/internal/notification"
	"safepath/internal/pkg/clock"
	"safepath/internal/pkg/jwt"
	"safepath/internal/pkg/logging"
	"safepath/internal/pkg/validator"
	"safepath/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// errNoChange aborts a Mutate without writing.
var errNoChange = errors.New("no change")

// Service issues, rotates and revokes sessions and runs the password
// reset flow. Refresh tokens are valid only while their rotation id is
// listed on the user row.
type Service struct {
	users    UserRepository
	tokens   TokenSigner
	mailer   notification.Mailer
	clock    clock.Clock
	log      logging.Logger
	hashCost int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(
	users UserRepository,
	tokens TokenSigner,
	mailer notification.Mailer,
	clk clock.Clock,
	log logging.Logger,
) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		clock:    clk,
		log:      log.With("component", "auth"),
		hashCost: bcrypt.DefaultCost,
	}
}

// SetPasswordCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) SetPasswordCost(cost int) {
	s.hashCost = cost
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, *TokenPair, error) {
	if !validator.Password(req.Password) {
		return nil, nil, ErrWeakPassword
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrEmailAlreadyExists
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Email:           email,
		Name:            strings.TrimSpace(req.Name),
		PasswordHash:    hash,
		RefreshTokenIDs: []string{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, nil, ErrEmailAlreadyExists
		}
		return nil, nil, err
	}

	pair, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	user.PasswordHash = ""
	return user, pair, nil
}

// Login answers ErrInvalidCredentials for both unknown emails and wrong
// passwords, and spends a bcrypt comparison in both cases.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyPasswordHash(), []byte(req.Password))
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.log.Info(ctx, "login rejected", "user_id", user.ID)
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info(ctx, "login succeeded", "user_id", user.ID)
	user.PasswordHash = ""
	return user, pair, nil
}

// IssueAccessToken is stateless.
func (s *Service) IssueAccessToken(userID int64) (string, error) {
	return s.tokens.GenerateAccessToken(userID)
}

// IssueRefreshToken records the new rotation id on the user before the
// token is handed out, so a token never exists without its id.
func (s *Service) IssueRefreshToken(ctx context.Context, userID int64) (string, error) {
	token, rotationID, err := s.tokens.GenerateRefreshToken(userID)
	if err != nil {
		return "", err
	}

	var dropped []string
	_, err = s.users.Mutate(ctx, userID, func(u *domain.User) error {
		dropped = u.AddRefreshToken(rotationID)
		return nil
	})
	if err != nil {
		return "", mapUserErr(err)
	}
	if len(dropped) > 0 {
		s.log.Info(ctx, "oldest sessions retired", "user_id", userID, "count", len(dropped))
	}
	return token, nil
}

func (s *Service) issueSession(ctx context.Context, userID int64) (*TokenPair, error) {
	access, err := s.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) VerifyAccessToken(token string) (int64, error) {
	if strings.TrimSpace(token) == "" {
		return 0, ErrNoToken
	}
	claims, err := s.tokens.ValidateToken(token, jwt.KindAccess)
	if err != nil {
		return 0, mapTokenErr(err)
	}
	return claims.UserID, nil
}

// Refresh rotates a refresh token. The old rotation id is removed and
// the new one added in a single conditional write; if the old id is no
// longer listed the token has been used, logged out or revoked.
func (s *Service) Refresh(ctx context.Context, token string) (*TokenPair, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}

	claims, err := s.tokens.ValidateToken(token, jwt.KindRefresh)
	if err != nil {
		return nil, mapTokenErr(err)
	}

	newRefresh, newID, err := s.tokens.GenerateRefreshToken(claims.UserID)
	if err != nil {
		return nil, err
	}

	_, err = s.users.Mutate(ctx, claims.UserID, func(u *domain.User) error {
		if !u.RemoveRefreshToken(claims.ID) {
			return ErrTokenRevoked
		}
		u.AddRefreshToken(newID)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			s.log.Warn(ctx, "revoked refresh token presented",
				"user_id", claims.UserID, "token_fp", logging.Fingerprint(token))
		}
		return nil, mapUserErr(err)
	}

	access, err := s.tokens.GenerateAccessToken(claims.UserID)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "session rotated", "user_id", claims.UserID)
	return &TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout removes the token's rotation id if the token can be identified.
// Missing, malformed and already revoked tokens are not errors; only a
// storage failure is reported.
func (s *Service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}

	claims, err := s.tokens.ValidateToken(token, jwt.KindRefresh)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return nil
	}
	if claims == nil || claims.ID == "" {
		return nil
	}

	_, err = s.users.Mutate(ctx, claims.UserID, func(u *domain.User) error {
		if !u.RemoveRefreshToken(claims.ID) {
			return errNoChange
		}
		return nil
	})
	switch {
	case err == nil:
		s.log.Info(ctx, "logged out", "user_id", claims.UserID)
		return nil
	case errors.Is(err, errNoChange), errors.Is(err, repository.ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("logout: %w", err)
	}
}

// ChangePassword replaces the password hash and ends every session of
// the user, including the caller's. Any pending reset token is dropped.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if !validator.Password(next) {
		return ErrWeakPassword
	}
	hash, err := s.hashPassword(next)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	user, err := s.users.Mutate(ctx, userID, func(u *domain.User) error {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
			return ErrWrongPassword
		}
		u.PasswordHash = hash
		u.PasswordChangedAt = &now
		u.PendingReset = nil
		u.ClearSessions()
		return nil
	})
	if err != nil {
		return mapUserErr(err)
	}

	s.log.Info(ctx, "password changed, sessions revoked", "user_id", userID)
	s.notifyPasswordChanged(ctx, user)
	return nil
}

func (s *Service) GetCurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *Service) notifyPasswordChanged(ctx context.Context, user *domain.User) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendPasswordChanged(ctx, user.Email); err != nil {
		s.log.Warn(ctx, "password changed email failed", "user_id", user.ID, "error", err)
	}
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) dummyPasswordHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("safepath-timing-equalizer"), s.hashCost)
	})
	return s.dummyHash
}

func mapTokenErr(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalid):
		return ErrTokenInvalid
	default:
		return err
	}
}

func mapUserErr(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrPrincipalNotFound
	}
	return err
}
