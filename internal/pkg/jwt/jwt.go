package jwt

import (
	"errors"
	"time"

	"safepath/internal/pkg/clock"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind separates token purposes signed with the same secret.
type Kind string

const (
	KindAccess        Kind = "access"
	KindRefresh       Kind = "refresh"
	KindPasswordReset Kind = "password_reset"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	clock      clock.Clock
}

type Claims struct {
	UserID int64 `json:"user_id"`
	Kind   Kind  `json:"typ"`
	jwtlib.RegisteredClaims
}

func New(secret string, accessTTL, refreshTTL, resetTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   resetTTL,
		clock:      clock.Real(),
	}
}

// WithClock swaps the time source used for iat/exp and validation.
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) GenerateAccessToken(userID int64) (string, error) {
	token, _, err := s.sign(userID, KindAccess, s.accessTTL, "")
	return token, err
}

// GenerateRefreshToken returns the signed token and its rotation id.
func (s *Service) GenerateRefreshToken(userID int64) (token, rotationID string, err error) {
	rotationID = uuid.NewString()
	token, _, err = s.sign(userID, KindRefresh, s.refreshTTL, rotationID)
	if err != nil {
		return "", "", err
	}
	return token, rotationID, nil
}

func (s *Service) GenerateResetToken(userID int64) (string, time.Time, error) {
	return s.sign(userID, KindPasswordReset, s.resetTTL, uuid.NewString())
}

func (s *Service) sign(userID int64, kind Kind, ttl time.Duration, jti string) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, expiry and kind. An expired but
// otherwise well-formed token yields ErrTokenExpired together with its
// claims, so callers can still tell which principal it was bound to.
func (s *Service) ValidateToken(tokenStr string, kind Kind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.clock.Now),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) && claims.Kind == kind && claims.UserID != 0 {
			return claims, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims.Kind != kind || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	if kind == KindRefresh && claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
