package domain

import (
	"slices"
	"time"
)

// MaxActiveSessions caps how many refresh tokens a user may hold at once.
// Logging in beyond the cap retires the oldest session.
const MaxActiveSessions = 10

type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email" validate:"required,email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`

	// RefreshTokenIDs holds the rotation ids of every live refresh token,
	// oldest first. A refresh token is valid only while its id is listed.
	RefreshTokenIDs []string `json:"-"`

	PendingReset *PasswordReset `json:"-"`

	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	// Version increases on every stored mutation.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PasswordReset is the single outstanding reset token for a user.
type PasswordReset struct {
	Token     string
	ExpiresAt time.Time
	Used      bool
}

func (u *User) HasRefreshToken(id string) bool {
	return id != "" && slices.Contains(u.RefreshTokenIDs, id)
}

// AddRefreshToken appends id and drops the oldest ids beyond the cap.
// It returns the ids that were dropped.
func (u *User) AddRefreshToken(id string) []string {
	u.RefreshTokenIDs = append(u.RefreshTokenIDs, id)
	if over := len(u.RefreshTokenIDs) - MaxActiveSessions; over > 0 {
		dropped := slices.Clone(u.RefreshTokenIDs[:over])
		u.RefreshTokenIDs = slices.Clone(u.RefreshTokenIDs[over:])
		return dropped
	}
	return nil
}

// RemoveRefreshToken reports whether id was present.
func (u *User) RemoveRefreshToken(id string) bool {
	i := slices.Index(u.RefreshTokenIDs, id)
	if i < 0 {
		return false
	}
	u.RefreshTokenIDs = slices.Delete(slices.Clone(u.RefreshTokenIDs), i, i+1)
	return true
}

func (u *User) ClearSessions() {
	u.RefreshTokenIDs = []string{}
}
