package domain

import "time"

// VaultEntry is the encrypted third-party credential for one user.
// Ciphertext is the self-describing blob produced by secretbox and
// SecretHash is the hex SHA-256 of the same plaintext. Both are always
// written together.
type VaultEntry struct {
	ID              int64
	UserID          int64
	Ciphertext      string
	SecretHash      string
	Scopes          []string
	LastValidatedAt *time.Time
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NeedsRevalidation reports whether the last successful validation is
// older than maxAge, or never happened.
func (e *VaultEntry) NeedsRevalidation(now time.Time, maxAge time.Duration) bool {
	if e.LastValidatedAt == nil {
		return true
	}
	return now.Sub(*e.LastValidatedAt) > maxAge
}
