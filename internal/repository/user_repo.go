package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"safepath/internal/domain"

	"gorm.io/gorm"
)

const maxMutateAttempts = 5

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userModel struct {
	ID                  int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Email               string     `gorm:"column:email;size:320;not null;uniqueIndex"`
	Name                string     `gorm:"column:name"`
	PasswordHash        string     `gorm:"column:password_hash;not null"`
	RefreshTokenIDs     []string   `gorm:"column:refresh_token_ids;type:text;serializer:json"`
	ResetToken          *string    `gorm:"column:reset_token;type:text"`
	ResetTokenExpiresAt *time.Time `gorm:"column:reset_token_expires_at"`
	ResetTokenUsed      bool       `gorm:"column:reset_token_used;not null;default:false"`
	PasswordChangedAt   *time.Time `gorm:"column:password_changed_at"`
	Version             int64      `gorm:"column:version;not null;default:0"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

// columns written by Mutate. Email and created_at never change there.
var mutableUserColumns = []string{
	"name",
	"password_hash",
	"refresh_token_ids",
	"reset_token",
	"reset_token_expires_at",
	"reset_token_used",
	"password_changed_at",
	"version",
	"updated_at",
}

func toDomainUser(m userModel) *domain.User {
	u := &domain.User{
		ID:                m.ID,
		Email:             m.Email,
		Name:              m.Name,
		PasswordHash:      m.PasswordHash,
		RefreshTokenIDs:   m.RefreshTokenIDs,
		PasswordChangedAt: m.PasswordChangedAt,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if u.RefreshTokenIDs == nil {
		u.RefreshTokenIDs = []string{}
	}
	if m.ResetToken != nil && m.ResetTokenExpiresAt != nil {
		u.PendingReset = &domain.PasswordReset{
			Token:     *m.ResetToken,
			ExpiresAt: *m.ResetTokenExpiresAt,
			Used:      m.ResetTokenUsed,
		}
	}
	return u
}

func toUserModel(u *domain.User) userModel {
	m := userModel{
		ID:                u.ID,
		Email:             normalizeEmail(u.Email),
		Name:              u.Name,
		PasswordHash:      u.PasswordHash,
		RefreshTokenIDs:   u.RefreshTokenIDs,
		PasswordChangedAt: u.PasswordChangedAt,
		Version:           u.Version,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
	if m.RefreshTokenIDs == nil {
		m.RefreshTokenIDs = []string{}
	}
	if r := u.PendingReset; r != nil {
		token := r.Token
		expiresAt := r.ExpiresAt
		m.ResetToken = &token
		m.ResetTokenExpiresAt = &expiresAt
		m.ResetTokenUsed = r.Used
	}
	return m
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	m.Version = 1
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	*u = *toDomainUser(m)
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error
	return count > 0, err
}

// Mutate loads the user, applies fn and writes the result back only if
// nobody else changed the row in between. On a version conflict the row
// is re-read and fn runs again against the fresh state, so fn must be
// free of side effects outside the user it is given. An error from fn
// aborts without writing and is returned as is.
func (r *UserRepository) Mutate(ctx context.Context, id int64, fn func(u *domain.User) error) (*domain.User, error) {
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		readVersion := current.Version

		if err := fn(current); err != nil {
			return nil, err
		}

		next := toUserModel(current)
		next.ID = id
		next.Version = readVersion + 1
		next.UpdatedAt = time.Now()

		res := r.db.WithContext(ctx).
			Model(&next).
			Select(mutableUserColumns).
			Where("version = ?", readVersion).
			Updates(&next)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			current.Version = next.Version
			current.UpdatedAt = next.UpdatedAt
			return current, nil
		}
	}
	return nil, ErrConcurrentUpdate
}

// ClearExpiredResetTokens drops pending reset tokens past their expiry.
// Used tokens are kept until they expire so a replay still reports
// TOKEN_ALREADY_USED. Returns the number of users touched.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("reset_token IS NOT NULL AND reset_token_expires_at < ?", now).
		Updates(map[string]any{
			"reset_token":            nil,
			"reset_token_expires_at": nil,
			"reset_token_used":       false,
			"version":                gorm.Expr("version + 1"),
			"updated_at":             now,
		})
	return res.RowsAffected, res.Error
}
