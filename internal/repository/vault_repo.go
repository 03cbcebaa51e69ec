package repository

import (
	"context"
	"errors"
	"time"

	"safepath/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VaultRepository struct {
	db *gorm.DB
}

func NewVaultRepository(db *gorm.DB) *VaultRepository {
	return &VaultRepository{db: db}
}

type vaultEntryModel struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID          int64      `gorm:"column:user_id;not null;uniqueIndex"`
	Ciphertext      string     `gorm:"column:ciphertext;type:text;not null"`
	SecretHash      string     `gorm:"column:secret_hash;size:64;not null"`
	Scopes          []string   `gorm:"column:scopes;type:text;serializer:json"`
	LastValidatedAt *time.Time `gorm:"column:last_validated_at"`
	IsActive        bool       `gorm:"column:is_active;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (vaultEntryModel) TableName() string { return "vault_entries" }

func toDomainVaultEntry(m vaultEntryModel) *domain.VaultEntry {
	scopes := m.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return &domain.VaultEntry{
		ID:              m.ID,
		UserID:          m.UserID,
		Ciphertext:      m.Ciphertext,
		SecretHash:      m.SecretHash,
		Scopes:          scopes,
		LastValidatedAt: m.LastValidatedAt,
		IsActive:        m.IsActive,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toVaultEntryModel(e *domain.VaultEntry) vaultEntryModel {
	scopes := e.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return vaultEntryModel{
		ID:              e.ID,
		UserID:          e.UserID,
		Ciphertext:      e.Ciphertext,
		SecretHash:      e.SecretHash,
		Scopes:          scopes,
		LastValidatedAt: e.LastValidatedAt,
		IsActive:        e.IsActive,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

// forUpdate adds a row lock where the dialect supports it.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (r *VaultRepository) GetByUserID(ctx context.Context, userID int64) (*domain.VaultEntry, error) {
	var m vaultEntryModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVaultEntryNotFound
		}
		return nil, err
	}
	return toDomainVaultEntry(m), nil
}

// Replace deletes any entry the user has and inserts e in its place, in
// one transaction. e.ID is set to the new row id.
func (r *VaultRepository) Replace(ctx context.Context, e *domain.VaultEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", e.UserID).Delete(&vaultEntryModel{}).Error; err != nil {
			return err
		}
		m := toVaultEntryModel(e)
		m.ID = 0
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		*e = *toDomainVaultEntry(m)
		return nil
	})
}

// Upsert updates the user's entry in place, keeping its row id, or
// inserts one if none exists.
func (r *VaultRepository) Upsert(ctx context.Context, e *domain.VaultEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing vaultEntryModel
		err := forUpdate(tx).Where("user_id = ?", e.UserID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m := toVaultEntryModel(e)
			m.ID = 0
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			*e = *toDomainVaultEntry(m)
			return nil
		}
		if err != nil {
			return err
		}

		m := toVaultEntryModel(e)
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		if err := tx.Model(&m).
			Select("ciphertext", "secret_hash", "scopes", "last_validated_at", "is_active", "updated_at").
			Updates(&m).Error; err != nil {
			return err
		}
		*e = *toDomainVaultEntry(m)
		return nil
	})
}

// MarkValidated records a successful revalidation. The secretHash guard
// keeps a late revalidation from touching an entry that was replaced in
// the meantime; it reports false in that case.
func (r *VaultRepository) MarkValidated(ctx context.Context, userID int64, secretHash string, scopes []string, at time.Time) (bool, error) {
	if scopes == nil {
		scopes = []string{}
	}
	m := vaultEntryModel{Scopes: scopes, LastValidatedAt: &at, IsActive: true, UpdatedAt: at}
	res := r.db.WithContext(ctx).
		Model(&vaultEntryModel{}).
		Where("user_id = ? AND secret_hash = ?", userID, secretHash).
		Select("scopes", "last_validated_at", "is_active", "updated_at").
		Updates(&m)
	return res.RowsAffected > 0, res.Error
}

// Deactivate flags the entry holding secretHash as no longer usable.
func (r *VaultRepository) Deactivate(ctx context.Context, userID int64, secretHash string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&vaultEntryModel{}).
		Where("user_id = ? AND secret_hash = ?", userID, secretHash).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

// Delete reports whether a row was removed.
func (r *VaultRepository) Delete(ctx context.Context, userID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&vaultEntryModel{})
	return res.RowsAffected > 0, res.Error
}

// DeactivateUnvalidatedSince flags active entries whose last successful
// validation is older than cutoff.
func (r *VaultRepository) DeactivateUnvalidatedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&vaultEntryModel{}).
		Where("is_active = ? AND (last_validated_at IS NULL OR last_validated_at < ?)", true, cutoff).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}
