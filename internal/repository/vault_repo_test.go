package repository

import (
	"context"
	"testing"
	"time"

	"safepath/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(userID int64, blob, hash string, at time.Time) *domain.VaultEntry {
	return &domain.VaultEntry{
		UserID:          userID,
		Ciphertext:      blob,
		SecretHash:      hash,
		Scopes:          []string{"repo"},
		LastValidatedAt: &at,
		IsActive:        true,
	}
}

func TestVaultRepository_ReplaceKeepsOneEntry(t *testing.T) {
	repo := NewVaultRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	first := newEntry(1, "blob-1", "hash-1", now)
	require.NoError(t, repo.Replace(ctx, first))
	second := newEntry(1, "blob-2", "hash-2", now)
	require.NoError(t, repo.Replace(ctx, second))

	assert.NotEqual(t, first.ID, second.ID)

	got, err := repo.GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "blob-2", got.Ciphertext)
	assert.Equal(t, "hash-2", got.SecretHash)
	assert.Equal(t, []string{"repo"}, got.Scopes)

	var count int64
	require.NoError(t, repo.db.Model(&vaultEntryModel{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestVaultRepository_UpsertPreservesRowID(t *testing.T) {
	repo := NewVaultRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	created := newEntry(2, "blob-1", "hash-1", now)
	require.NoError(t, repo.Upsert(ctx, created))
	require.NotZero(t, created.ID)

	updated := newEntry(2, "blob-2", "hash-2", now.Add(time.Minute))
	updated.Scopes = []string{"repo", "gist"}
	require.NoError(t, repo.Upsert(ctx, updated))

	assert.Equal(t, created.ID, updated.ID)

	got, err := repo.GetByUserID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "blob-2", got.Ciphertext)
	assert.Equal(t, "hash-2", got.SecretHash)
	assert.Equal(t, []string{"repo", "gist"}, got.Scopes)
}

func TestVaultRepository_MarkValidatedAndDeactivate(t *testing.T) {
	repo := NewVaultRepository(setupTestDB(t))
	ctx := context.Background()
	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, repo.Replace(ctx, newEntry(3, "blob", "hash", old)))

	now := time.Now().UTC()
	ok, err := repo.MarkValidated(ctx, 3, "hash", []string{"read:user"}, now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := repo.GetByUserID(ctx, 3)
	assert.Equal(t, []string{"read:user"}, got.Scopes)
	assert.True(t, got.LastValidatedAt.After(old))

	ok, err = repo.MarkValidated(ctx, 3, "other-hash", nil, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Deactivate(ctx, 3, "hash")
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ = repo.GetByUserID(ctx, 3)
	assert.False(t, got.IsActive)
}

func TestVaultRepository_Delete(t *testing.T) {
	repo := NewVaultRepository(setupTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Replace(ctx, newEntry(4, "blob", "hash", time.Now())))

	removed, err := repo.Delete(ctx, 4)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, 4)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.GetByUserID(ctx, 4)
	assert.ErrorIs(t, err, ErrVaultEntryNotFound)
}

func TestVaultRepository_DeactivateUnvalidatedSince(t *testing.T) {
	repo := NewVaultRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Replace(ctx, newEntry(5, "b", "h", now.Add(-48*time.Hour))))
	require.NoError(t, repo.Replace(ctx, newEntry(6, "b", "h", now)))

	n, err := repo.DeactivateUnvalidatedSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stale, _ := repo.GetByUserID(ctx, 5)
	fresh, _ := repo.GetByUserID(ctx, 6)
	assert.False(t, stale.IsActive)
	assert.True(t, fresh.IsActive)
}
