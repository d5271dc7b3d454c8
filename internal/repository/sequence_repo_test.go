package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSequenceRepository_Next(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSequenceRepository(db)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := repo.Next(ctx, "250601")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := repo.Next(ctx, "250602")
	require.NoError(t, err)
	assert.Equal(t, 1, other)

	cur, err := repo.Current(ctx, "250601")
	require.NoError(t, err)
	assert.Equal(t, 3, cur)
}

func TestSequenceRepository_RollbackReleasesNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSequenceRepository(db)
	ctx := context.Background()

	_, err := repo.Next(ctx, "250601")
	require.NoError(t, err)

	errAbort := errors.New("abort")
	err = db.Transaction(func(tx *gorm.DB) error {
		seq, err := repo.WithTx(tx).Next(ctx, "250601")
		require.NoError(t, err)
		assert.Equal(t, 2, seq)
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	cur, err := repo.Current(ctx, "250601")
	require.NoError(t, err)
	assert.Equal(t, 1, cur)
}
