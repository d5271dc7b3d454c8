package hotel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavendermoon/villa-pms/internal/common/crypto"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
)

const testAESKey = "0123456789abcdef0123456789abcdef"

func TestGuestService_UpsertByEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := NewGuestService(repository.NewGuestRepository(db), nil)
	ctx := context.Background()

	first, err := svc.UpsertGuest(ctx, &GuestInput{FirstName: "Ada", LastName: "Lovelace", Email: "Ada@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", first.Email)

	second, err := svc.UpsertGuest(ctx, &GuestInput{FirstName: "Ada", LastName: "King", Email: " ada@example.COM ", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "King", second.LastName)
	assert.Equal(t, "555", second.Phone)

	var count int64
	require.NoError(t, db.Model(&models.Guest{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGuestService_RejectsInvalidEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := NewGuestService(repository.NewGuestRepository(db), nil)

	_, err := svc.UpsertGuest(context.Background(), &GuestInput{FirstName: "Ada", Email: "not-an-email"})
	assert.ErrorIs(t, err, errors.ErrGuestEmailInvalid)
}

func TestGuestService_EncryptsIDNumber(t *testing.T) {
	db := setupTestDB(t)
	cipher, err := crypto.NewFieldCipher(testAESKey)
	require.NoError(t, err)
	svc := NewGuestService(repository.NewGuestRepository(db), cipher)
	ctx := context.Background()

	guest, err := svc.UpsertGuest(ctx, &GuestInput{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		IDType: "passport", IDNumber: "P1234567",
	})
	require.NoError(t, err)
	assert.Equal(t, "P1234567", guest.IDNumber)

	var stored models.Guest
	require.NoError(t, db.First(&stored, guest.ID).Error)
	assert.True(t, crypto.IsEncrypted(stored.IDNumber))

	got, err := svc.GetGuest(ctx, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, "P1234567", got.IDNumber)

	list, total, err := svc.ListGuests(ctx, utils.Pagination{Page: 1, PageSize: 10}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "****4567", list[0].IDNumber)
}

func TestGuestService_GetGuestNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewGuestService(repository.NewGuestRepository(db), nil)

	_, err := svc.GetGuest(context.Background(), 42)
	assert.ErrorIs(t, err, errors.ErrGuestNotFound)
}
