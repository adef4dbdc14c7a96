package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	return h
}

func TestHasher_HashAndCompare(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "password123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))
	assert.NotContains(t, hash, "password123")

	ok, err := h.Compare(ctx, hash, "password123")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, wrong := range []string{"password124", "Password123", "password12", "password1234", ""} {
		ok, err := h.Compare(ctx, hash, wrong)
		require.NoError(t, err)
		assert.False(t, ok, wrong)
	}
}

func TestHasher_Salted(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash(context.Background(), "same-password")
	require.NoError(t, err)
	b, err := h.Hash(context.Background(), "same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHasher_UsesConfiguredCost(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost+1, 1)
	require.NoError(t, err)

	hash, err := h.Hash(context.Background(), "password123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
	assert.Equal(t, bcrypt.MinCost+1, h.Cost())
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, newTestHasher(t).NeedsRehash(hash))
	assert.True(t, h.NeedsRehash("not-a-hash"))
}

func TestNewHasher_CostOutOfRange(t *testing.T) {
	_, err := NewHasher(3, 1)
	assert.Error(t, err)
	_, err = NewHasher(32, 1)
	assert.Error(t, err)
}

func TestHasher_PasswordTooLong(t *testing.T) {
	h := newTestHasher(t)

	// 30 characters, 90 bytes.
	_, err := h.Hash(context.Background(), strings.Repeat("€", 30))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = h.Hash(context.Background(), strings.Repeat("€", 24))
	assert.NoError(t, err)
}

func TestHasher_MalformedHash(t *testing.T) {
	ok, err := newTestHasher(t).Compare(context.Background(), "not-a-bcrypt-hash", "password123")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestHasher_CompareDummy(t *testing.T) {
	h := newTestHasher(t)
	assert.NotPanics(t, func() { h.CompareDummy(context.Background(), "whatever") })
}

func TestHasher_WaitsForSlotWithContext(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost, 1)
	require.NoError(t, err)

	// Occupy the only slot.
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = h.Hash(ctx, "password123")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
