package store

import (
	"testing"

	"tenantcore-backend/internal/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token := EncodeCursor(index.TenantCreatedAt, memoryCursor{Offset: 42})
	require.NotEmpty(t, token)

	var cur memoryCursor
	ok, err := DecodeCursor(token, index.TenantCreatedAt, &cur)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, cur.Offset)
}

func TestCursorEmptyToken(t *testing.T) {
	var cur memoryCursor
	ok, err := DecodeCursor("", index.TenantCreatedAt, &cur)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursorRejectsForeignIndex(t *testing.T) {
	token := EncodeCursor(index.TenantCreatedAt, memoryCursor{Offset: 3})

	var cur memoryCursor
	_, err := DecodeCursor(token, index.TenantRecordDate, &cur)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor belongs to index")
}

func TestCursorRejectsGarbage(t *testing.T) {
	t.Run("not base64", func(t *testing.T) {
		var cur memoryCursor
		_, err := DecodeCursor("!!not-a-cursor!!", index.TenantCreatedAt, &cur)
		assert.Error(t, err)
	})

	t.Run("base64 but not an envelope", func(t *testing.T) {
		var cur memoryCursor
		_, err := DecodeCursor("bm90IGpzb24", index.TenantCreatedAt, &cur)
		assert.Error(t, err)
	})
}
