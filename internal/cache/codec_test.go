package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := map[string]any{
		"userId": "u-1",
		"roles":  []any{"admin", "viewer"},
		"count":  int8(3),
	}

	encoded, err := Encode(payload)
	require.NoError(t, err)

	var out map[string]any
	require.True(t, Decode(encoded, &out))
	assert.Equal(t, "u-1", out["userId"])
}

func TestEncodedFormVariesButDecodesIdentically(t *testing.T) {
	// The decorative suffix makes identical payloads store differently;
	// every variant must still decode to the same value.
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		encoded, err := Encode("same payload")
		require.NoError(t, err)
		seen[encoded] = true

		var out string
		require.True(t, Decode(encoded, &out))
		assert.Equal(t, "same payload", out)
	}
	assert.Greater(t, len(seen), 1, "suffix choice should vary across encodings")
}

func TestDecodeStripsStackedSuffixes(t *testing.T) {
	encoded, err := Encode("value")
	require.NoError(t, err)

	var out string
	require.True(t, Decode(encoded+"~zp9~mk2", &out))
	assert.Equal(t, "value", out)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var out string
	assert.False(t, Decode("zz-not-hex", &out))
	assert.False(t, Decode("", &out))
	assert.False(t, Decode("abcdef", &out), "valid hex but not a valid payload")
}

func TestExpiryEncoding(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	t.Run("future expiry is valid", func(t *testing.T) {
		enc, err := EncodeExpiry(now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, IsExpiryValid(enc, now))
	})

	t.Run("past expiry is invalid", func(t *testing.T) {
		enc, err := EncodeExpiry(now.Add(-time.Hour))
		require.NoError(t, err)
		assert.False(t, IsExpiryValid(enc, now))
	})

	t.Run("expiry exactly now is invalid", func(t *testing.T) {
		enc, err := EncodeExpiry(now)
		require.NoError(t, err)
		assert.False(t, IsExpiryValid(enc, now))
	})

	t.Run("undecodable expiry is invalid", func(t *testing.T) {
		assert.False(t, IsExpiryValid("corrupted", now))
		assert.False(t, IsExpiryValid("", now))
	})
}
