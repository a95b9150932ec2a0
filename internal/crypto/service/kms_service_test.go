package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localKeyURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("local keeper round trip", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, localKeyURI(t))
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, keeper.Close()) })

		dek := make([]byte, 32)
		_, err = rand.Read(dek)
		require.NoError(t, err)

		wrapped, err := keeper.Encrypt(ctx, dek)
		require.NoError(t, err)
		assert.NotEqual(t, dek, wrapped)

		unwrapped, err := keeper.Decrypt(ctx, wrapped)
		require.NoError(t, err)
		assert.Equal(t, dek, unwrapped)
	})

	tests := []struct {
		name        string
		uri         string
		errContains string
	}{
		{name: "no scheme", uri: "just-a-key", errContains: "malformed key URI"},
		{name: "malformed", uri: "://broken", errContains: "malformed key URI"},
		{name: "unknown scheme", uri: "vaultx://keys/root", errContains: `unsupported scheme "vaultx"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keeper, err := kmsService.OpenKeeper(ctx, tt.uri)
			require.Error(t, err)
			assert.Nil(t, keeper)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}

	t.Run("bad local key stays out of the error", func(t *testing.T) {
		secret := base64.URLEncoding.EncodeToString([]byte("too-short"))
		_, err := kmsService.OpenKeeper(ctx, "base64key://"+secret)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "(base64key)")
		assert.NotContains(t, err.Error(), "base64key://"+secret)
	})
}
