package domain

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLicenseDocument(t *testing.T) {
	sig := base64.StdEncoding.EncodeToString(make([]byte, SignatureSize))

	t.Run("valid", func(t *testing.T) {
		doc, err := ParseLicenseDocument([]byte(`{"payload":{"org":"acme"},"signature":"` + sig + `"}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"org":"acme"}`, string(doc.Payload))

		raw, err := doc.SignatureBytes()
		require.NoError(t, err)
		assert.Len(t, raw, SignatureSize)
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := ParseLicenseDocument([]byte(`{"payload":{"org":"acme"}}`))
		assert.Error(t, err)
	})

	t.Run("bad signature encoding", func(t *testing.T) {
		doc, err := ParseLicenseDocument([]byte(`{"payload":{},"signature":"!!"}`))
		require.NoError(t, err)
		_, err = doc.SignatureBytes()
		assert.Error(t, err)
	})
}

func TestDecodePublicKey(t *testing.T) {
	_, err := DecodePublicKey(base64.StdEncoding.EncodeToString(make([]byte, PublicKeySize)))
	assert.NoError(t, err)

	_, err = DecodePublicKey(base64.StdEncoding.EncodeToString(make([]byte, 16)))
	assert.ErrorContains(t, err, "must be 32 bytes")

	_, err = DecodePublicKey("%%%")
	assert.Error(t, err)
}

func TestLicenseError(t *testing.T) {
	err := &LicenseError{Code: CodeFeatureNotLicensed, Feature: "sso", Reason: "not enabled"}
	assert.ErrorIs(t, err, ErrFeatureNotLicensed)
	assert.NotErrorIs(t, err, ErrLicenseInvalid)
	assert.Contains(t, err.Error(), `feature "sso"`)
}
