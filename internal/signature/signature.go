// Package signature provides the HMAC and Ed25519 primitives shared by webhook
// verification, license verification and signed outbound requests.
//
// All comparisons of secret-derived values go through TimingSafeEqual.
package signature

import (
	"bytes"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// HMACSign returns the lowercase hex HMAC-SHA256 of message under secret.
func HMACSign(message, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACVerify reports whether signatureHex is the HMAC-SHA256 of message under secret.
func HMACVerify(message, secret []byte, signatureHex string) bool {
	expected := HMACSign(message, secret)
	return TimingSafeEqual([]byte(expected), []byte(signatureHex))
}

// TimingSafeEqual compares a and b in constant time for equal lengths. Inputs of
// different length are rejected without comparing content.
func TimingSafeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Canonicalize encodes v as JSON with object keys sorted at every depth and no
// insignificant whitespace. Numbers are emitted exactly as they appear in the input
// when v is raw JSON ([]byte or json.RawMessage).
func Canonicalize(v any) ([]byte, error) {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		raw = b
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to decode payload: trailing data")
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(t.String())
	default:
		return writeScalar(buf, t)
	}
	return nil
}

func writeScalar(buf *bytes.Buffer, v any) error {
	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	buf.Write(bytes.TrimSuffix(out.Bytes(), []byte("\n")))
	return nil
}

// PayloadHash returns the SHA-512 digest of the canonical JSON form of v.
func PayloadHash(v any) ([]byte, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return nil, err
	}
	sum := sha512.Sum512(canonical)
	return sum[:], nil
}

// Ed25519Sign signs payloadHash with priv.
func Ed25519Sign(payloadHash []byte, priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key size: %d", len(priv))
	}
	return ed25519.Sign(priv, payloadHash), nil
}

// Ed25519Verify reports whether sig is a valid signature of payloadHash by pub.
// Malformed key or signature lengths yield false.
func Ed25519Verify(payloadHash, pub, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), payloadHash, sig)
}

// GenerateEd25519KeyPair creates a new signing key pair.
func GenerateEd25519KeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return pub, priv, nil
}
