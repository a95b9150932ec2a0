package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MasterKey is a 32-byte root key of the keyring KEK provider. Its ID is the kek_ref
// written into every envelope it wraps, so retired keys keep decrypting old data.
type MasterKey struct {
	ID  string
	Key []byte
}

// KMSKeeper unwraps MASTER_KEYS entries that were sealed with a KMS key.
type KMSKeeper interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// MasterKeyChain holds the configured master keys and names the one new envelopes
// use. It is safe for concurrent use.
type MasterKeyChain struct {
	mu       sync.RWMutex
	activeID string
	keys     map[string]*MasterKey
}

// NewMasterKeyChain builds a chain from decoded keys and takes ownership of their
// bytes; Close zeroes them.
func NewMasterKeyChain(activeID string, keys ...*MasterKey) (*MasterKeyChain, error) {
	chain := &MasterKeyChain{activeID: activeID, keys: make(map[string]*MasterKey, len(keys))}
	for _, k := range keys {
		if err := chain.add(k.ID, k.Key); err != nil {
			chain.Close()
			return nil, err
		}
	}
	if err := chain.checkActive(); err != nil {
		chain.Close()
		return nil, err
	}
	return chain, nil
}

func (m *MasterKeyChain) add(id string, key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: master key %s must be 32 bytes, got %d", ErrInvalidKeySize, id, len(key))
	}
	m.keys[id] = &MasterKey{ID: id, Key: key}
	return nil
}

func (m *MasterKeyChain) checkActive() error {
	if _, ok := m.keys[m.activeID]; !ok {
		return fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, m.activeID)
	}
	return nil
}

// ActiveMasterKeyID returns the ID new envelopes are wrapped under.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// Get returns the key with the given ID.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[id]
	return k, ok
}

// IDs returns every key ID in sorted order.
func (m *MasterKeyChain) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.keys))
}

// Close zeroes every key and empties the chain.
func (m *MasterKeyChain) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		Zero(k.Key)
	}
	clear(m.keys)
	m.activeID = ""
}

// ParseMasterKeyChain parses plaintext MASTER_KEYS:
//
//	MASTER_KEYS="mk-1:<base64 of 32 bytes>,mk-2:<base64 of 32 bytes>"
func ParseMasterKeyChain(raw, activeID string) (*MasterKeyChain, error) {
	return LoadMasterKeyChain(context.Background(), raw, activeID, nil)
}

// LoadMasterKeyChain parses MASTER_KEYS. With a keeper each entry is a base64 KMS
// ciphertext that is decrypted first. Any failure zeroes the keys read so far.
func LoadMasterKeyChain(ctx context.Context, raw, activeID string, keeper KMSKeeper) (*MasterKeyChain, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMasterKeysNotSet
	}
	if activeID == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	chain := &MasterKeyChain{activeID: activeID, keys: make(map[string]*MasterKey)}
	for entry := range strings.SplitSeq(raw, ",") {
		id, key, err := decodeEntry(ctx, strings.TrimSpace(entry), keeper)
		if err == nil {
			err = chain.add(id, key)
		}
		if err != nil {
			Zero(key)
			chain.Close()
			return nil, err
		}
	}
	if err := chain.checkActive(); err != nil {
		chain.Close()
		return nil, err
	}
	return chain, nil
}

// decodeEntry turns "id:base64" into an id and a key slice the caller owns.
func decodeEntry(ctx context.Context, entry string, keeper KMSKeeper) (string, []byte, error) {
	id, encoded, ok := strings.Cut(entry, ":")
	if !ok || id == "" {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidMasterKeysFormat, entry)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return id, nil, fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, id, err)
	}
	if keeper == nil {
		return id, decoded, nil
	}

	key, err := keeper.Decrypt(ctx, decoded)
	if err != nil {
		return id, nil, fmt.Errorf("%w: decrypt master key %s: %v", ErrKEKProviderUnavailable, id, err)
	}
	owned := slices.Clone(key)
	Zero(key)
	return id, owned, nil
}
