package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gocloud.dev/gcerrors"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
)

// DefaultKMSTimeout bounds every call to the KMS backend.
const DefaultKMSTimeout = 30 * time.Second

// KMSKEKProvider is the production KEKProvider. Each kek_ref maps to a KMS key URI
// (KMS_KEY_URIS); keepers are opened on first use and reused until Close.
//
// The KEK never leaves the KMS: DEKs are sent to the backend to be wrapped and
// unwrapped.
type KMSKEKProvider struct {
	kmsService KMSService
	keyURIs    map[string]string
	timeout    time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	keepers map[string]Keeper
	closed  bool
}

// NewKMSKEKProvider creates a KMS backed provider. A zero timeout means DefaultKMSTimeout.
func NewKMSKEKProvider(
	kmsService KMSService,
	keyURIs map[string]string,
	timeout time.Duration,
	logger *slog.Logger,
) *KMSKEKProvider {
	if timeout <= 0 {
		timeout = DefaultKMSTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	uris := make(map[string]string, len(keyURIs))
	for ref, uri := range keyURIs {
		uris[ref] = uri
	}
	return &KMSKEKProvider{
		kmsService: kmsService,
		keyURIs:    uris,
		timeout:    timeout,
		logger:     logger,
		keepers:    make(map[string]Keeper),
	}
}

// ParseKeyURIs parses "ref=uri,ref2=uri2" into a map.
func ParseKeyURIs(raw string) (map[string]string, error) {
	uris := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return uris, nil
	}
	for part := range strings.SplitSeq(raw, ",") {
		ref, uri, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || uri == "" {
			return nil, fmt.Errorf("%w: malformed KMS_KEY_URIS entry %q", cryptoDomain.ErrInvalidKekRef, part)
		}
		if err := cryptoDomain.ValidateKekRef(ref); err != nil {
			return nil, err
		}
		uris[ref] = uri
	}
	return uris, nil
}

func (p *KMSKEKProvider) keeper(ctx context.Context, kekRef string) (Keeper, error) {
	if err := cryptoDomain.ValidateKekRef(kekRef); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("%w: provider closed", cryptoDomain.ErrKEKProviderUnavailable)
	}
	if k, ok := p.keepers[kekRef]; ok {
		return k, nil
	}
	uri, ok := p.keyURIs[kekRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrKekNotFound, kekRef)
	}
	k, err := p.kmsService.OpenKeeper(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKEKProviderUnavailable, err)
	}
	p.keepers[kekRef] = k
	return k, nil
}

// EncryptDEK wraps dek with the KMS key named by kekRef.
func (p *KMSKEKProvider) EncryptDEK(ctx context.Context, kekRef string, dek []byte) ([]byte, error) {
	if len(dek) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", cryptoDomain.ErrKEKProviderUnavailable, err)
	}
	k, err := p.keeper(ctx, kekRef)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	wrapped, err := k.Encrypt(ctx, dek)
	if err != nil {
		p.logger.Warn("kms encrypt failed", slog.String("kek_ref", kekRef), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKEKProviderUnavailable, err)
	}
	return wrapped, nil
}

// DecryptDEK unwraps encryptedDEK with the KMS key named by kekRef.
func (p *KMSKEKProvider) DecryptDEK(
	ctx context.Context,
	kekRef string,
	encryptedDEK []byte,
) ([]byte, error) {
	// Some keepers unwrap locally and never look at ctx.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", cryptoDomain.ErrKEKProviderUnavailable, err)
	}
	k, err := p.keeper(ctx, kekRef)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dek, err := k.Decrypt(ctx, encryptedDEK)
	if err != nil {
		if isTransient(ctx, err) {
			p.logger.Warn("kms decrypt unavailable", slog.String("kek_ref", kekRef), slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKEKProviderUnavailable, err)
		}
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	if len(dek) != cryptoDomain.KeySize {
		cryptoDomain.Zero(dek)
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return dek, nil
}

// Close closes every opened keeper. The provider refuses further calls.
func (p *KMSKEKProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for ref, k := range p.keepers {
		if err := k.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close keeper %s: %w", ref, err))
		}
	}
	p.keepers = make(map[string]Keeper)
	p.closed = true
	return errors.Join(errs...)
}

func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	switch gcerrors.Code(err) {
	case gcerrors.DeadlineExceeded, gcerrors.Canceled, gcerrors.ResourceExhausted, gcerrors.Internal:
		return true
	default:
		return false
	}
}
