package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/allisson/trustcore/internal/config"
	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
	cryptoService "github.com/allisson/trustcore/internal/crypto/service"
	secretsUseCase "github.com/allisson/trustcore/internal/secrets/usecase"
)

// MasterKeyChain returns the keyring loaded from MASTER_KEYS, unwrapping entries
// through KMS_MASTER_KEY_URI when it is set.
func (c *Container) MasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	return c.masterKeyChain.get(c.initMasterKeyChain)
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	return c.aeadManager.must(func() cryptoService.AEADManager {
		return cryptoService.NewAEADManager()
	})
}

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	return c.kmsService.must(cryptoService.NewKMSService)
}

// KEKProvider returns the provider selected by KEK_PROVIDER.
func (c *Container) KEKProvider() (cryptoService.KEKProvider, error) {
	return c.kekProvider.get(c.initKEKProvider)
}

// DekCache returns the DEK cache with its janitor running.
func (c *Container) DekCache() *cryptoService.DekCache {
	return c.dekCache.must(func() *cryptoService.DekCache {
		cache := cryptoService.NewDekCache(c.config.DekCacheTTL, c.Logger())
		cache.StartJanitor(janitorInterval(c.config.DekCacheTTL))
		return cache
	})
}

// Vault returns the envelope encryption use case.
func (c *Container) Vault() (secretsUseCase.VaultUseCase, error) {
	return c.vault.get(c.initVault)
}

// ActiveKekRef returns the kek_ref new envelopes are wrapped with. For the keyring
// provider it is ACTIVE_MASTER_KEY_ID; for KMS it is ACTIVE_MASTER_KEY_ID when that
// names a configured ref, otherwise the first ref in sorted order.
func (c *Container) ActiveKekRef() (string, error) {
	switch c.config.KEKProvider {
	case config.KEKProviderKMS:
		uris, err := cryptoService.ParseKeyURIs(c.config.KMSKeyURIs)
		if err != nil {
			return "", err
		}
		if _, ok := uris[c.config.ActiveMasterKeyID]; ok {
			return c.config.ActiveMasterKeyID, nil
		}
		refs := slices.Sorted(maps.Keys(uris))
		if len(refs) == 0 {
			return "", fmt.Errorf("no KMS key URIs configured")
		}
		return refs[0], nil
	default:
		chain, err := c.MasterKeyChain()
		if err != nil {
			return "", err
		}
		return chain.ActiveMasterKeyID(), nil
	}
}

func (c *Container) initMasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	if c.config.KMSMasterKeyURI == "" {
		chain, err := cryptoDomain.ParseMasterKeyChain(c.config.MasterKeys, c.config.ActiveMasterKeyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load master key chain: %w", err)
		}
		return chain, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.KMSTimeout)
	defer cancel()

	keeper, err := c.KMSService().OpenKeeper(ctx, c.config.KMSMasterKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open master key keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			c.Logger().Warn("failed to close master key keeper", slog.Any("error", closeErr))
		}
	}()

	chain, err := cryptoDomain.LoadMasterKeyChain(ctx, c.config.MasterKeys, c.config.ActiveMasterKeyID, keeper)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key chain: %w", err)
	}
	return chain, nil
}

func (c *Container) initKEKProvider() (cryptoService.KEKProvider, error) {
	switch c.config.KEKProvider {
	case config.KEKProviderKeyring:
		chain, err := c.MasterKeyChain()
		if err != nil {
			return nil, fmt.Errorf("failed to get master key chain for kek provider: %w", err)
		}
		alg, err := cryptoDomain.ParseAlgorithm(c.config.KeyringWrapAlgorithm)
		if err != nil {
			return nil, fmt.Errorf("invalid KEYRING_WRAP_ALGORITHM: %w", err)
		}
		return cryptoService.NewKeyringKEKProvider(chain, alg, c.AEADManager()), nil
	case config.KEKProviderKMS:
		uris, err := cryptoService.ParseKeyURIs(c.config.KMSKeyURIs)
		if err != nil {
			return nil, fmt.Errorf("failed to parse KMS key URIs: %w", err)
		}
		return cryptoService.NewKMSKEKProvider(c.KMSService(), uris, c.config.KMSTimeout, c.Logger()), nil
	default:
		return nil, fmt.Errorf("unsupported kek provider: %s", c.config.KEKProvider)
	}
}

func (c *Container) initVault() (secretsUseCase.VaultUseCase, error) {
	kekProvider, err := c.KEKProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get kek provider for vault: %w", err)
	}

	vault := secretsUseCase.NewVaultUseCase(kekProvider, c.AEADManager(), c.DekCache(), c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			vault.Shutdown()
			return nil, fmt.Errorf("failed to get business metrics for vault: %w", err)
		}
		return secretsUseCase.NewVaultUseCaseWithMetrics(vault, businessMetrics), nil
	}
	return vault, nil
}

// janitorInterval sweeps ten times per TTL, between once a second and once a minute.
func janitorInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/10, time.Second), time.Minute)
}
