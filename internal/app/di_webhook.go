package app

import (
	"context"
	"fmt"

	outboundDomain "github.com/allisson/trustcore/internal/outbound/domain"
	outboundService "github.com/allisson/trustcore/internal/outbound/service"
	secretsDomain "github.com/allisson/trustcore/internal/secrets/domain"
	secretsUseCase "github.com/allisson/trustcore/internal/secrets/usecase"
	webhookHTTP "github.com/allisson/trustcore/internal/webhook/http"
	webhookService "github.com/allisson/trustcore/internal/webhook/service"
	webhookUseCase "github.com/allisson/trustcore/internal/webhook/usecase"
)

// NonceStore returns the webhook replay nonce store. Its purger is started by the
// server command.
func (c *Container) NonceStore() *webhookService.NonceStore {
	return c.nonceStore.must(func() *webhookService.NonceStore {
		return webhookService.NewNonceStore(c.Logger())
	})
}

// WebhookVerifier returns the webhook verifier, decorated with metrics when enabled.
func (c *Container) WebhookVerifier() (webhookUseCase.Verifier, error) {
	return c.webhookVerifier.get(c.initWebhookVerifier)
}

// WebhookSecrets returns the per-vendor secrets from WEBHOOK_SECRETS with sealed
// values opened through the vault.
func (c *Container) WebhookSecrets() (webhookHTTP.SecretMap, error) {
	return c.webhookSecrets.get(c.initWebhookSecrets)
}

// WebhookHandler returns the handler that attests verified webhook deliveries.
func (c *Container) WebhookHandler() (*webhookHTTP.WebhookHandler, error) {
	return c.webhookHandler.get(c.initWebhookHandler)
}

// OutboundGuard returns the SSRF guard built from the OUTBOUND_* settings and the
// optional policy file.
func (c *Container) OutboundGuard() (*outboundService.Guard, error) {
	return c.outboundGuard.get(c.initOutboundGuard)
}

func (c *Container) initWebhookVerifier() (webhookUseCase.Verifier, error) {
	verifier := webhookUseCase.NewVerifier(c.NonceStore(), c.config.WebhookReplayWindow, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for webhook verifier: %w", err)
		}
		return webhookUseCase.NewVerifierWithMetrics(verifier, businessMetrics), nil
	}
	return verifier, nil
}

func (c *Container) initWebhookSecrets() (webhookHTTP.SecretMap, error) {
	parsed, err := webhookHTTP.ParseSecretMap(c.config.WebhookSecrets)
	if err != nil {
		return nil, fmt.Errorf("failed to parse webhook secrets: %w", err)
	}

	raw := make(map[string]string, len(parsed))
	for vendor, secret := range parsed {
		raw[vendor] = string(secret)
	}
	vault, err := c.vaultIfSealed(raw)
	if err != nil {
		return nil, err
	}
	secrets, err := secretsUseCase.UnsealMap(context.Background(), vault, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal webhook secrets: %w", err)
	}
	return webhookHTTP.SecretMap(secrets), nil
}

func (c *Container) initWebhookHandler() (*webhookHTTP.WebhookHandler, error) {
	attestationLog, err := c.AttestationLog()
	if err != nil {
		return nil, fmt.Errorf("failed to get attestation log for webhook handler: %w", err)
	}
	return webhookHTTP.NewWebhookHandler(attestationLog, c.Logger()), nil
}

func (c *Container) initOutboundGuard() (*outboundService.Guard, error) {
	policy, err := outboundDomain.ParsePolicy(
		c.config.OutboundAllowlist,
		c.config.OutboundVendorSecrets,
		c.config.OutboundStrictDNS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse outbound policy: %w", err)
	}
	if c.config.OutboundPolicyFile != "" {
		filePolicy, err := outboundDomain.LoadPolicyFile(c.config.OutboundPolicyFile)
		if err != nil {
			return nil, err
		}
		policy.Merge(filePolicy)
	}

	vault, err := c.vaultIfSealed(policy.VendorSecrets)
	if err != nil {
		return nil, err
	}
	secrets, err := secretsUseCase.UnsealMap(context.Background(), vault, policy.VendorSecrets)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal outbound vendor secrets: %w", err)
	}
	for host, secret := range secrets {
		policy.VendorSecrets[host] = string(secret)
	}

	return outboundService.NewGuard(policy, nil, c.Logger()), nil
}

// vaultIfSealed returns the vault when any value is sealed, and nil otherwise so
// deployments without sealed secrets need no master keys.
func (c *Container) vaultIfSealed(values map[string]string) (secretsUseCase.VaultUseCase, error) {
	for _, v := range values {
		if secretsDomain.IsSealed(v) {
			vault, err := c.Vault()
			if err != nil {
				return nil, fmt.Errorf("failed to get vault for sealed secrets: %w", err)
			}
			return vault, nil
		}
	}
	return nil, nil
}
