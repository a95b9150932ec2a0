package app

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	attestationHTTP "github.com/allisson/trustcore/internal/attestation/http"
	attestationRepository "github.com/allisson/trustcore/internal/attestation/repository"
	attestationService "github.com/allisson/trustcore/internal/attestation/service"
	attestationUseCase "github.com/allisson/trustcore/internal/attestation/usecase"
	"github.com/allisson/trustcore/internal/config"
	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
)

// RootSigner returns the signer for daily Merkle roots.
func (c *Container) RootSigner() (*attestationService.RootSigner, error) {
	return c.rootSigner.get(c.initRootSigner)
}

// RootRepository returns the root store selected by ATTESTATION_STORAGE.
func (c *Container) RootRepository() (attestationUseCase.RootRepository, error) {
	return c.rootRepository.get(c.initRootRepository)
}

// AttestationLog returns the append-only attestation log.
func (c *Container) AttestationLog() (attestationUseCase.AttestationLog, error) {
	return c.attestationLog.get(c.initAttestationLog)
}

// AttestationHandler returns the HTTP handler for attestation queries.
func (c *Container) AttestationHandler() (*attestationHTTP.AttestationHandler, error) {
	return c.attestationHandler.get(c.initAttestationHandler)
}

// initRootSigner derives the signer from ATTESTATION_SIGNING_KEY. Without a key an
// ephemeral one is generated; its roots cannot be verified after a restart.
func (c *Container) initRootSigner() (*attestationService.RootSigner, error) {
	var secret []byte
	if c.config.AttestationSigningKey == "" {
		c.Logger().Warn("ATTESTATION_SIGNING_KEY not set, signing roots with an ephemeral key")
		secret = make([]byte, attestationService.MinSigningSecretSize)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate attestation signing key: %w", err)
		}
	} else {
		decoded, err := base64.StdEncoding.DecodeString(c.config.AttestationSigningKey)
		if err != nil {
			return nil, fmt.Errorf("invalid ATTESTATION_SIGNING_KEY: %w", err)
		}
		secret = decoded
	}
	defer cryptoDomain.Zero(secret)

	signer, err := attestationService.NewRootSigner(secret, c.config.AttestationSigningKeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to create root signer: %w", err)
	}
	return signer, nil
}

func (c *Container) initRootRepository() (attestationUseCase.RootRepository, error) {
	if c.config.AttestationStorage == config.AttestationStorageFile {
		repo, err := attestationRepository.NewFileRootRepository(c.config.AttestationDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open attestation dir: %w", err)
		}
		return repo, nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for root repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return attestationRepository.NewPostgreSQLRootRepository(db), nil
	case "mysql":
		return attestationRepository.NewMySQLRootRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initAttestationLog() (attestationUseCase.AttestationLog, error) {
	repo, err := c.RootRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get root repository for attestation log: %w", err)
	}
	signer, err := c.RootSigner()
	if err != nil {
		return nil, fmt.Errorf("failed to get root signer for attestation log: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for attestation log: %w", err)
	}

	return attestationUseCase.NewAttestationLog(
		repo,
		signer,
		attestationUseCase.Options{
			BuildHash:   c.config.BuildHash,
			ImageDigest: c.config.ImageDigest,
		},
		businessMetrics,
		c.Logger(),
	), nil
}

func (c *Container) initAttestationHandler() (*attestationHTTP.AttestationHandler, error) {
	attestationLog, err := c.AttestationLog()
	if err != nil {
		return nil, fmt.Errorf("failed to get attestation log for attestation handler: %w", err)
	}
	return attestationHTTP.NewAttestationHandler(attestationLog, c.Logger()), nil
}
