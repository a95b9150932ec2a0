package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
	secretsDomain "github.com/allisson/trustcore/internal/secrets/domain"
	secretsUseCase "github.com/allisson/trustcore/internal/secrets/usecase"
)

type sealedOutput struct {
	KekRef string                               `json:"kek_ref"`
	Sealed string                               `json:"sealed"`
	Blob   *secretsDomain.EnvelopeEncryptedBlob `json:"envelope"`
}

// RunEncryptSecret envelope-encrypts a secret under kekRef and prints it as a sealed
// "enc:" value that can be placed in WEBHOOK_SECRETS or OUTBOUND_VENDOR_SECRETS.
// The plaintext is read from rw.Reader with surrounding whitespace trimmed.
func RunEncryptSecret(
	ctx context.Context,
	vault secretsUseCase.VaultUseCase,
	logger *slog.Logger,
	rw IOTuple,
	kekRef string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	raw, err := readInput(rw.Reader, "-")
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(raw)

	plaintext := bytes.TrimSpace(raw)
	if len(plaintext) == 0 {
		return fmt.Errorf("secret is empty")
	}

	blob, err := vault.EnvelopeEncrypt(ctx, plaintext, kekRef)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}
	sealed, err := secretsDomain.EncodeSealed(blob)
	if err != nil {
		return fmt.Errorf("failed to encode sealed secret: %w", err)
	}

	logger.Info("secret encrypted", slog.String("kek_ref", blob.KekRef))

	if format == "json" {
		return writeJSON(rw.Writer, sealedOutput{KekRef: blob.KekRef, Sealed: sealed, Blob: blob})
	}
	_, err = fmt.Fprintln(rw.Writer, sealed)
	return err
}

// RunDecryptSecret prints the plaintext of a sealed value.
func RunDecryptSecret(
	ctx context.Context,
	vault secretsUseCase.VaultUseCase,
	rw IOTuple,
	sealed string,
) error {
	if !secretsDomain.IsSealed(sealed) {
		return fmt.Errorf("%w: value is not sealed", secretsDomain.ErrInvalidEnvelope)
	}

	plaintext, err := secretsUseCase.Unseal(ctx, vault, sealed)
	if err != nil {
		return fmt.Errorf("failed to decrypt secret: %w", err)
	}
	defer cryptoDomain.Zero(plaintext)

	_, err = fmt.Fprintln(rw.Writer, string(plaintext))
	return err
}

// RunRotateDEK re-encrypts a sealed value under a fresh DEK, optionally moving it to
// newKekRef, and prints the new sealed value. The old value stays decryptable for as
// long as its KEK remains configured.
func RunRotateDEK(
	ctx context.Context,
	vault secretsUseCase.VaultUseCase,
	logger *slog.Logger,
	rw IOTuple,
	sealed string,
	newKekRef string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	blob, err := secretsDomain.DecodeSealed(sealed)
	if err != nil {
		return err
	}

	rotated, err := vault.RotateDEK(ctx, blob, newKekRef)
	if err != nil {
		return fmt.Errorf("failed to rotate DEK: %w", err)
	}
	resealed, err := secretsDomain.EncodeSealed(rotated)
	if err != nil {
		return fmt.Errorf("failed to encode sealed secret: %w", err)
	}

	logger.Info("DEK rotated",
		slog.String("old_kek_ref", blob.KekRef),
		slog.String("new_kek_ref", rotated.KekRef),
	)

	if format == "json" {
		return writeJSON(rw.Writer, sealedOutput{KekRef: rotated.KekRef, Sealed: resealed, Blob: rotated})
	}
	_, err = fmt.Fprintln(rw.Writer, resealed)
	return err
}
