package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
	cryptoService "github.com/allisson/trustcore/internal/crypto/service"
)

// RunCreateMasterKey generates a 32-byte master key for the keyring KEK provider and
// prints the environment needed to load it. If keyID is empty a default ID of the
// form "master-key-YYYY-MM-DD" is used.
//
// With kmsKeyURI set the key is encrypted by that KMS key before output and must be
// loaded with KMS_MASTER_KEY_URI; without it the raw key is printed, which is only
// suitable for local development. Key material is zeroed after encoding.
func RunCreateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID string,
	kmsKeyURI string,
) error {
	if keyID == "" {
		keyID = fmt.Sprintf("master-key-%s", time.Now().UTC().Format("2006-01-02"))
	}

	masterKey := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer cryptoDomain.Zero(masterKey)

	if kmsKeyURI == "" {
		logger.Warn("printing an unwrapped master key, use --kms-key-uri outside local development")

		encodedKey := base64.StdEncoding.EncodeToString(masterKey)
		_, _ = fmt.Fprintln(writer, "# Master Key Configuration (plaintext keyring)")
		_, _ = fmt.Fprintln(writer)
		_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s:%s\"\n", keyID, encodedKey)
		_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_ID=\"%s\"\n", keyID)
		return nil
	}

	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	ciphertext, err := keeper.Encrypt(ctx, masterKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt master key with KMS: %w", err)
	}
	encodedKey := base64.StdEncoding.EncodeToString(ciphertext)

	logger.Info("master key created", slog.String("master_key_id", keyID))

	_, _ = fmt.Fprintln(writer, "# Master Key Configuration (KMS Mode)")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "KMS_MASTER_KEY_URI=\"%s\"\n", kmsKeyURI)
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s:%s\"\n", keyID, encodedKey)
	_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_ID=\"%s\"\n", keyID)
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "# For key rotation, append the new entry and switch the active id:")
	_, _ = fmt.Fprintf(writer, "# MASTER_KEYS=\"%s:%s,new-key:<kms-ciphertext>\"\n", keyID, encodedKey)

	return nil
}
