package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	attestationService "github.com/allisson/trustcore/internal/attestation/service"
	attestationUseCase "github.com/allisson/trustcore/internal/attestation/usecase"
	"github.com/allisson/trustcore/internal/database"
	apperrors "github.com/allisson/trustcore/internal/errors"
)

// importPageSize bounds how many roots are read from the source per List call.
const importPageSize = 100

type rootOutput struct {
	Root       string `json:"root"`
	EventCount int    `json:"event_count"`
}

type verifyOutput struct {
	Date     string `json:"date"`
	Segment  int    `json:"segment,omitempty"`
	Valid    bool   `json:"valid"`
	Stored   string `json:"stored_root"`
	Computed string `json:"computed_root"`
}

type importOutput struct {
	Imported int      `json:"imported"`
	Dates    []string `json:"dates"`
}

// RunComputeMerkleRoot prints the Merkle root of the events read from eventsPath
// ("-" for rw.Reader). The input is a JSON array of events or the response body of
// GET /v1/attestation/events.
func RunComputeMerkleRoot(rw IOTuple, eventsPath, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	events, err := loadEvents(rw, eventsPath)
	if err != nil {
		return err
	}

	out := rootOutput{Root: attestationService.RootOf(events), EventCount: len(events)}
	if format == "json" {
		return writeJSON(rw.Writer, out)
	}
	_, _ = fmt.Fprintf(rw.Writer, "Root:        %s\n", out.Root)
	_, _ = fmt.Fprintf(rw.Writer, "Event count: %d\n", out.EventCount)
	return nil
}

// RunVerifyMerkleRoot recomputes the root of the events read from eventsPath and
// compares it with the root stored for date and segment. A mismatch returns an error wrapping
// ErrRootMismatch.
func RunVerifyMerkleRoot(
	ctx context.Context,
	attestationLog attestationUseCase.AttestationLog,
	rw IOTuple,
	date string,
	segment int,
	eventsPath, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	events, err := loadEvents(rw, eventsPath)
	if err != nil {
		return err
	}
	stored, err := attestationLog.GetRoot(ctx, date, segment)
	if err != nil {
		return fmt.Errorf("failed to load stored root: %w", err)
	}

	valid, err := attestationLog.VerifyMerkleRoot(ctx, stored, events)
	if err != nil {
		return fmt.Errorf("failed to verify root: %w", err)
	}

	out := verifyOutput{
		Date:     stored.Date,
		Segment:  stored.Segment,
		Valid:    valid,
		Stored:   stored.Root,
		Computed: attestationService.RootOf(events),
	}
	if format == "json" {
		if err := writeJSON(rw.Writer, out); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(rw.Writer, "Date:          %s\n", stored.Key())
		_, _ = fmt.Fprintf(rw.Writer, "Stored root:   %s\n", out.Stored)
		_, _ = fmt.Fprintf(rw.Writer, "Computed root: %s\n", out.Computed)
		_, _ = fmt.Fprintf(rw.Writer, "Valid:         %t\n", out.Valid)
	}

	if !valid {
		return apperrors.Wrapf(attestationDomain.ErrRootMismatch, "root for %s", stored.Key())
	}
	return nil
}

// RunImportMerkleRoots copies every root from source into target inside one
// transaction. Each root's signature is checked with signer first; a single bad
// root aborts the import before anything is written. Without overwrite a root
// already present in target fails the whole import.
func RunImportMerkleRoots(
	ctx context.Context,
	source attestationUseCase.RootRepository,
	target attestationUseCase.RootRepository,
	signer *attestationService.RootSigner,
	txManager database.TxManager,
	logger *slog.Logger,
	rw IOTuple,
	overwrite bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	var roots []*attestationDomain.DailyMerkleRoot
	for offset := 0; ; offset += importPageSize {
		page, err := source.List(ctx, offset, importPageSize)
		if err != nil {
			return fmt.Errorf("failed to list source roots: %w", err)
		}
		roots = append(roots, page...)
		if len(page) < importPageSize {
			break
		}
	}

	for _, root := range roots {
		if !signer.Verify(root) {
			return apperrors.Wrapf(attestationDomain.ErrRootMismatch,
				"signature of root %s does not verify with key %s", root.Key(), signer.KeyID())
		}
	}

	err := txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, root := range roots {
			if err := target.Save(ctx, root, overwrite); err != nil {
				return fmt.Errorf("failed to import root %s: %w", root.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	out := importOutput{Imported: len(roots), Dates: make([]string, 0, len(roots))}
	for _, root := range roots {
		out.Dates = append(out.Dates, root.Key())
	}
	logger.Info("merkle roots imported", slog.Int("count", out.Imported))

	if format == "json" {
		return writeJSON(rw.Writer, out)
	}
	_, _ = fmt.Fprintf(rw.Writer, "Imported %d merkle roots\n", out.Imported)
	return nil
}

// loadEvents decodes and validates the events at path.
func loadEvents(rw IOTuple, path string) ([]attestationDomain.Event, error) {
	data, err := readInput(rw.Reader, path)
	if err != nil {
		return nil, err
	}

	var events []attestationDomain.Event
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Data []attestationDomain.Event `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("failed to parse events: %w", err)
		}
		events = page.Data
	} else if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}

	for i := range events {
		if err := events[i].Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return events, nil
}
