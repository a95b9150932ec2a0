package repository

import (
	"database/sql"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	apperrors "github.com/allisson/trustcore/internal/errors"
)

const rootSelectColumns = `day, segment, root, event_count, signed_by, signature, build_hash, image_digest, computed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoot(row rowScanner) (*attestationDomain.DailyMerkleRoot, error) {
	var root attestationDomain.DailyMerkleRoot
	var imageDigest sql.NullString
	err := row.Scan(
		&root.Date,
		&root.Segment,
		&root.Root,
		&root.EventCount,
		&root.SignedBy,
		&root.Signature,
		&root.BuildHash,
		&imageDigest,
		&root.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	root.ImageDigest = imageDigest.String
	root.ComputedAt = root.ComputedAt.UTC()
	return &root, nil
}

func collectRoots(rows *sql.Rows) ([]*attestationDomain.DailyMerkleRoot, error) {
	defer func() {
		_ = rows.Close()
	}()

	roots := make([]*attestationDomain.DailyMerkleRoot, 0)
	for rows.Next() {
		root, err := scanRoot(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan merkle root")
		}
		roots = append(roots, root)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate merkle roots")
	}
	return roots, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
