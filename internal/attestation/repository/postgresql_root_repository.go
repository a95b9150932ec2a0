package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	"github.com/allisson/trustcore/internal/database"
	apperrors "github.com/allisson/trustcore/internal/errors"
)

const pgUniqueViolation = "23505"

// PostgreSQLRootRepository stores daily roots in the merkle_roots table.
type PostgreSQLRootRepository struct {
	db *sql.DB
}

// Save inserts root. With overwrite an existing row for the same day and segment is replaced.
func (p *PostgreSQLRootRepository) Save(
	ctx context.Context,
	root *attestationDomain.DailyMerkleRoot,
	overwrite bool,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO merkle_roots (day, segment, root, event_count, signed_by, signature, build_hash, image_digest,
			  computed_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if overwrite {
		query += ` ON CONFLICT (day, segment) DO UPDATE SET root = EXCLUDED.root, event_count = EXCLUDED.event_count,
			  signed_by = EXCLUDED.signed_by, signature = EXCLUDED.signature, build_hash = EXCLUDED.build_hash,
			  image_digest = EXCLUDED.image_digest, computed_at = EXCLUDED.computed_at`
	}

	_, err := querier.ExecContext(
		ctx,
		query,
		root.Date,
		root.Segment,
		root.Root,
		root.EventCount,
		root.SignedBy,
		root.Signature,
		root.BuildHash,
		nullString(root.ImageDigest),
		root.ComputedAt.UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return fmt.Errorf("%w: %s", attestationDomain.ErrRootExists, root.Key())
		}
		return apperrors.Wrap(err, "failed to save merkle root")
	}
	return nil
}

// Get returns segment of the root for date.
func (p *PostgreSQLRootRepository) Get(
	ctx context.Context,
	date string,
	segment int,
) (*attestationDomain.DailyMerkleRoot, error) {
	day, err := attestationDomain.ParseDate(date)
	if err != nil {
		return nil, err
	}
	if err := attestationDomain.ValidateSegment(segment); err != nil {
		return nil, err
	}
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + rootSelectColumns + ` FROM merkle_roots WHERE day = $1 AND segment = $2`

	root, err := scanRoot(querier.QueryRowContext(ctx, query, day, segment))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, attestationDomain.ErrRootNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get merkle root")
	}
	return root, nil
}

// List returns roots ordered by day descending, then by segment.
func (p *PostgreSQLRootRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*attestationDomain.DailyMerkleRoot, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + rootSelectColumns + ` FROM merkle_roots ORDER BY day DESC, segment ASC LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list merkle roots")
	}
	return collectRoots(rows)
}

// NewPostgreSQLRootRepository creates a PostgreSQL root repository.
func NewPostgreSQLRootRepository(db *sql.DB) *PostgreSQLRootRepository {
	return &PostgreSQLRootRepository{db: db}
}
