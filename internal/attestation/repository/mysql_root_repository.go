package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	"github.com/allisson/trustcore/internal/database"
	apperrors "github.com/allisson/trustcore/internal/errors"
)

const mysqlDuplicateEntry = 1062

// MySQLRootRepository stores daily roots in the merkle_roots table.
type MySQLRootRepository struct {
	db *sql.DB
}

// Save inserts root. With overwrite an existing row for the same day and segment is replaced.
func (m *MySQLRootRepository) Save(
	ctx context.Context,
	root *attestationDomain.DailyMerkleRoot,
	overwrite bool,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO merkle_roots (day, segment, root, event_count, signed_by, signature, build_hash, image_digest,
			  computed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if overwrite {
		query += ` ON DUPLICATE KEY UPDATE root = VALUES(root), event_count = VALUES(event_count),
			  signed_by = VALUES(signed_by), signature = VALUES(signature), build_hash = VALUES(build_hash),
			  image_digest = VALUES(image_digest), computed_at = VALUES(computed_at)`
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
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return fmt.Errorf("%w: %s", attestationDomain.ErrRootExists, root.Key())
		}
		return apperrors.Wrap(err, "failed to save merkle root")
	}
	return nil
}

// Get returns segment of the root for date.
func (m *MySQLRootRepository) Get(
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
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + rootSelectColumns + ` FROM merkle_roots WHERE day = ? AND segment = ?`

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
func (m *MySQLRootRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*attestationDomain.DailyMerkleRoot, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + rootSelectColumns + ` FROM merkle_roots ORDER BY day DESC, segment ASC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list merkle roots")
	}
	return collectRoots(rows)
}

// NewMySQLRootRepository creates a MySQL root repository.
func NewMySQLRootRepository(db *sql.DB) *MySQLRootRepository {
	return &MySQLRootRepository{db: db}
}
