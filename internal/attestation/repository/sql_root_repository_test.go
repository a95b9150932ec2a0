package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	"github.com/allisson/trustcore/internal/database"
)

var rootColumns = []string{
	"day", "segment", "root", "event_count", "signed_by", "signature", "build_hash", "image_digest", "computed_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestPostgreSQLRootRepository_Save(t *testing.T) {
	root := sampleRoot("2026-05-01")
	root.ImageDigest = "sha256:abc"

	t.Run("insert", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPostgreSQLRootRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO merkle_roots")).
			WithArgs(root.Date, root.Segment, root.Root, root.EventCount, root.SignedBy, root.Signature,
				root.BuildHash, sql.NullString{String: "sha256:abc", Valid: true}, root.ComputedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), root, false))
	})

	t.Run("duplicate day", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPostgreSQLRootRepository(db)

		mock.ExpectExec("INSERT INTO merkle_roots").
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

		err := repo.Save(context.Background(), root, false)
		assert.ErrorIs(t, err, attestationDomain.ErrRootExists)
	})

	t.Run("overwrite upserts", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPostgreSQLRootRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (day, segment) DO UPDATE")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), root, true))
	})

	t.Run("inside transaction", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPostgreSQLRootRepository(db)
		txManager := database.NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO merkle_roots").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
			return repo.Save(ctx, root, false)
		})
		require.NoError(t, err)
	})
}

func TestPostgreSQLRootRepository_Get(t *testing.T) {
	computedAt := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPostgreSQLRootRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM merkle_roots WHERE day = $1 AND segment = $2")).
			WithArgs("2026-05-01", 0).
			WillReturnRows(sqlmock.NewRows(rootColumns).
				AddRow("2026-05-01", 0, "ab", 3, "attest-1", "sig", "build-1", nil, computedAt))

		root, err := repo.Get(context.Background(), "20260501", 0)
		require.NoError(t, err)
		assert.Equal(t, "2026-05-01", root.Date)
		assert.Equal(t, 3, root.EventCount)
		assert.Empty(t, root.ImageDigest)
		assert.Equal(t, computedAt, root.ComputedAt)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewPostgreSQLRootRepository(db)

		mock.ExpectQuery("FROM merkle_roots").WillReturnRows(sqlmock.NewRows(rootColumns))

		_, err := repo.Get(context.Background(), "2026-05-01", 0)
		assert.ErrorIs(t, err, attestationDomain.ErrRootNotFound)
	})

	t.Run("invalid date never reaches the database", func(t *testing.T) {
		db, _ := newMock(t)
		repo := NewPostgreSQLRootRepository(db)

		_, err := repo.Get(context.Background(), "1 OR 1=1", 0)
		assert.ErrorIs(t, err, attestationDomain.ErrInvalidDate)
	})

	t.Run("invalid segment never reaches the database", func(t *testing.T) {
		db, _ := newMock(t)
		repo := NewPostgreSQLRootRepository(db)

		_, err := repo.Get(context.Background(), "2026-05-01", -1)
		assert.ErrorIs(t, err, attestationDomain.ErrInvalidSegment)
	})
}

func TestPostgreSQLRootRepository_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgreSQLRootRepository(db)
	computedAt := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY day DESC, segment ASC LIMIT $1 OFFSET $2")).
		WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows(rootColumns).
			AddRow("2026-05-02", 0, "bb", 2, "attest-1", "s2", "b", "sha256:x", computedAt).
			AddRow("2026-05-01", 0, "aa", 1, "attest-1", "s1", "b", nil, computedAt))

	roots, err := repo.List(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "2026-05-02", roots[0].Date)
	assert.Equal(t, "sha256:x", roots[0].ImageDigest)
}

func TestMySQLRootRepository_Save(t *testing.T) {
	root := sampleRoot("2026-05-01")

	t.Run("insert", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMySQLRootRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")).
			WithArgs(root.Date, root.Segment, root.Root, root.EventCount, root.SignedBy, root.Signature,
				root.BuildHash, sql.NullString{}, root.ComputedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), root, false))
	})

	t.Run("duplicate day", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMySQLRootRepository(db)

		mock.ExpectExec("INSERT INTO merkle_roots").
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

		err := repo.Save(context.Background(), root, false)
		assert.ErrorIs(t, err, attestationDomain.ErrRootExists)
	})

	t.Run("overwrite upserts", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMySQLRootRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, repo.Save(context.Background(), root, true))
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMySQLRootRepository(db)

		mock.ExpectExec("INSERT INTO merkle_roots").WillReturnError(errors.New("connection reset"))

		err := repo.Save(context.Background(), root, false)
		assert.ErrorContains(t, err, "failed to save merkle root")
		assert.NotErrorIs(t, err, attestationDomain.ErrRootExists)
	})
}

func TestMySQLRootRepository_GetAndList(t *testing.T) {
	computedAt := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	t.Run("get", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMySQLRootRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE day = ? AND segment = ?")).
			WithArgs("2026-05-01", 2).
			WillReturnRows(sqlmock.NewRows(rootColumns).
				AddRow("2026-05-01", 2, "ab", 3, "attest-1", "sig", "build-1", "sha256:d", computedAt))

		root, err := repo.Get(context.Background(), "2026-05-01", 2)
		require.NoError(t, err)
		assert.Equal(t, "sha256:d", root.ImageDigest)
		assert.Equal(t, "2026-05-01#2", root.Key())
	})

	t.Run("get not found", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMySQLRootRepository(db)

		mock.ExpectQuery("FROM merkle_roots").WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), "2026-05-01", 0)
		assert.ErrorIs(t, err, attestationDomain.ErrRootNotFound)
	})

	t.Run("list", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMySQLRootRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("LIMIT ? OFFSET ?")).
			WithArgs(10, 20).
			WillReturnRows(sqlmock.NewRows(rootColumns))

		roots, err := repo.List(context.Background(), 20, 10)
		require.NoError(t, err)
		assert.NotNil(t, roots)
		assert.Empty(t, roots)
	})
}
