// Package repository persists daily Merkle roots to files, PostgreSQL or MySQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	apperrors "github.com/allisson/trustcore/internal/errors"
)

const (
	rootFilePrefix = "merkle-"
	rootFileSuffix = ".json"
	rootFileMode   = 0o600
	rootDirMode    = 0o700
)

// FileRootRepository stores one merkle-YYYYMMDD.json file per day segment, readable by
// the owner only. Writes go to a temporary file that is linked or renamed into
// place, so readers never see a partial record.
type FileRootRepository struct {
	dir string
}

// NewFileRootRepository creates dir if needed.
func NewFileRootRepository(dir string) (*FileRootRepository, error) {
	if err := os.MkdirAll(dir, rootDirMode); err != nil {
		return nil, fmt.Errorf("failed to create attestation directory: %w", err)
	}
	return &FileRootRepository{dir: dir}, nil
}

// Path returns the file that holds segment of date (YYYY-MM-DD or YYYYMMDD):
// merkle-YYYYMMDD.json for segment 0, merkle-YYYYMMDD-N.json after that.
func (r *FileRootRepository) Path(date string, segment int) (string, error) {
	day, err := attestationDomain.ParseDate(date)
	if err != nil {
		return "", err
	}
	if err := attestationDomain.ValidateSegment(segment); err != nil {
		return "", err
	}
	compact, err := attestationDomain.CompactDate(day)
	if err != nil {
		return "", err
	}
	if segment > 0 {
		compact += "-" + strconv.Itoa(segment)
	}
	return filepath.Join(r.dir, rootFilePrefix+compact+rootFileSuffix), nil
}

// Save writes root. Without overwrite an existing file for the date is left alone
// and ErrRootExists is returned.
func (r *FileRootRepository) Save(ctx context.Context, root *attestationDomain.DailyMerkleRoot, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.Path(root.Date, root.Segment)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal merkle root")
	}

	tmp, err := os.CreateTemp(r.dir, ".merkle-*.tmp")
	if err != nil {
		return apperrors.Wrap(err, "failed to create temporary merkle root file")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := writeAndSync(tmp, data); err != nil {
		return apperrors.Wrap(err, "failed to write merkle root")
	}

	if overwrite {
		if err := os.Rename(tmpName, path); err != nil {
			return apperrors.Wrap(err, "failed to store merkle root")
		}
		return nil
	}

	// Link fails if path exists, which makes the no-overwrite check atomic.
	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", attestationDomain.ErrRootExists, root.Key())
		}
		return apperrors.Wrap(err, "failed to store merkle root")
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if err := f.Chmod(rootFileMode); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Get reads segment of the root stored for date.
func (r *FileRootRepository) Get(
	ctx context.Context,
	date string,
	segment int,
) (*attestationDomain.DailyMerkleRoot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := r.Path(date, segment)
	if err != nil {
		return nil, err
	}
	return readRootFile(path)
}

// ReadRootFile reads a merkle root file from an arbitrary path.
func ReadRootFile(path string) (*attestationDomain.DailyMerkleRoot, error) {
	return readRootFile(path)
}

func readRootFile(path string) (*attestationDomain.DailyMerkleRoot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from a validated date
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, attestationDomain.ErrRootNotFound
		}
		return nil, apperrors.Wrap(err, "failed to read merkle root")
	}
	var root attestationDomain.DailyMerkleRoot
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode merkle root")
	}
	return &root, nil
}

// List returns stored roots, newest first.
func (r *FileRootRepository) List(ctx context.Context, offset, limit int) ([]*attestationDomain.DailyMerkleRoot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list merkle roots")
	}

	files := make([]rootFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if f, ok := parseRootFileName(e.Name()); ok {
			files = append(files, f)
		}
	}
	// newest day first, then segments in write order
	slices.SortFunc(files, func(a, b rootFile) int {
		if c := strings.Compare(b.day, a.day); c != 0 {
			return c
		}
		return a.segment - b.segment
	})

	roots := make([]*attestationDomain.DailyMerkleRoot, 0)
	for i := offset; i < len(files) && len(roots) < limit; i++ {
		root, err := readRootFile(filepath.Join(r.dir, files[i].name))
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, nil
}

type rootFile struct {
	name    string
	day     string
	segment int
}

// parseRootFileName accepts merkle-YYYYMMDD.json and merkle-YYYYMMDD-N.json.
func parseRootFileName(name string) (rootFile, bool) {
	stem, ok := strings.CutPrefix(name, rootFilePrefix)
	if !ok {
		return rootFile{}, false
	}
	if stem, ok = strings.CutSuffix(stem, rootFileSuffix); !ok {
		return rootFile{}, false
	}

	day, suffix, hasSegment := strings.Cut(stem, "-")
	if _, err := time.Parse(attestationDomain.FileDateLayout, day); err != nil {
		return rootFile{}, false
	}
	f := rootFile{name: name, day: day}
	if hasSegment {
		segment, err := strconv.Atoi(suffix)
		if err != nil || segment < 1 || attestationDomain.ValidateSegment(segment) != nil {
			return rootFile{}, false
		}
		f.segment = segment
	}
	return f, true
}
