// Package cache persists content hashes of scanned game files in SQLite so
// later scans can tell which files changed.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var FS embed.FS

// ErrNotFound is returned when no record exists for a name.
var ErrNotFound = errors.New("record not found")

// FileRecord is one scanned file.
type FileRecord struct {
	Name      string
	Hash      string
	Size      int64
	IsArchive bool
	UpdatedAt time.Time
}

// ContentRecord is one entry of an archive file, keyed by its parent.
type ContentRecord struct {
	Parent    string
	Group     int
	Name      string
	Hash      string
	Size      int64
	UpdatedAt time.Time
}

var (
	gooseOnce sync.Once
	gooseErr  error
)

func initGoose() error {
	gooseOnce.Do(func() {
		goose.SetBaseFS(FS)
		goose.SetLogger(goose.NopLogger())
		gooseErr = goose.SetDialect("sqlite3")
	})
	return gooseErr
}

// Store is a SQLite backed record store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := initGoose(); err != nil {
		return nil, fmt.Errorf("goose set dialect: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	// One writer at a time; scans write from several goroutines.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache %s: %w", path, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetFile returns the record for name or ErrNotFound.
func (s *Store) GetFile(ctx context.Context, name string) (FileRecord, error) {
	var (
		rec       FileRecord
		isArchive int
		updated   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, hash, size, is_archive, updated_at FROM files WHERE name = ?`, name,
	).Scan(&rec.Name, &rec.Hash, &rec.Size, &isArchive, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return FileRecord{}, ErrNotFound
	}
	if err != nil {
		return FileRecord{}, fmt.Errorf("getting file %s: %w", name, err)
	}
	rec.IsArchive = isArchive != 0
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, nil
}

// PutFile inserts or replaces a file record.
func (s *Store) PutFile(ctx context.Context, rec FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (name, hash, size, is_archive, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			hash = excluded.hash,
			size = excluded.size,
			is_archive = excluded.is_archive,
			updated_at = excluded.updated_at`,
		rec.Name, rec.Hash, rec.Size, boolInt(rec.IsArchive), rec.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("putting file %s: %w", rec.Name, err)
	}
	return nil
}

// ReplaceContents swaps the content rows of parent for records in one
// transaction. The parent file record must exist.
func (s *Store) ReplaceContents(ctx context.Context, parent string, records []ContentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM contents WHERE parent = ?`, parent); err != nil {
		return fmt.Errorf("clearing contents of %s: %w", parent, err)
	}
	for _, r := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO contents (parent, grp, name, hash, size, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			parent, r.Group, r.Name, r.Hash, r.Size, r.UpdatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("inserting content %s of %s: %w", r.Name, parent, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contents of %s: %w", parent, err)
	}
	return nil
}

// Contents returns the content rows of parent ordered by group and name.
func (s *Store) Contents(ctx context.Context, parent string) ([]ContentRecord, error) {
	return s.queryContents(ctx,
		`SELECT parent, grp, name, hash, size, updated_at FROM contents WHERE parent = ? ORDER BY grp, name`, parent)
}

// FindByHash returns every archive entry whose content hashes to hash.
func (s *Store) FindByHash(ctx context.Context, hash string) ([]ContentRecord, error) {
	return s.queryContents(ctx,
		`SELECT parent, grp, name, hash, size, updated_at FROM contents WHERE hash = ? ORDER BY parent, grp, name`, hash)
}

func (s *Store) queryContents(ctx context.Context, query string, arg any) ([]ContentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying contents: %w", err)
	}
	defer rows.Close()

	var out []ContentRecord
	for rows.Next() {
		var (
			r       ContentRecord
			updated int64
		)
		if err := rows.Scan(&r.Parent, &r.Group, &r.Name, &r.Hash, &r.Size, &updated); err != nil {
			return nil, fmt.Errorf("scanning content: %w", err)
		}
		r.UpdatedAt = time.UnixMilli(updated)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contents: %w", err)
	}
	return out, nil
}

// CountFiles returns the number of file records.
func (s *Store) CountFiles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting files: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
