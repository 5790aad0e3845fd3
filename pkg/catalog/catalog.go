// Package catalog keeps training records in a SQLite database, so large
// datasets can be indexed once and streamed many times.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	// SQLite driver (pure Go, no CGO required)
	_ "modernc.org/sqlite"

	"github.com/menta2k/srgan-data/pkg/types"
)

// ErrNotFound is returned by Get for an unknown record name.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	hr_path    TEXT NOT NULL DEFAULT '',
	lr_path    TEXT NOT NULL DEFAULT '',
	hr_encoded BLOB,
	lr_encoded BLOB,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

const upsert = `
INSERT INTO records (name, hr_path, lr_path, hr_encoded, lr_encoded)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	hr_path = excluded.hr_path,
	lr_path = excluded.lr_path,
	hr_encoded = excluded.hr_encoded,
	lr_encoded = excluded.lr_encoded`

// Catalog is a SQLite-backed record store.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open catalog")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping catalog")
	}

	pragmas := []struct {
		name  string
		query string
	}{
		{"journal_mode", "PRAGMA journal_mode=WAL"},
		{"busy_timeout", fmt.Sprintf("PRAGMA busy_timeout=%d", 5000)},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.query); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to set %s pragma", p.name)
		}
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}
	klog.V(1).Infof("opened catalog %s", path)
	return &Catalog{db: db, path: path}, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Add inserts rec, replacing any record with the same name.
func (c *Catalog) Add(ctx context.Context, rec types.Record) error {
	if rec.Name == "" {
		return errors.New("record name is required")
	}
	if _, err := c.db.ExecContext(ctx, upsert, recordArgs(rec)...); err != nil {
		return errors.Wrapf(err, "failed to add record %q", rec.Name)
	}
	return nil
}

// AddAll inserts records in a single transaction.
func (c *Catalog) AddAll(ctx context.Context, records []types.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.Name == "" {
			return errors.New("record name is required")
		}
		if _, err := stmt.ExecContext(ctx, recordArgs(rec)...); err != nil {
			return errors.Wrapf(err, "failed to add record %q", rec.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit records")
	}
	return nil
}

// Count returns the number of records.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count records")
	}
	return n, nil
}

// Get returns the record called name.
func (c *Catalog) Get(ctx context.Context, name string) (types.Record, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT name, hr_path, lr_path, hr_encoded, lr_encoded FROM records WHERE name = ?", name)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return types.Record{}, errors.Wrapf(ErrNotFound, "%q", name)
	}
	if err != nil {
		return types.Record{}, errors.Wrapf(err, "failed to get record %q", name)
	}
	return rec, nil
}

// Delete removes the record called name, reporting whether it existed.
func (c *Catalog) Delete(ctx context.Context, name string) (bool, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM records WHERE name = ?", name)
	if err != nil {
		return false, errors.Wrapf(err, "failed to delete record %q", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return n > 0, nil
}

// Stats summarizes the stored records.
type Stats struct {
	Records      int
	Embedded     int
	WithPaths    int
	PayloadBytes int64
}

// Stats counts records by kind and sums the embedded payload sizes.
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN hr_encoded IS NOT NULL AND lr_encoded IS NOT NULL THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN hr_path != '' AND lr_path != '' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(COALESCE(LENGTH(hr_encoded), 0) + COALESCE(LENGTH(lr_encoded), 0)), 0)
FROM records`).Scan(&s.Records, &s.Embedded, &s.WithPaths, &s.PayloadBytes)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to compute stats")
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (types.Record, error) {
	var rec types.Record
	err := row.Scan(&rec.Name, &rec.HighResPath, &rec.LowResPath, &rec.HighResBytes, &rec.LowResBytes)
	return rec, err
}

// recordArgs orders the insert arguments, storing empty payloads as NULL.
func recordArgs(rec types.Record) []any {
	return []any{rec.Name, rec.HighResPath, rec.LowResPath, nullBlob(rec.HighResBytes), nullBlob(rec.LowResBytes)}
}

func nullBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
