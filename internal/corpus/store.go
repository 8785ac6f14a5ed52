// Package corpus persists verified citations across document-processing
// requests. Append and lookup only; nothing is deleted in normal operation.
package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS verified_citations (
    citation    TEXT PRIMARY KEY,
    volume      TEXT NOT NULL DEFAULT '',
    reporter    TEXT NOT NULL DEFAULT '',
    page        TEXT NOT NULL DEFAULT '',
    case_name   TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    verified_at TIMESTAMP NOT NULL
);
`

// Entry is one verified citation in canonical form.
type Entry struct {
	Citation   string    `db:"citation"`
	Volume     string    `db:"volume"`
	Reporter   string    `db:"reporter"`
	Page       string    `db:"page"`
	CaseName   string    `db:"case_name"`
	URL        string    `db:"url"`
	VerifiedAt time.Time `db:"verified_at"`
}

// Store is the SQLite-backed corpus. The underlying pool hands out one
// connection per operation; no connection is held across concurrent workers.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens (and if needed creates) the corpus database at dsn. Use
// ":memory:" for tests.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("corpus schema: %w", err)
	}
	logger.Info("Correction corpus opened", zap.String("dsn", dsn))
	return &Store{db: db, logger: logger}, nil
}

// Add appends a verified citation. Re-adding an existing citation is a no-op.
func (s *Store) Add(ctx context.Context, e Entry) error {
	if e.Citation == "" {
		return fmt.Errorf("corpus add: empty citation")
	}
	if e.VerifiedAt.IsZero() {
		e.VerifiedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO verified_citations (citation, volume, reporter, page, case_name, url, verified_at)
		VALUES (:citation, :volume, :reporter, :page, :case_name, :url, :verified_at)
		ON CONFLICT(citation) DO NOTHING`, e)
	if err != nil {
		return fmt.Errorf("corpus add: %w", err)
	}
	return nil
}

// All returns every corpus entry, newest first.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT citation, volume, reporter, page, case_name, url, verified_at
		 FROM verified_citations ORDER BY verified_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("corpus read: %w", err)
	}
	return entries, nil
}

// Count returns the number of corpus entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM verified_citations`); err != nil {
		return 0, fmt.Errorf("corpus count: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
