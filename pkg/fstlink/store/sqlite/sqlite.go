package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
)

// Index implements store.Index and store.Writer on top of SQLite.
type Index struct {
	db   *sql.DB
	refs atomic.Int64
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema when missing.
func OpenSQLite(ctx context.Context, path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Index{db: db}, nil
}

// Close closes the database connection
func (ix *Index) Close() error {
	return ix.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY,
	uri TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS field_values (
	doc_id INTEGER NOT NULL,
	field TEXT NOT NULL,
	ord INTEGER NOT NULL,
	str TEXT,
	num REAL,
	PRIMARY KEY(doc_id, field, ord),
	FOREIGN KEY(doc_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_field_values_field ON field_values(field, doc_id);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

INSERT OR IGNORE INTO meta (key, value) VALUES ('version', 0);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// Upsert inserts or replaces a document keyed by URI and bumps the index
// version.
func (ix *Index) Upsert(ctx context.Context, uri string, fields store.Fields) (uint32, error) {
	if uri == "" {
		return 0, fmt.Errorf("%w: empty uri", internalerr.ErrInvalidInput)
	}
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO documents (uri) VALUES (?)
ON CONFLICT(uri) DO UPDATE SET uri=excluded.uri
RETURNING id;
`
	var docID int64
	if err := tx.QueryRowContext(ctx, stmt, uri).Scan(&docID); err != nil {
		return 0, err
	}
	if err := replaceFieldValues(ctx, tx, docID, fields); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value = value + 1 WHERE key = 'version'`); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint32(docID), nil
}

func replaceFieldValues(ctx context.Context, tx *sql.Tx, docID int64, fields store.Fields) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM field_values WHERE doc_id=?`, docID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO field_values (doc_id, field, ord, str, num) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for field, values := range fields.Strings {
		if field == store.IDField {
			continue
		}
		for i, v := range values {
			if _, err := stmt.ExecContext(ctx, docID, field, i, v, nil); err != nil {
				return err
			}
		}
	}
	for field, v := range fields.Numbers {
		if _, err := stmt.ExecContext(ctx, docID, field, 0, nil, v); err != nil {
			return err
		}
	}
	return nil
}

// Acquire implements store.Index. The searcher pins the version and
// document count seen at checkout.
func (ix *Index) Acquire(ctx context.Context) (store.Searcher, error) {
	var version int64
	if err := ix.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&version); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	var maxID sql.NullInt64
	if err := ix.db.QueryRowContext(ctx, `SELECT MAX(id) FROM documents`).Scan(&maxID); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	var maxDoc uint32
	if maxID.Valid {
		maxDoc = uint32(maxID.Int64) + 1
	}
	ix.refs.Add(1)
	return &searcher{ix: ix, version: version, maxDoc: maxDoc}, nil
}

// Refs returns the number of searchers not yet released.
func (ix *Index) Refs() int64 {
	return ix.refs.Load()
}

type searcher struct {
	ix       *Index
	version  int64
	maxDoc   uint32
	released sync.Once
}

func (s *searcher) Version() int64 { return s.version }

func (s *searcher) MaxDoc() uint32 { return s.maxDoc }

func (s *searcher) Release() {
	s.released.Do(func() { s.ix.refs.Add(-1) })
}

func (s *searcher) FieldNames(ctx context.Context) ([]string, error) {
	rows, err := s.ix.db.QueryContext(ctx, `SELECT DISTINCT field FROM field_values ORDER BY field`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *searcher) ForEachValue(ctx context.Context, field string, fn func(id uint32, value string) error) error {
	if field == store.IDField {
		return s.forEachURI(ctx, fn)
	}
	rows, err := s.ix.db.QueryContext(ctx, `
SELECT doc_id, str FROM field_values
WHERE field = ? AND str IS NOT NULL
ORDER BY doc_id, ord`, field)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			value string
		)
		if err := rows.Scan(&id, &value); err != nil {
			return err
		}
		if err := fn(uint32(id), value); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *searcher) forEachURI(ctx context.Context, fn func(id uint32, value string) error) error {
	rows, err := s.ix.db.QueryContext(ctx, `SELECT id, uri FROM documents ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int64
			uri string
		)
		if err := rows.Scan(&id, &uri); err != nil {
			return err
		}
		if err := fn(uint32(id), uri); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *searcher) Document(ctx context.Context, id uint32, fields []string) (store.Fields, error) {
	out := store.NewFields()

	var uri string
	err := s.ix.db.QueryRowContext(ctx, `SELECT uri FROM documents WHERE id = ?`, int64(id)).Scan(&uri)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Fields{}, fmt.Errorf("document %d: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Fields{}, err
	}

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == store.IDField {
			out.Strings[store.IDField] = []string{uri}
			continue
		}
		names = append(names, f)
	}
	if len(names) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]interface{}, 0, len(names)+1)
	args = append(args, int64(id))
	for _, n := range names {
		args = append(args, n)
	}

	query := fmt.Sprintf(`
SELECT field, str, num FROM field_values
WHERE doc_id = ? AND field IN (%s)
ORDER BY field, ord;
`, placeholders)

	rows, err := s.ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return store.Fields{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			field string
			str   sql.NullString
			num   sql.NullFloat64
		)
		if err := rows.Scan(&field, &str, &num); err != nil {
			return store.Fields{}, err
		}
		if str.Valid {
			out.Strings[field] = append(out.Strings[field], str.String)
		}
		if num.Valid {
			out.Numbers[field] = num.Float64
		}
	}
	return out, rows.Err()
}
