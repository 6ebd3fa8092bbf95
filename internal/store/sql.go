package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// dialect holds the statements that differ between SQLite and Postgres.
type dialect struct {
	// ensure, when set, inserts an empty row so selectForUpdate can lock it
	// even for a document that does not exist yet.
	ensure          string
	get             string
	selectForUpdate string
	upsert          string
	deleteOne       string
	deleteTree      string
	take            string
	list            string
	queryEqual      string
	fieldPath       func(field string) string
	now             func() any
}

var sqliteDialect = dialect{
	get:             `SELECT data FROM documents WHERE path = ?`,
	selectForUpdate: `SELECT data FROM documents WHERE path = ?`,
	upsert: `INSERT INTO documents (path, parent, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
	deleteOne:  `DELETE FROM documents WHERE path = ?`,
	deleteTree: `DELETE FROM documents WHERE path = ?1 OR substr(path, 1, length(?2)) = ?2`,
	take:       `DELETE FROM documents WHERE path = ? RETURNING data`,
	list:       `SELECT path, data FROM documents WHERE parent = ? ORDER BY path`,
	queryEqual: `SELECT path, data FROM documents
		WHERE parent = ?1 AND json_extract(data, ?2) = json_extract(?3, '$')
		ORDER BY path LIMIT 1`,
	fieldPath: func(field string) string { return "$." + field },
	now:       func() any { return time.Now().UTC().Format(time.RFC3339Nano) },
}

var postgresDialect = dialect{
	ensure: `INSERT INTO documents (path, parent, data, updated_at) VALUES ($1, $2, '{}', $3)
		ON CONFLICT (path) DO NOTHING`,
	get:             `SELECT data FROM documents WHERE path = $1`,
	selectForUpdate: `SELECT data FROM documents WHERE path = $1 FOR UPDATE`,
	upsert: `INSERT INTO documents (path, parent, data, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
	deleteOne:  `DELETE FROM documents WHERE path = $1`,
	deleteTree: `DELETE FROM documents WHERE path = $1 OR starts_with(path, $2)`,
	take:       `DELETE FROM documents WHERE path = $1 RETURNING data`,
	list:       `SELECT path, data FROM documents WHERE parent = $1 ORDER BY path`,
	queryEqual: `SELECT path, data FROM documents
		WHERE parent = $1 AND data -> $2 = $3::jsonb
		ORDER BY path LIMIT 1`,
	fieldPath: func(field string) string { return field },
	now:       func() any { return time.Now().UTC() },
}

// SQLStore is a Store backed by the documents table on SQLite or Postgres.
//
// Thread Safety:
//   - Safe for concurrent use. Update runs in a transaction (row-locked on
//     Postgres, single-connection on SQLite); Take is a single
//     DELETE ... RETURNING statement.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// NewSQLStore creates a store over an open, migrated database.
//
// Parameters:
//   - db: Connection pool with the documents table present
//   - driver: "sqlite" or "postgres"
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	switch driver {
	case "sqlite", "":
		return &SQLStore{db: db, d: sqliteDialect}, nil
	case "postgres":
		return &SQLStore{db: db, d: postgresDialect}, nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
}

// Get returns the document at path or nil.
func (s *SQLStore) Get(ctx context.Context, path string) (Document, error) {
	if _, err := validatePath(path); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, s.d.get, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", path, err)
	}
	return unmarshalDocument(data)
}

// Update shallow-merges partial into the document at path.
func (s *SQLStore) Update(ctx context.Context, path string, partial Document) error {
	parent, err := validatePath(path)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if s.d.ensure != "" {
		if _, err := tx.ExecContext(ctx, s.d.ensure, path, parent, s.d.now()); err != nil {
			return fmt.Errorf("updating %s: %w", path, err)
		}
	}

	var existing Document
	var data []byte
	err = tx.QueryRowContext(ctx, s.d.selectForUpdate, path).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("updating %s: %w", path, err)
	default:
		if existing, err = unmarshalDocument(data); err != nil {
			return err
		}
	}

	partial, err = normalize(partial)
	if err != nil {
		return err
	}
	merged := merge(existing, partial)

	if len(merged) == 0 {
		if _, err := tx.ExecContext(ctx, s.d.deleteOne, path); err != nil {
			return fmt.Errorf("updating %s: %w", path, err)
		}
	} else {
		encoded, err := marshalDocument(merged)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.d.upsert, path, parent, string(encoded), s.d.now()); err != nil {
			return fmt.Errorf("updating %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update of %s: %w", path, err)
	}
	return nil
}

// Delete removes the document at path and its descendants.
func (s *SQLStore) Delete(ctx context.Context, path string) error {
	if _, err := validatePath(path); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.d.deleteTree, path, path+"/"); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// Take deletes the document at path and returns it.
func (s *SQLStore) Take(ctx context.Context, path string) (Document, error) {
	if _, err := validatePath(path); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, s.d.take, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("taking %s: %w", path, err)
	}
	return unmarshalDocument(data)
}

// List returns the direct children of collection.
func (s *SQLStore) List(ctx context.Context, collection string) (map[string]Document, error) {
	if _, err := validatePath(collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.d.list, collection)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]Document)
	for rows.Next() {
		var path string
		var data []byte
		if err := rows.Scan(&path, &data); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", collection, err)
		}
		doc, err := unmarshalDocument(data)
		if err != nil {
			return nil, err
		}
		out[keyOf(path)] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", collection, err)
	}
	return out, nil
}

// QueryFirstWhereEqual compares field to value as JSON.
func (s *SQLStore) QueryFirstWhereEqual(ctx context.Context, collection, field string, value any) (string, Document, error) {
	if _, err := validatePath(collection); err != nil {
		return "", nil, err
	}
	if err := validateField(field); err != nil {
		return "", nil, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", nil, fmt.Errorf("encoding query value: %w", err)
	}

	var path string
	var data []byte
	err = s.db.QueryRowContext(ctx, s.d.queryEqual, collection, s.d.fieldPath(field), string(encoded)).Scan(&path, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	doc, err := unmarshalDocument(data)
	if err != nil {
		return "", nil, err
	}
	return keyOf(path), doc, nil
}
