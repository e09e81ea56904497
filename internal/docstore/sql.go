package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"checkin/internal/metrics"
)

// Dialect selects placeholder syntax for SQLStore.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection  TEXT NOT NULL,
	id          TEXT NOT NULL,
	fields      TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at);
`

// SQLStore keeps documents in a single table, fields stored as the REST wire JSON.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	name    string
	timeout time.Duration
}

// NewSQLStore wraps an open database. Call Migrate before first use.
func NewSQLStore(db *sql.DB, dialect Dialect, timeout time.Duration) *SQLStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	name := "postgres"
	if dialect == DialectSQLite {
		name = "sqlite"
	}
	return &SQLStore{db: db, dialect: dialect, name: name, timeout: timeout}
}

// Migrate creates the documents table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Durable() bool { return true }
func (s *SQLStore) Name() string  { return s.name }

// Put inserts a document under a fresh uuid.
func (s *SQLStore) Put(ctx context.Context, collection string, fields Fields) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", &StoreError{Op: "put", Collection: collection, Err: err}
	}
	// v7 ids are time ordered and break created_at ties in insertion order.
	uid, err := uuid.NewV7()
	if err != nil {
		return "", &StoreError{Op: "put", Collection: collection, Err: err}
	}
	id := uid.String()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO documents (collection, id, fields, created_at)
		VALUES (?, ?, ?, ?)
	`), collection, id, string(payload), time.Now().UTC())
	if err != nil {
		metrics.StoreErrors.WithLabelValues(collection, "put").Inc()
		return "", &StoreError{Op: "put", Collection: collection, Err: err}
	}
	return id, nil
}

// ListAll returns the collection in insertion order; failures are logged.
func (s *SQLStore) ListAll(ctx context.Context, collection string) []Document {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs, err := s.list(ctx, collection)
	if err != nil {
		metrics.StoreErrors.WithLabelValues(collection, "list").Inc()
		log.Printf("list %s failed: %v", collection, err)
		return nil
	}
	return docs
}

func (s *SQLStore) list(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, fields FROM documents
		WHERE collection = ?
		ORDER BY created_at, id
	`), collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var fields Fields
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			log.Printf("skipping %s/%s: %v", collection, id, err)
			continue
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
