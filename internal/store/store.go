package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrUnknownDriver is returned by Open for drivers other than sqlite and postgres.
var ErrUnknownDriver = errors.New("store: unknown driver")

// Document is one appended record.
type Document struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Timestamp  time.Time       `json:"ts"`
	Seq        int64           `json:"seq"`
	Payload    json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

// Store is the durable append/query collaborator. Implementations must be
// safe for concurrent use.
type Store interface {
	// Append stores v under (collection, key) at ts and returns the stored document.
	Append(ctx context.Context, collection, key string, ts time.Time, v any) (Document, error)
	// QueryLatest returns up to n documents for (collection, key), newest
	// first by timestamp then insertion order. An empty key matches every
	// document in the collection.
	QueryLatest(ctx context.Context, collection, key string, n int) ([]Document, error)
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string

	mu      sync.Mutex
	lastSeq int64
}

// Open connects to the database and runs migrations. driver is "sqlite"
// (dsn is a file path or ":memory:") or "postgres".
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite":
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
				return nil, err
			}
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		// single writer; also keeps :memory: databases on one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema
func (s *SQLStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		doc_key TEXT NOT NULL,
		ts BIGINT NOT NULL,
		seq BIGINT NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_key ON documents(collection, doc_key, ts, seq);
	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, ts, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// nextSeq returns a process-wide strictly increasing sequence so documents
// sharing a timestamp keep their insertion order.
func (s *SQLStore) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := time.Now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

// Append inserts a new document
func (s *SQLStore) Append(ctx context.Context, collection, key string, ts time.Time, v any) (Document, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("marshal %s: %w", collection, err)
	}

	doc := Document{
		ID:         uuid.NewString(),
		Collection: collection,
		Key:        key,
		Timestamp:  ts,
		Seq:        s.nextSeq(),
		Payload:    payload,
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO documents (id, collection, doc_key, ts, seq, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`), doc.ID, doc.Collection, doc.Key, ts.UnixNano(), doc.Seq, string(payload))
	if err != nil {
		return Document{}, fmt.Errorf("append %s: %w", collection, err)
	}

	return doc, nil
}

// QueryLatest returns the newest documents for a key
func (s *SQLStore) QueryLatest(ctx context.Context, collection, key string, n int) ([]Document, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, collection, doc_key, ts, seq, payload
		FROM documents
		WHERE collection = ? AND doc_key = ?
		ORDER BY ts DESC, seq DESC
		LIMIT ?
	`
	args := []any{collection, key, n}
	if key == "" {
		query = `
		SELECT id, collection, doc_key, ts, seq, payload
		FROM documents
		WHERE collection = ?
		ORDER BY ts DESC, seq DESC
		LIMIT ?
	`
		args = []any{collection, n}
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var d Document
		var tsNanos int64
		var payload string

		if err := rows.Scan(&d.ID, &d.Collection, &d.Key, &tsNanos, &d.Seq, &payload); err != nil {
			return nil, err
		}

		d.Timestamp = time.Unix(0, tsNanos).UTC()
		d.Payload = json.RawMessage(payload)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// rebind converts ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
