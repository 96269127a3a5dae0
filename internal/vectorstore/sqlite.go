package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/HendryAvila/qa-mcp/internal/apperr"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteConfig configures the embedded SQLite backend.
type SQLiteConfig struct {
	Path       string
	Collection string
	Dimensions int
}

// SQLite stores vectors as little-endian float32 BLOBs and ranks them by
// brute-force cosine similarity. Fine for the few thousand tickets a team
// typically ingests.
type SQLite struct {
	cfg SQLiteConfig

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLite creates an unconnected SQLite store.
func NewSQLite(cfg SQLiteConfig) *SQLite {
	if cfg.Collection == "" {
		cfg.Collection = "ticket_embeddings"
	}
	return &SQLite{cfg: cfg}
}

func (s *SQLite) Backend() string { return "sqlite" }
func (s *SQLite) Dimensions() int { return s.cfg.Dimensions }

// Path returns the database file path.
func (s *SQLite) Path() string { return s.cfg.Path }

// Connect opens the database, applies pragmas and migrates the schema.
// It fails with DimensionMismatch when the collection was created with a
// different dimension.
func (s *SQLite) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	if !identRe.MatchString(s.cfg.Collection) {
		return fmt.Errorf("vectorstore: invalid collection name %q", s.cfg.Collection)
	}

	if dir := filepath.Dir(s.cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("vectorstore: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("vectorstore: open database: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force
	// and serializes writers.
	db.SetMaxOpenConns(1)

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return fmt.Errorf("vectorstore: pragma %q: %w", p, err)
		}
	}

	if err := s.migrate(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *SQLite) migrate(ctx context.Context, db *sql.DB) error {
	table := s.cfg.Collection
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS collections (
			name       TEXT    PRIMARY KEY,
			dimensions INTEGER NOT NULL,
			created_at TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS %[1]s (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket_id  TEXT    NOT NULL UNIQUE,
			vector     BLOB    NOT NULL,
			text       TEXT    NOT NULL,
			metadata   TEXT    NOT NULL DEFAULT '{}',
			created_at TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT    NOT NULL DEFAULT (datetime('now'))
		);
	`, table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("vectorstore: migration: %w", err)
	}

	var dims int
	err := db.QueryRowContext(ctx, `SELECT dimensions FROM collections WHERE name = ?`, table).Scan(&dims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx,
			`INSERT INTO collections (name, dimensions) VALUES (?, ?)`, table, s.cfg.Dimensions); err != nil {
			return fmt.Errorf("vectorstore: register collection: %w", err)
		}
	case err != nil:
		return fmt.Errorf("vectorstore: read collection: %w", err)
	case dims != s.cfg.Dimensions:
		return apperr.New(apperr.DimensionMismatch,
			"collection %q holds %d-dimensional vectors, store configured for %d", table, dims, s.cfg.Dimensions)
	}
	return nil
}

// Close closes the database. The store can be reconnected afterwards.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLite) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, notReady(s.Backend())
	}
	return s.db, nil
}

// Upsert writes the batch in one transaction. Replaced rows keep their seq.
func (s *SQLite) Upsert(ctx context.Context, records []Record) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	if err := validateBatch(records, s.cfg.Dimensions); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.classify(ctx, err, "begin upsert")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (ticket_id, vector, text, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticket_id) DO UPDATE SET
			vector     = excluded.vector,
			text       = excluded.text,
			metadata   = excluded.metadata,
			updated_at = datetime('now')`, s.cfg.Collection))
	if err != nil {
		return 0, s.classify(ctx, err, "prepare upsert")
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return 0, fmt.Errorf("vectorstore: encode metadata for %q: %w", r.TicketID, err)
		}
		if r.Metadata == nil {
			meta = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx, r.TicketID, encodeVector(r.Vector), r.Text, string(meta)); err != nil {
			return 0, s.classify(ctx, err, "upsert "+r.TicketID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, s.classify(ctx, err, "commit upsert")
	}
	return len(records), nil
}

// Query scans the collection and ranks every row by cosine similarity.
func (s *SQLite) Query(ctx context.Context, vector []float32, k int) ([]Result, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if err := validateK(k); err != nil {
		return nil, err
	}
	if err := checkDims(vector, s.cfg.Dimensions, "query vector"); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT seq, ticket_id, vector, text FROM %s ORDER BY seq`, s.cfg.Collection))
	if err != nil {
		return nil, s.classify(ctx, err, "query")
	}
	defer rows.Close()

	qn := norm(vector)
	var cs []candidate
	for rows.Next() {
		var (
			c    candidate
			blob []byte
		)
		if err := rows.Scan(&c.seq, &c.TicketID, &blob, &c.Text); err != nil {
			return nil, s.classify(ctx, err, "scan")
		}
		vec := decodeVector(blob)
		if len(vec) != s.cfg.Dimensions {
			return nil, apperr.New(apperr.DimensionMismatch,
				"stored vector for %q has %d dimensions, store expects %d", c.TicketID, len(vec), s.cfg.Dimensions)
		}
		c.Score = cosine(vector, vec, qn, norm(vec))
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(ctx, err, "iterate")
	}
	return rank(cs, k), nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, ticketID string) (*Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var (
		rec  = Record{TicketID: ticketID}
		blob []byte
		meta string
	)
	err = db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT vector, text, metadata FROM %s WHERE ticket_id = ?`, s.cfg.Collection), ticketID).
		Scan(&blob, &rec.Text, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.TicketNotFound, "ticket %q is not stored", ticketID)
	}
	if err != nil {
		return nil, s.classify(ctx, err, "get "+ticketID)
	}
	rec.Vector = decodeVector(blob)
	if meta != "" && meta != "{}" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("vectorstore: decode metadata for %q: %w", ticketID, err)
		}
	}
	return &rec, nil
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, ticketIDs []string) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ticketIDs {
		res, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ticket_id = ?`, s.cfg.Collection), id)
		if err != nil {
			return n, s.classify(ctx, err, "delete "+id)
		}
		affected, _ := res.RowsAffected()
		n += int(affected)
	}
	return n, nil
}

// Count implements Store.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.cfg.Collection)).Scan(&n); err != nil {
		return 0, s.classify(ctx, err, "count")
	}
	return n, nil
}

func (s *SQLite) classify(ctx context.Context, err error, action string) error {
	if ctxErr := apperr.FromContext(ctx); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("vectorstore: %s: %w", action, err)
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
