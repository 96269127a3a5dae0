package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
)

// PostgresConfig configures the pgvector backend.
type PostgresConfig struct {
	DSN        string
	Collection string
	Dimensions int
	MaxConns   int32
}

// Postgres stores embeddings in a vector(D) column and lets pgvector's
// cosine distance operator do the ranking.
type Postgres struct {
	cfg PostgresConfig

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// NewPostgres creates an unconnected Postgres store.
func NewPostgres(cfg PostgresConfig) *Postgres {
	if cfg.Collection == "" {
		cfg.Collection = "ticket_embeddings"
	}
	return &Postgres{cfg: cfg}
}

func (p *Postgres) Backend() string { return "postgres" }
func (p *Postgres) Dimensions() int { return p.cfg.Dimensions }

// Connect opens the pool, ensures the extension and table exist and
// verifies the column dimension.
func (p *Postgres) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		return nil
	}
	if !identRe.MatchString(p.cfg.Collection) {
		return fmt.Errorf("vectorstore: invalid collection name %q", p.cfg.Collection)
	}

	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("vectorstore: parse postgres dsn: %w", err)
	}
	if p.cfg.MaxConns > 0 {
		poolCfg.MaxConns = p.cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return p.unavailable(ctx, err, "create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return p.unavailable(ctx, err, "ping")
	}

	if err := p.ensureTable(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	p.pool = pool
	return nil
}

func (p *Postgres) ensureTable(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS %[1]s (
  seq        bigserial   NOT NULL,
  ticket_id  text        PRIMARY KEY,
  embedding  vector(%[2]d) NOT NULL,
  text       text        NOT NULL,
  metadata   jsonb       NOT NULL DEFAULT '{}',
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[1]s_seq_idx ON %[1]s (seq);
`, p.cfg.Collection, p.cfg.Dimensions)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("vectorstore: ensure table: %w", err)
	}

	// atttypmod carries the declared vector dimension.
	var dims int
	err := pool.QueryRow(ctx, `
SELECT a.atttypmod
FROM pg_attribute a
WHERE a.attrelid = $1::regclass AND a.attname = 'embedding'`, p.cfg.Collection).Scan(&dims)
	if err != nil {
		return fmt.Errorf("vectorstore: read column dimension: %w", err)
	}
	if dims > 0 && dims != p.cfg.Dimensions {
		return apperr.New(apperr.DimensionMismatch,
			"table %q holds %d-dimensional vectors, store configured for %d", p.cfg.Collection, dims, p.cfg.Dimensions)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func (p *Postgres) handle() (*pgxpool.Pool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pool == nil {
		return nil, notReady(p.Backend())
	}
	return p.pool, nil
}

// Upsert writes the batch in one transaction.
func (p *Postgres) Upsert(ctx context.Context, records []Record) (int, error) {
	pool, err := p.handle()
	if err != nil {
		return 0, err
	}
	if err := validateBatch(records, p.cfg.Dimensions); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, p.unavailable(ctx, err, "begin upsert")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmt := fmt.Sprintf(`
INSERT INTO %s (ticket_id, embedding, text, metadata)
VALUES ($1, $2, $3, $4::jsonb)
ON CONFLICT (ticket_id) DO UPDATE SET
  embedding  = EXCLUDED.embedding,
  text       = EXCLUDED.text,
  metadata   = EXCLUDED.metadata,
  updated_at = now()`, p.cfg.Collection)

	for _, r := range records {
		meta := []byte("{}")
		if r.Metadata != nil {
			if meta, err = json.Marshal(r.Metadata); err != nil {
				return 0, fmt.Errorf("vectorstore: encode metadata for %q: %w", r.TicketID, err)
			}
		}
		if _, err := tx.Exec(ctx, stmt, r.TicketID, pgvector.NewVector(r.Vector), r.Text, string(meta)); err != nil {
			return 0, p.unavailable(ctx, err, "upsert "+r.TicketID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, p.unavailable(ctx, err, "commit upsert")
	}
	return len(records), nil
}

// Query orders by cosine distance, breaking ties by seq.
func (p *Postgres) Query(ctx context.Context, vector []float32, k int) ([]Result, error) {
	pool, err := p.handle()
	if err != nil {
		return nil, err
	}
	if err := validateK(k); err != nil {
		return nil, err
	}
	if err := checkDims(vector, p.cfg.Dimensions, "query vector"); err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, fmt.Sprintf(`
SELECT ticket_id, 1 - (embedding <=> $1) AS score, text
FROM %s
ORDER BY embedding <=> $1, seq
LIMIT $2`, p.cfg.Collection), pgvector.NewVector(vector), k)
	if err != nil {
		return nil, p.unavailable(ctx, err, "query")
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.TicketID, &r.Score, &r.Text); err != nil {
			return nil, p.unavailable(ctx, err, "scan")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, p.unavailable(ctx, err, "iterate")
	}
	return out, nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, ticketID string) (*Record, error) {
	pool, err := p.handle()
	if err != nil {
		return nil, err
	}

	var (
		rec  = Record{TicketID: ticketID}
		emb  pgvector.Vector
		meta []byte
	)
	err = pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT embedding, text, metadata FROM %s WHERE ticket_id = $1`, p.cfg.Collection), ticketID).
		Scan(&emb, &rec.Text, &meta)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.TicketNotFound, "ticket %q is not stored", ticketID)
	}
	if err != nil {
		return nil, p.unavailable(ctx, err, "get "+ticketID)
	}
	rec.Vector = emb.Slice()
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("vectorstore: decode metadata for %q: %w", ticketID, err)
		}
	}
	return &rec, nil
}

// Delete implements Store.
func (p *Postgres) Delete(ctx context.Context, ticketIDs []string) (int, error) {
	pool, err := p.handle()
	if err != nil {
		return 0, err
	}
	tag, err := pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ticket_id = ANY($1)`, p.cfg.Collection), ticketIDs)
	if err != nil {
		return 0, p.unavailable(ctx, err, "delete")
	}
	return int(tag.RowsAffected()), nil
}

// Count implements Store.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	pool, err := p.handle()
	if err != nil {
		return 0, err
	}
	var n int
	if err := pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.cfg.Collection)).Scan(&n); err != nil {
		return 0, p.unavailable(ctx, err, "count")
	}
	return n, nil
}

func (p *Postgres) unavailable(ctx context.Context, err error, action string) error {
	if ctxErr := apperr.FromContext(ctx); ctxErr != nil {
		return ctxErr
	}
	return apperr.Wrap(apperr.UpstreamUnavailable, err, "postgres %s", action)
}
