// Package vectorstore persists ticket embeddings and answers cosine
// nearest-neighbor queries.
//
// All backends share one contract: a store must be connected before use
// (NotReady otherwise), every record has the store's dimension
// (DimensionMismatch otherwise), upserts replace by ticket id while
// keeping the record's original insertion position, and query results
// are sorted by descending similarity with ties going to the earlier
// insert.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Record is one stored embedding.
type Record struct {
	TicketID string            `json:"ticket_id"`
	Vector   []float32         `json:"-"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Result is one query hit.
type Result struct {
	TicketID string  `json:"ticket_id"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// Store is a vector store backend. Implementations are safe for
// concurrent use once connected.
type Store interface {
	Connect(ctx context.Context) error
	Upsert(ctx context.Context, records []Record) (int, error)
	Query(ctx context.Context, vector []float32, k int) ([]Result, error)
	Get(ctx context.Context, ticketID string) (*Record, error)
	Delete(ctx context.Context, ticketIDs []string) (int, error)
	Count(ctx context.Context) (int, error)
	Dimensions() int
	Backend() string
	Close() error
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config selects a backend by URI scheme.
//
//	memory://                     in-process, lost on exit
//	sqlite://                     <DataDir>/<Database>
//	sqlite:///var/lib/qa/vec.db   explicit file
//	postgres://user:pw@host/db    Postgres with the pgvector extension
type Config struct {
	URI        string
	Database   string
	Collection string
	DataDir    string
	Dimensions int
}

// DefaultConfig returns a SQLite store under ~/.qa-mcp.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		URI:        "sqlite://",
		Database:   "qa-mcp.db",
		Collection: "ticket_embeddings",
		DataDir:    filepath.Join(home, ".qa-mcp"),
		Dimensions: 384,
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Open builds the store named by cfg.URI. The store is not connected.
func Open(cfg Config) (Store, error) {
	if cfg.Dimensions < 1 {
		return nil, fmt.Errorf("vectorstore: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Collection == "" {
		cfg.Collection = "ticket_embeddings"
	}
	if !identRe.MatchString(cfg.Collection) {
		return nil, fmt.Errorf("vectorstore: invalid collection name %q", cfg.Collection)
	}

	scheme, rest, _ := strings.Cut(cfg.URI, "://")
	switch strings.ToLower(scheme) {
	case "memory", "":
		return NewMemory(cfg.Dimensions), nil
	case "sqlite", "file":
		path := rest
		if path == "" {
			db := cfg.Database
			if db == "" {
				db = "qa-mcp.db"
			}
			path = filepath.Join(cfg.DataDir, db)
		}
		return NewSQLite(SQLiteConfig{Path: path, Collection: cfg.Collection, Dimensions: cfg.Dimensions}), nil
	case "postgres", "postgresql":
		return NewPostgres(PostgresConfig{DSN: cfg.URI, Collection: cfg.Collection, Dimensions: cfg.Dimensions}), nil
	}
	return nil, fmt.Errorf("vectorstore: unsupported URI scheme %q", scheme)
}

// ─── Shared helpers ──────────────────────────────────────────────────────────

func notReady(backend string) error {
	return apperr.New(apperr.NotReady, "%s store is not connected", backend)
}

func validateK(k int) error {
	if k < 1 {
		return apperr.New(apperr.InvalidInput, "k must be >= 1, got %d", k)
	}
	return nil
}

func checkDims(v []float32, dims int, what string) error {
	if len(v) != dims {
		return apperr.New(apperr.DimensionMismatch, "%s has %d dimensions, store expects %d", what, len(v), dims)
	}
	for _, x := range v {
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return apperr.New(apperr.InvalidInput, "%s contains a non-finite value", what)
		}
	}
	return nil
}

// validateBatch checks every record before anything is written.
func validateBatch(records []Record, dims int) error {
	for i, r := range records {
		if strings.TrimSpace(r.TicketID) == "" {
			return apperr.New(apperr.InvalidInput, "record %d has an empty ticket id", i)
		}
		if err := checkDims(r.Vector, dims, fmt.Sprintf("record %q vector", r.TicketID)); err != nil {
			return err
		}
	}
	return nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosine returns the cosine similarity of a and b given their norms.
// Zero vectors score 0.
func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

// candidate is a scored row awaiting ranking.
type candidate struct {
	Result
	seq int64
}

// rank sorts by score descending, then insertion sequence ascending, and
// keeps the top k.
func rank(cs []candidate, k int) []Result {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].seq < cs[j].seq
	})
	if len(cs) > k {
		cs = cs[:k]
	}
	out := make([]Result, len(cs))
	for i, c := range cs {
		out[i] = c.Result
	}
	return out
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
