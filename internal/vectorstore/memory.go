package vectorstore

import (
	"context"
	"sync"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
)

type memEntry struct {
	rec  Record
	seq  int64
	norm float64
}

// Memory is an in-process store guarded by a RWMutex. Entries are
// replaced wholesale so readers never see a partially updated record.
type Memory struct {
	mu      sync.RWMutex
	dims    int
	ready   bool
	nextSeq int64
	entries map[string]*memEntry
}

// NewMemory creates an unconnected in-memory store.
func NewMemory(dims int) *Memory {
	return &Memory{dims: dims, entries: make(map[string]*memEntry)}
}

func (m *Memory) Backend() string { return "memory" }
func (m *Memory) Dimensions() int { return m.dims }

// Connect marks the store ready.
func (m *Memory) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	return nil
}

// Close drops all entries and marks the store not ready.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	m.entries = make(map[string]*memEntry)
	return nil
}

// Upsert implements Store.
func (m *Memory) Upsert(ctx context.Context, records []Record) (int, error) {
	if err := apperr.FromContext(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return 0, notReady(m.Backend())
	}
	if err := validateBatch(records, m.dims); err != nil {
		return 0, err
	}
	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		e := &memEntry{
			rec:  Record{TicketID: r.TicketID, Vector: vec, Text: r.Text, Metadata: copyMeta(r.Metadata)},
			norm: norm(vec),
		}
		if old, ok := m.entries[r.TicketID]; ok {
			e.seq = old.seq
		} else {
			m.nextSeq++
			e.seq = m.nextSeq
		}
		m.entries[r.TicketID] = e
	}
	return len(records), nil
}

// Query implements Store.
func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if err := apperr.FromContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return nil, notReady(m.Backend())
	}
	if err := validateK(k); err != nil {
		return nil, err
	}
	if err := checkDims(vector, m.dims, "query vector"); err != nil {
		return nil, err
	}
	qn := norm(vector)
	cs := make([]candidate, 0, len(m.entries))
	for _, e := range m.entries {
		cs = append(cs, candidate{
			Result: Result{TicketID: e.rec.TicketID, Score: cosine(vector, e.rec.Vector, qn, e.norm), Text: e.rec.Text},
			seq:    e.seq,
		})
	}
	return rank(cs, k), nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, ticketID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return nil, notReady(m.Backend())
	}
	e, ok := m.entries[ticketID]
	if !ok {
		return nil, apperr.New(apperr.TicketNotFound, "ticket %q is not stored", ticketID)
	}
	vec := make([]float32, len(e.rec.Vector))
	copy(vec, e.rec.Vector)
	return &Record{TicketID: e.rec.TicketID, Vector: vec, Text: e.rec.Text, Metadata: copyMeta(e.rec.Metadata)}, nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, ticketIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return 0, notReady(m.Backend())
	}
	n := 0
	for _, id := range ticketIDs {
		if _, ok := m.entries[id]; ok {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// Count implements Store.
func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return 0, notReady(m.Backend())
	}
	return len(m.entries), nil
}
