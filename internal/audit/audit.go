// Package audit defines where gateway calls are recorded.
package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/vbonduro/nutriai/internal/domain"
)

// DefaultLimit applies when Latest is called with limit <= 0.
const DefaultLimit = 50

// Sink receives exactly one entry per gateway call.
type Sink interface {
	Append(ctx context.Context, entry domain.AiLogEntry) error
}

// Reader lists entries, most recent first.
type Reader interface {
	Latest(ctx context.Context, limit int) ([]domain.AiLogEntry, error)
}

type Log interface {
	Sink
	Reader
}

// Memory is an in-process Log.
type Memory struct {
	mu      sync.Mutex
	entries []domain.AiLogEntry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, entry domain.AiLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Memory) Latest(_ context.Context, limit int) ([]domain.AiLogEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	m.mu.Lock()
	out := make([]domain.AiLogEntry, len(m.entries))
	copy(out, m.entries)
	m.mu.Unlock()

	// Stable on insertion order so equal timestamps list newest append first.
	reverse(out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Entries returns every entry in append order.
func (m *Memory) Entries() []domain.AiLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AiLogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func reverse(s []domain.AiLogEntry) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
