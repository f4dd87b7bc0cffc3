package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/nutriai/internal/domain"
)

func TestMemoryLatestOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, m.Append(ctx, domain.AiLogEntry{ID: "a", Timestamp: base}))
	require.NoError(t, m.Append(ctx, domain.AiLogEntry{ID: "b", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, m.Append(ctx, domain.AiLogEntry{ID: "c", Timestamp: base}))

	got, err := m.Latest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Equal(t, "a", got[2].ID)
}

func TestMemoryLatestLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := range 60 {
		require.NoError(t, m.Append(ctx, domain.AiLogEntry{ID: fmt.Sprint(i), Timestamp: time.Unix(int64(i), 0)}))
	}

	got, err := m.Latest(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, "59", got[0].ID)

	got, err = m.Latest(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)
}

func TestMemoryConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var g errgroup.Group
	for i := range 100 {
		g.Go(func() error {
			return m.Append(ctx, domain.AiLogEntry{ID: fmt.Sprint(i)})
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 100, m.Count())
	assert.Len(t, m.Entries(), 100)
}
