package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatestWins(t *testing.T) {
	m := New[int]()
	require.False(t, m.HasJob())

	m.Put(1)
	m.Put(2)
	m.Put(3)
	require.True(t, m.HasJob())

	j, ok := m.TryTake()
	require.True(t, ok)
	require.Equal(t, 3, j)

	_, ok = m.TryTake()
	require.False(t, ok)
}

func TestTakeWaitsForPut(t *testing.T) {
	m := New[string]()
	go func() {
		time.Sleep(20 * time.Millisecond)
		m.Put("rotation")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	j, ok := m.Take(ctx)
	require.True(t, ok)
	require.Equal(t, "rotation", j)
	require.False(t, m.HasJob())
}

func TestTakeReturnsOnCancel(t *testing.T) {
	m := New[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := m.Take(ctx)
	require.False(t, ok)
}

func TestStaleSignalDoesNotBlock(t *testing.T) {
	m := New[int]()
	m.Put(1)
	_, ok := m.TryTake()
	require.True(t, ok)

	// the wake-up from the first Put is still pending
	m.Put(2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j, ok := m.Take(ctx)
	require.True(t, ok)
	require.Equal(t, 2, j)
}
