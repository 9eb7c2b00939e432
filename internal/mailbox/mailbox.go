package mailbox

import (
	"context"
	"sync"
)

// Mailbox is a single-slot buffer where the latest job always wins.
// It is NOT a queue. It holds at most one pending job, so a burst of Puts
// while the consumer is busy collapses into one.
type Mailbox[T any] struct {
	mu    sync.Mutex
	job   *T
	ready chan struct{}
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

// Put stores a job in the mailbox, replacing any existing job.
// It never blocks.
func (m *Mailbox[T]) Put(j T) {
	m.mu.Lock()
	m.job = &j
	m.mu.Unlock()

	// wake up consumer if waiting
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Take blocks until a job is available or ctx is done. The bool is false
// when ctx ended the wait.
func (m *Mailbox[T]) Take(ctx context.Context) (T, bool) {
	for {
		if j, ok := m.TryTake(); ok {
			return j, true
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// TryTake returns the pending job and clears the slot. It never blocks.
func (m *Mailbox[T]) TryTake() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil {
		var zero T
		return zero, false
	}

	j := *m.job
	m.job = nil
	return j, true
}

// HasJob reports whether a job is currently waiting.
func (m *Mailbox[T]) HasJob() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job != nil
}
