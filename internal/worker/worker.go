// Package worker runs sweep requests in the background, one at a time.
package worker

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/raoulx24/log-archiver/internal/archive"
	"github.com/raoulx24/log-archiver/internal/logging"
	"github.com/raoulx24/log-archiver/internal/mailbox"
)

// Worker drains a latest-wins mailbox of sweep requests. Requests arriving
// while a sweep runs collapse into a single follow-up sweep.
type Worker struct {
	sweeper archive.Sweeper
	log     logging.Logger
	mb      *mailbox.Mailbox[Job]
}

// New creates a worker. A nil mailbox gets a fresh one.
func New(sweeper archive.Sweeper, log logging.Logger, mb *mailbox.Mailbox[Job]) *Worker {
	log.Debug("creating worker")
	if mb == nil {
		mb = mailbox.New[Job]()
	}
	return &Worker{
		sweeper: sweeper,
		log:     log,
		mb:      mb,
	}
}

// Request asks for a sweep. It never blocks.
func (w *Worker) Request(reason string) {
	w.mb.Put(Job{Reason: reason, Requested: time.Now()})
}

// Pending reports whether a request is waiting.
func (w *Worker) Pending() bool {
	return w.mb.HasJob()
}

// Start runs the worker loop until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("starting worker")
	for {
		job, ok := w.mb.Take(ctx)
		if !ok {
			w.log.Info("worker stopped")
			return
		}
		w.Handle(ctx, job)
	}
}

// Handle runs one sweep. Errors and panics are logged and never escape.
func (w *Worker) Handle(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("worker: sweep panic", "reason", job.Reason, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	w.log.Debug("worker: sweep requested", "reason", job.Reason, "waited", time.Since(job.Requested))
	if _, err := w.sweeper.Sweep(ctx, job.Reason); err != nil {
		w.log.Error("worker: sweep failed", "reason", job.Reason, "error", err)
	}
}
