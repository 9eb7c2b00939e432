// Package rotate provides the writer that owns the active log file and
// rotates it on a time boundary or size limit, then triggers a sweep.
//
// After every rotation exactly one active file exists, whatever happened to
// the rename or the sweep.
package rotate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/raoulx24/log-archiver/internal/archive"
	"github.com/raoulx24/log-archiver/internal/fs"
	"github.com/raoulx24/log-archiver/internal/logging"
	"github.com/raoulx24/log-archiver/internal/metrics"
	"github.com/raoulx24/log-archiver/internal/naming"
	"github.com/raoulx24/log-archiver/internal/worker"
)

// Reason is passed to the sweeper for rotation-triggered sweeps.
const Reason = "rotation"

var (
	ErrClosed    = errors.New("write on closed log writer")
	ErrCollision = errors.New("rotated name already taken")
)

// Config describes the active file and when it rotates.
type Config struct {
	Directory  string
	BaseName   string
	When       string
	MaxSize    int64 // bytes, 0 disables size rotation
	AsyncSweep bool

	// Now is the clock used for rotation decisions and names.
	Now func() time.Time
}

// Requester hands a sweep off to a background worker.
type Requester interface {
	Request(reason string)
}

type Option func(*Writer)

func WithFS(filesystem fs.FS) Option {
	return func(w *Writer) { w.fs = filesystem }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(w *Writer) { w.metrics = m }
}

// WithRequester routes async sweeps to r instead of a writer-owned worker.
func WithRequester(r Requester) Option {
	return func(w *Writer) { w.requester = r }
}

type Writer struct {
	mu sync.Mutex

	cfg       Config
	when      When
	now       func() time.Time
	fs        fs.FS
	log       logging.Logger
	metrics   *metrics.Registry
	sweeper   archive.Sweeper
	requester Requester

	file     *os.File
	size     int64
	openedAt time.Time
	next     time.Time
	split    bool
	closed   bool

	stopWorker context.CancelFunc
	workerDone chan struct{}
}

var _ io.WriteCloser = (*Writer)(nil)

// New opens or adopts the active file. sweeper may be nil to rotate without
// archiving.
func New(cfg Config, sweeper archive.Sweeper, log logging.Logger, opts ...Option) (*Writer, error) {
	if cfg.Directory == "" {
		return nil, errors.New("rotate: directory is empty")
	}
	if err := naming.ValidateBase(cfg.BaseName); err != nil {
		return nil, fmt.Errorf("rotate: %w", err)
	}
	if cfg.MaxSize < 0 {
		return nil, fmt.Errorf("rotate: max size %d is negative", cfg.MaxSize)
	}
	when, err := ParseWhen(cfg.When)
	if err != nil {
		return nil, fmt.Errorf("rotate: %w", err)
	}

	w := &Writer{
		cfg:     cfg,
		when:    when,
		now:     cfg.Now,
		log:     log,
		sweeper: sweeper,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.fs == nil {
		w.fs = fs.New()
	}

	if cfg.AsyncSweep && w.requester == nil && sweeper != nil {
		ctx, cancel := context.WithCancel(context.Background())
		wk := worker.New(sweeper, log, nil)
		w.requester = wk
		w.stopWorker = cancel
		w.workerDone = make(chan struct{})
		go func() {
			defer close(w.workerDone)
			wk.Start(ctx)
		}()
	}

	if err := w.open(w.now(), true); err != nil {
		w.shutdownWorker()
		return nil, err
	}

	w.log.Info("log writer opened",
		"file", w.activePath(),
		"when", w.when.String(),
		"max_size", cfg.MaxSize,
		"next_rotation", w.next)
	return w, nil
}

func (w *Writer) activePath() string {
	return filepath.Join(w.cfg.Directory, w.cfg.BaseName+naming.RawExt)
}

// Write appends p to the active file, rotating first when a boundary has
// passed or p would push the file over the size limit.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}
	if w.file == nil {
		if err := w.open(w.now(), true); err != nil {
			return 0, err
		}
	}

	now := w.now()
	switch {
	case !w.next.IsZero() && !now.Before(w.next):
		w.rotate(now, "time")
	case w.cfg.MaxSize > 0 && w.size > 0 && w.size+int64(len(p)) > w.cfg.MaxSize:
		w.rotate(now, "size")
	}
	if w.file == nil {
		return 0, fmt.Errorf("no active log file: %s", w.activePath())
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Rotate forces a rotation of a non-empty active file.
func (w *Writer) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.file == nil {
		if err := w.open(w.now(), true); err != nil {
			return err
		}
	}
	return w.rotate(w.now(), "manual")
}

func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the active file and stops a writer-owned sweep worker. A
// sweep it is running is cancelled between files.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.shutdownWorker()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Writer) shutdownWorker() {
	if w.stopWorker == nil {
		return
	}
	w.stopWorker()
	<-w.workerDone
	w.stopWorker = nil
}

// open opens the active file for appending. When adopting a file left by a
// previous run, its modification time stands in for the time it was opened.
// Caller must hold the lock.
func (w *Writer) open(now time.Time, adopt bool) error {
	if err := w.fs.MkdirAll(w.cfg.Directory); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(w.activePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening active log: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat active log: %w", err)
	}

	w.file = f
	w.size = st.Size()
	w.openedAt = now
	if adopt && st.Size() > 0 && st.ModTime().Before(now) {
		w.openedAt = st.ModTime()
	}
	w.next = w.when.Next(w.openedAt)
	return nil
}

// rotate moves the active file to its rotated name and opens a fresh one.
// Failures are logged; the writer always ends up with an open active file
// when the filesystem allows it. Caller must hold the lock.
func (w *Writer) rotate(now time.Time, cause string) error {
	if w.size == 0 {
		// nothing to archive, only move the boundary
		w.next = w.when.Next(now)
		return nil
	}

	if err := w.file.Sync(); err != nil {
		w.log.Warn("fsync before rotation failed", "file", w.activePath(), "error", err)
	}
	if err := w.file.Close(); err != nil {
		w.log.Warn("closing active log failed", "file", w.activePath(), "error", err)
	}
	w.file = nil

	rotated, rerr := w.rename(now, cause)
	if rerr != nil {
		w.metrics.CountError("rotate")
		w.log.Error("rotation failed, continuing with active file", "file", w.activePath(), "cause", cause, "error", rerr)

		openedAt := w.openedAt
		if err := w.open(now, false); err != nil {
			return errors.Join(rerr, err)
		}
		// keep naming the content by when it started
		w.openedAt = openedAt
		w.next = w.when.Next(now)
		return rerr
	}

	if err := w.open(now, false); err != nil {
		w.log.Error("reopening active log failed", "file", w.activePath(), "error", err)
		return err
	}

	// a time rotation starts a new period, anything else splits the current one
	w.split = cause != "time"
	w.metrics.CountRotation(cause)
	w.log.Info("rotated", "file", rotated, "cause", cause, "next_rotation", w.next)
	w.sweep()
	return nil
}

// rename picks the rotated name for the content of the active file. The
// name is stamped with the time the file was opened; if that is taken, the
// current time is used at full resolution instead. The file is published
// with a link so a name that shows up meanwhile is never replaced.
func (w *Writer) rename(now time.Time, cause string) (string, error) {
	g := w.when.Granularity()
	if cause != "time" || (g == naming.Date && w.periodSplit()) {
		g = naming.DateTime
	}

	candidates := []string{
		naming.Format(w.cfg.BaseName, w.openedAt, g, naming.Raw, ""),
		naming.Format(w.cfg.BaseName, now, naming.DateTime, naming.Raw, ""),
	}
	for _, name := range candidates {
		dst := filepath.Join(w.cfg.Directory, name)
		if err := w.fs.Link(w.activePath(), dst); err != nil {
			if fs.IsExist(err) {
				w.log.Warn("rotated name taken", "file", name)
				continue
			}
			return "", fmt.Errorf("publishing active log as %s: %w", name, err)
		}
		if err := w.fs.Remove(context.Background(), w.activePath()); err != nil && !fs.IsNotExist(err) {
			// the content must live under one name only
			if uerr := w.fs.Remove(context.Background(), dst); uerr != nil {
				w.log.Error("removing duplicate rotated log failed", "file", name, "error", uerr)
			}
			return "", fmt.Errorf("removing active log after publishing %s: %w", name, err)
		}
		return name, nil
	}
	return "", fmt.Errorf("%w: %v", ErrCollision, candidates)
}

// periodSplit reports whether the current day already has, or may get,
// rotated logs with a time of day. A date-only name would sort before them,
// so the closing part of the day has to carry a time as well.
func (w *Writer) periodSplit() bool {
	if w.split || w.cfg.MaxSize > 0 {
		return true
	}
	dateName := naming.Format(w.cfg.BaseName, w.openedAt, naming.Date, naming.Raw, "")
	prefix := strings.TrimSuffix(dateName, naming.RawExt) + "_"
	names, err := w.fs.ReadDir(w.cfg.Directory)
	if err != nil {
		return false
	}
	return lo.ContainsBy(names, func(n string) bool {
		return strings.HasPrefix(n, prefix) && strings.HasSuffix(n, naming.RawExt)
	})
}

// sweep runs or requests the post-rotation sweep. Its outcome never reaches
// the writer.
func (w *Writer) sweep() {
	if w.sweeper == nil {
		return
	}
	if w.cfg.AsyncSweep && w.requester != nil {
		w.requester.Request(Reason)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("rotation sweep panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if _, err := w.sweeper.Sweep(context.Background(), Reason); err != nil {
		w.log.Error("rotation sweep failed", "error", err)
	}
}
