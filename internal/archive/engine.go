// Package archive runs archival sweeps over a log directory: rotated logs
// are compressed into archives and both kinds are pruned to their retention.
//
// A sweep keeps no state between runs. Everything it needs is derived from
// the directory listing, so overlapping sweeps converge on the same result.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/raoulx24/log-archiver/internal/compress"
	"github.com/raoulx24/log-archiver/internal/fs"
	"github.com/raoulx24/log-archiver/internal/logging"
	"github.com/raoulx24/log-archiver/internal/metrics"
	"github.com/raoulx24/log-archiver/internal/naming"
	"github.com/raoulx24/log-archiver/internal/retention"
)

// ErrPanic marks a sweep that was aborted by a recovered panic.
var ErrPanic = errors.New("sweep panicked")

// Config is the immutable engine configuration. Retention values <= 0 keep
// every file of that kind.
type Config struct {
	Directory         string
	BaseName          string
	CompressionSuffix string
	CompressionLevel  int
	RawRetention      int
	ArchiveRetention  int
	Schedule          string
}

// Result summarizes one sweep.
type Result struct {
	ID              string
	Reason          string
	Raw             int
	Compressed      []string
	Skipped         int
	DeletedRaw      []string
	DeletedArchives []string
	Degraded        bool
	Duration        time.Duration
}

type Option func(*Engine)

func WithLogger(log logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithFS(filesystem fs.FS) Option {
	return func(e *Engine) { e.fs = filesystem }
}

// WithCompressor replaces the compressor selected from the configured suffix.
func WithCompressor(c compress.Compressor) Option {
	return func(e *Engine) { e.comp = c }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSerializedSweeps makes concurrent Sweep calls run one after another.
// Results are the same either way; this only avoids duplicate work.
func WithSerializedSweeps() Option {
	return func(e *Engine) { e.serialize = true }
}

type Engine struct {
	cfg     Config
	scheme  *naming.Scheme
	fs      fs.FS
	log     logging.Logger
	comp    compress.Compressor
	metrics *metrics.Registry

	serialize bool
	mu        sync.Mutex
}

func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Directory == "" {
		return nil, errors.New("archive: directory is empty")
	}
	if cfg.CompressionLevel < 0 || cfg.CompressionLevel > 9 {
		return nil, fmt.Errorf("archive: compression level %d out of range 0-9", cfg.CompressionLevel)
	}
	scheme, err := naming.New(cfg.BaseName, cfg.CompressionSuffix)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	e := &Engine{cfg: cfg, scheme: scheme}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.Nop()
	}
	if e.fs == nil {
		e.fs = fs.New()
	}
	if e.comp == nil {
		e.comp = compress.New(cfg.CompressionSuffix, cfg.CompressionLevel, e.fs)
	}
	return e, nil
}

func (e *Engine) Config() Config         { return e.cfg }
func (e *Engine) Scheme() *naming.Scheme { return e.scheme }

// Sweep compresses rotated logs that have no archive yet and applies both
// retention limits. Per-file failures are logged and aggregated into the
// returned error; the sweep keeps going past them.
func (e *Engine) Sweep(ctx context.Context, reason string) (res Result, err error) {
	if e.serialize {
		e.mu.Lock()
		defer e.mu.Unlock()
	}

	start := time.Now()
	res = Result{ID: uuid.NewString(), Reason: reason}
	log := e.log.With("sweep_id", res.ID, "reason", reason)

	defer func() {
		if r := recover(); r != nil {
			log.Error("sweep panic", "panic", r, "stack", string(debug.Stack()))
			e.metrics.CountError("sweep")
			err = multierr.Append(err, fmt.Errorf("%w: %v", ErrPanic, r))
		}
		res.Duration = time.Since(start)
		e.metrics.ObserveSweep(metrics.SweepStats{
			Trigger:         reason,
			Compressed:      len(res.Compressed),
			DeletedRaw:      len(res.DeletedRaw),
			DeletedArchives: len(res.DeletedArchives),
			Degraded:        res.Degraded,
			Duration:        res.Duration,
		})
		if ferr := e.metrics.Flush(); ferr != nil {
			log.Warn("metrics export failed", "error", ferr)
		}
	}()

	dir := e.cfg.Directory
	log.Info("sweep started", "dir", dir)

	raw, err := Scan(e.fs, dir, e.scheme.Pattern(naming.Raw))
	if err != nil {
		log.Warn("cannot read log directory", "dir", dir, "error", err)
		e.metrics.CountError("scan")
		return res, err
	}
	res.Raw = len(raw)
	if len(raw) == 0 {
		log.Info("no matching log files", "dir", dir, "base", e.scheme.Base())
		return res, nil
	}

	var errs []error

	if !e.comp.Available() {
		res.Degraded = true
		log.Warn("compression unavailable, rotated logs are kept uncompressed",
			"suffix", e.scheme.Suffix(), "reason", e.comp.Reason())
	} else if cerr := e.compressAll(ctx, log, raw, &res); cerr != nil {
		errs = append(errs, cerr)
	}

	if cerr := ctx.Err(); cerr != nil {
		return res, multierr.Combine(append(errs, cerr)...)
	}

	pruner := retention.New(e.fs, log)

	res.DeletedRaw, err = pruner.Prune(ctx, dir, raw, e.cfg.RawRetention)
	if err != nil {
		e.metrics.CountError("remove")
		errs = append(errs, fmt.Errorf("pruning rotated logs: %w", err))
	}

	archives, err := Scan(e.fs, dir, e.scheme.Pattern(naming.Archive))
	if err != nil {
		log.Warn("cannot read log directory", "dir", dir, "error", err)
		e.metrics.CountError("scan")
		errs = append(errs, err)
	} else {
		res.DeletedArchives, err = pruner.Prune(ctx, dir, archives, e.cfg.ArchiveRetention)
		if err != nil {
			e.metrics.CountError("remove")
			errs = append(errs, fmt.Errorf("pruning archives: %w", err))
		}
	}

	log.Info("sweep finished",
		"raw", res.Raw,
		"compressed", len(res.Compressed),
		"skipped", res.Skipped,
		"deleted_raw", len(res.DeletedRaw),
		"deleted_archives", len(res.DeletedArchives),
		"degraded", res.Degraded,
		"duration", time.Since(start))

	return res, multierr.Combine(errs...)
}

func (e *Engine) compressAll(ctx context.Context, log logging.Logger, raw []string, res *Result) error {
	var errs []error
	for _, name := range raw {
		if err := ctx.Err(); err != nil {
			return multierr.Combine(errs...)
		}

		archiveName := e.scheme.ArchiveFor(name)
		src := filepath.Join(e.cfg.Directory, name)
		dst := filepath.Join(e.cfg.Directory, archiveName)

		err := e.comp.Compress(ctx, src, dst)
		switch {
		case err == nil:
			res.Compressed = append(res.Compressed, archiveName)
			log.Info("compressed", "file", name, "archive", archiveName)
		case errors.Is(err, compress.ErrExists):
			res.Skipped++
			log.Debug("archive exists", "file", name, "archive", archiveName)
		case fs.IsNotExist(err):
			log.Info("rotated log already removed", "file", name)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return multierr.Combine(errs...)
		default:
			e.metrics.CountError("compress")
			log.Error("compression failed", "file", name, "error", err)
			errs = append(errs, fmt.Errorf("compressing %s: %w", name, err))
		}
	}
	return multierr.Combine(errs...)
}

// Sweeper runs one sweep. Engine implements it; triggers depend on it.
type Sweeper interface {
	Sweep(ctx context.Context, reason string) (Result, error)
}
