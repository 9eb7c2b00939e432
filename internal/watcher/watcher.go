// Package watcher requests sweeps when rotated logs appear in the log
// directory without this process rotating them, e.g. when the application
// rotates its own files and log-archiver runs beside it.
package watcher

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/raoulx24/log-archiver/internal/config"
	"github.com/raoulx24/log-archiver/internal/fs"
	"github.com/raoulx24/log-archiver/internal/fsprobe"
	"github.com/raoulx24/log-archiver/internal/logging"
)

// Reason is passed along with sweep requests from the watcher.
const Reason = "watch"

// Requester receives sweep requests.
type Requester interface {
	Request(reason string)
}

// Watcher observes the log directory for new rotated files.
type Watcher struct {
	mu sync.RWMutex

	dir      string
	pattern  *regexp.Regexp
	interval time.Duration
	mode     string
	debounce time.Duration

	fs  fs.FS
	log logging.Logger
	req Requester

	lastNewest string
}

// New creates a watcher for the rotated logs matching pattern in dir.
func New(cfg config.WatchConfig, dir string, pattern *regexp.Regexp, log logging.Logger, req Requester) *Watcher {
	return &Watcher{
		dir:      dir,
		pattern:  pattern,
		interval: cfg.PollInterval,
		mode:     cfg.Mode,
		debounce: cfg.DebounceWindow,
		fs:       fs.New(),
		log:      log,
		req:      req,
	}
}

// Start chooses the correct watching strategy based on config and blocks
// until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	// the newest file at startup is not news
	w.prime()

	switch w.mode {
	case "", "off":
		w.log.Debug("directory watcher disabled")
		return nil

	case "fsnotify":
		w.watchOrPoll(ctx)
		return nil
	case "poll":
		w.StartPolling(ctx)
		return nil
	case "auto":
		res := fsprobe.Probe(w.dir)
		if res.FsnotifySupported {
			w.watchOrPoll(ctx)
			return nil
		}
		w.log.Warn("fsnotify disabled, polling instead", "reason", res.Reason, "interval", w.interval)
		w.StartPolling(ctx)
		return nil
	default:
		return fmt.Errorf("unknown watch mode %q", w.mode)
	}
}

// watchOrPoll falls back to polling when the directory cannot be watched,
// e.g. because it does not exist yet.
func (w *Watcher) watchOrPoll(ctx context.Context) {
	if err := w.StartFsNotify(ctx); err != nil {
		w.log.Warn("fsnotify unavailable, polling instead", "dir", w.dir, "error", err, "interval", w.interval)
		w.StartPolling(ctx)
	}
}
