package watcher

import (
	"github.com/samber/lo"

	"github.com/raoulx24/log-archiver/internal/archive"
)

// newest returns the newest rotated log name, or "" if there is none or the
// directory cannot be read.
func (w *Watcher) newest() string {
	names, err := archive.Scan(w.fs, w.dir, w.pattern)
	if err != nil {
		w.log.Debug("watcher: scan failed", "dir", w.dir, "error", err)
		return ""
	}
	last, _ := lo.Last(names)
	return last
}

func (w *Watcher) prime() {
	n := w.newest()
	w.mu.Lock()
	w.lastNewest = n
	w.mu.Unlock()
}

// detect requests a sweep if a newer rotated log showed up since the last check.
func (w *Watcher) detect() {
	n := w.newest()
	if n == "" {
		return
	}

	w.mu.Lock()
	changed := n > w.lastNewest
	if changed {
		w.lastNewest = n
	}
	w.mu.Unlock()

	if changed {
		w.log.Info("watcher: new rotated log", "file", n)
		w.req.Request(Reason)
	}
}
