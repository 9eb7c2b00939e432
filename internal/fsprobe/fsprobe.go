// Package fsprobe checks whether fsnotify works reliably for a directory.
// It performs a real create+rename test to ensure events are delivered;
// network and FUSE filesystems often accept a watch and then stay silent.
package fsprobe

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// DefaultTimeout is how long Probe waits for the rename event.
const DefaultTimeout = 200 * time.Millisecond

// Result reports whether fsnotify is usable and why.
type Result struct {
	FsnotifySupported bool   // true if events are delivered
	Reason            string // explanation when unsupported
}

func unsupported(format string, args ...any) Result {
	return Result{FsnotifySupported: false, Reason: fmt.Sprintf(format, args...)}
}

// Probe tests whether fsnotify reliably reports rename events in dir.
func Probe(dir string) Result {
	return ProbeTimeout(dir, DefaultTimeout)
}

// ProbeTimeout is Probe with an explicit wait for the event.
func ProbeTimeout(dir string, timeout time.Duration) Result {
	st, err := os.Stat(dir)
	if err != nil {
		return unsupported("stat failed: %v", err)
	}
	if !st.IsDir() {
		return unsupported("not a directory")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return unsupported("fsnotify unavailable: %v", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return unsupported("cannot watch directory: %v", err)
	}

	// hidden names never match a log pattern
	id := uuid.NewString()
	tmp := filepath.Join(dir, ".fsprobe-"+id+".tmp")
	final := filepath.Join(dir, ".fsprobe-"+id)

	f, err := os.Create(tmp)
	if err != nil {
		return unsupported("cannot create temp file: %v", err)
	}
	_ = f.Close()

	// Rename temp → final the way a rotation does.
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return unsupported("rename failed: %v", err)
	}
	defer os.Remove(final)

	deadline := time.After(timeout)
	for {
		select {
		case ev := <-w.Events:
			if filepath.Base(ev.Name) == filepath.Base(final) && ev.Op&(fsnotify.Rename|fsnotify.Create) != 0 {
				return Result{FsnotifySupported: true}
			}
		case err := <-w.Errors:
			return unsupported("fsnotify error: %v", err)
		case <-deadline:
			return unsupported("no events received within %s (rename not reported)", timeout)
		}
	}
}
