// Package fstest wraps the OS filesystem with injectable failures.
package fstest

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/raoulx24/log-archiver/internal/fs"
)

// Faulty delegates to the OS filesystem unless a failure is registered for
// the operation and the file's base name.
type Faulty struct {
	fs.OSFS

	mu       sync.Mutex
	removes  map[string]error
	links    map[string]error
	readDirs map[string]error
	calls    map[string]int
}

func New() *Faulty {
	return &Faulty{
		removes:  map[string]error{},
		links:    map[string]error{},
		readDirs: map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *Faulty) FailRemove(name string, err error) { f.set(f.removes, name, err) }
func (f *Faulty) FailLink(name string, err error)   { f.set(f.links, name, err) }
func (f *Faulty) FailReadDir(dir string, err error) { f.set(f.readDirs, dir, err) }

// Calls returns how often op ("remove", "link", "readdir") was invoked.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) set(m map[string]error, key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m[key] = err
}

func (f *Faulty) lookup(op string, m map[string]error, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return m[key]
}

func (f *Faulty) ReadDir(dir string) ([]string, error) {
	if err := f.lookup("readdir", f.readDirs, dir); err != nil {
		return nil, err
	}
	return f.OSFS.ReadDir(dir)
}

func (f *Faulty) Remove(ctx context.Context, path string) error {
	if err := f.lookup("remove", f.removes, filepath.Base(path)); err != nil {
		return err
	}
	return f.OSFS.Remove(ctx, path)
}

func (f *Faulty) Link(oldPath, newPath string) error {
	if err := f.lookup("link", f.links, filepath.Base(oldPath)); err != nil {
		return err
	}
	return f.OSFS.Link(oldPath, newPath)
}
