// Package fs defines the filesystem abstraction used by log-archiver.
// It provides the FS interface and the FileInfo type shared across the system.
package fs

import (
	"context"
	"time"
)

type FileInfo struct {
	Path  string
	Size  int64
	MTime time.Time
	Inode uint64
	IsDir bool
}

type FS interface {
	// ReadDir returns the names of the regular files in dir.
	ReadDir(dir string) ([]string, error)
	Stat(path string) (FileInfo, error)
	Exists(path string) (bool, error)
	Remove(ctx context.Context, path string) error
	// Link publishes oldPath under newPath and fails if newPath exists.
	// oldPath is left in place. Without hard link support it copies.
	Link(oldPath, newPath string) error
	MkdirAll(path string) error
}
