package fs

import (
	"errors"
	iofs "io/fs"
	"syscall"
)

// ErrDirUnavailable wraps failures to list a log directory. Callers treat it
// as recoverable: the directory may not exist yet or may be cleaned up externally.
var ErrDirUnavailable = errors.New("directory unavailable")

// IsNotExist reports whether err means the file is already gone.
func IsNotExist(err error) bool {
	return errors.Is(err, iofs.ErrNotExist)
}

// IsExist reports whether err means the target already exists.
func IsExist(err error) bool {
	return errors.Is(err, iofs.ErrExist)
}

// defines helpers for detecting transient filesystem errors.
// These determine whether an operation should retry or fail immediately.

func isTransient(err error) bool {
	if errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	// extend here for network filesystem specific errors if needed
	return false
}
