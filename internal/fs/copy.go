package fs

import (
	"errors"
	"io"
	"os"
)

// link publishes src under dst without replacing an existing dst. Where hard
// links are not available (some FUSE, SMB and FAT mounts) the content is
// copied into a freshly created dst instead.

var osLink = os.Link

func link(src, dst string) error {
	err := osLink(src, dst)
	if err == nil || IsExist(err) || IsNotExist(err) {
		return err
	}
	if cerr := copyExclusive(src, dst); cerr != nil {
		return errors.Join(err, cerr)
	}
	return nil
}

func copyExclusive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
