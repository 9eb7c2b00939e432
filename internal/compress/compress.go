// Package compress turns one rotated log file into one archive file.
//
// Support for a suffix is decided once, when the Compressor is built. A
// suffix Go cannot write (.7z, .rar) or does not know yields a Compressor
// whose Available method reports false; callers skip compression instead of
// failing per file.
package compress

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/mholt/archives"

	"github.com/raoulx24/log-archiver/internal/fs"
)

var (
	ErrUnavailable   = errors.New("compression unavailable")
	ErrExists        = errors.New("archive already exists")
	ErrSourceChanged = errors.New("source changed during compression")
)

// Compressor is the compression capability handed to the archival engine.
type Compressor interface {
	// Available reports whether Compress can produce archives at all.
	Available() bool
	// Reason explains why the capability is unavailable.
	Reason() string
	// Compress writes dst as an archive holding src under its base name.
	// It never overwrites dst.
	Compress(ctx context.Context, src, dst string) error
}

// New selects an archive writer for suffix. level is 0 (store) to 9 (max).
func New(suffix string, level int, filesystem fs.FS) Compressor {
	if filesystem == nil {
		filesystem = fs.New()
	}
	ar, err := archiverFor(strings.ToLower(suffix), level)
	if err != nil {
		return unavailable{reason: err.Error()}
	}
	return &fileCompressor{archiver: ar, fs: filesystem}
}

// Unavailable returns a Compressor that never compresses.
func Unavailable(reason string) Compressor {
	return unavailable{reason: reason}
}

// Supported lists the suffixes New can write.
func Supported() []string {
	return []string{".zip", ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".tar.zst"}
}

func archiverFor(suffix string, level int) (archives.Archiver, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("compression level %d out of range 0-9", level)
	}

	switch suffix {
	case ".zip":
		method := uint16(zip.Deflate)
		if level == 0 {
			method = zip.Store
		}
		return archives.Zip{Compression: method}, nil
	case ".tar":
		return archives.Tar{}, nil
	case ".tar.gz", ".tgz":
		return archives.CompressedArchive{
			Archival:    archives.Tar{},
			Compression: archives.Gz{CompressionLevel: level},
		}, nil
	case ".tar.bz2":
		return archives.CompressedArchive{
			Archival:    archives.Tar{},
			Compression: archives.Bz2{CompressionLevel: level},
		}, nil
	case ".tar.xz":
		return archives.CompressedArchive{
			Archival:    archives.Tar{},
			Compression: archives.Xz{},
		}, nil
	case ".tar.zst":
		return archives.CompressedArchive{
			Archival: archives.Tar{},
			Compression: archives.Zstd{
				EncoderOptions: []zstd.EOption{zstd.WithEncoderLevel(zstdLevel(level))},
			},
		}, nil
	case ".7z", ".rar":
		return nil, fmt.Errorf("no %s writer is available; supported suffixes: %s",
			suffix, strings.Join(Supported(), ", "))
	default:
		return nil, fmt.Errorf("unknown compression suffix %q; supported suffixes: %s",
			suffix, strings.Join(Supported(), ", "))
	}
}

// zstdLevel maps 0-9 onto the zstd 1-22 scale.
func zstdLevel(level int) zstd.EncoderLevel {
	if level == 0 {
		return zstd.SpeedFastest
	}
	return zstd.EncoderLevelFromZstd(level * 22 / 9)
}

type unavailable struct {
	reason string
}

func (u unavailable) Available() bool { return false }
func (u unavailable) Reason() string  { return u.reason }

func (u unavailable) Compress(context.Context, string, string) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, u.reason)
}

type fileCompressor struct {
	archiver archives.Archiver
	fs       fs.FS
}

func (c *fileCompressor) Available() bool { return true }
func (c *fileCompressor) Reason() string  { return "" }

func (c *fileCompressor) Compress(ctx context.Context, src, dst string) error {
	if ok, err := c.fs.Exists(dst); err != nil {
		return fmt.Errorf("checking %s: %w", dst, err)
	} else if ok {
		return ErrExists
	}

	orig, err := c.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+"."+uuid.NewString()+".tmp")
	defer func() {
		_ = os.Remove(tmp)
	}()

	if err := c.writeArchive(ctx, src, tmp); err != nil {
		return err
	}

	now, err := c.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if fs.SourceChanged(orig, now) {
		return ErrSourceChanged
	}

	if err := c.fs.Link(tmp, dst); err != nil {
		if fs.IsExist(err) {
			return ErrExists
		}
		return fmt.Errorf("publishing %s: %w", dst, err)
	}
	return nil
}

func (c *fileCompressor) writeArchive(ctx context.Context, src, tmp string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp archive: %w", err)
	}

	files := []archives.FileInfo{{
		FileInfo:      info,
		NameInArchive: filepath.Base(src),
		Open: func() (iofs.File, error) {
			return os.Open(src)
		},
	}}

	if err := c.archiver.Archive(ctx, out, files); err != nil {
		_ = out.Close()
		return fmt.Errorf("archiving %s: %w", filepath.Base(src), err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("syncing temp archive: %w", err)
	}
	return out.Close()
}
