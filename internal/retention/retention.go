// Package retention keeps only the newest N files of a sorted listing.
package retention

import (
	"context"
	"path/filepath"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/raoulx24/log-archiver/internal/fs"
	"github.com/raoulx24/log-archiver/internal/logging"
)

type Pruner struct {
	fs  fs.FS
	log logging.Logger
}

func New(filesystem fs.FS, log logging.Logger) *Pruner {
	if filesystem == nil {
		filesystem = fs.New()
	}
	return &Pruner{fs: filesystem, log: log}
}

// Excess returns the names Prune would delete: all but the last max entries
// of sorted. max <= 0 keeps everything.
func Excess(sorted []string, max int) []string {
	if max <= 0 || len(sorted) <= max {
		return nil
	}
	return lo.DropRight(sorted, max)
}

// Prune deletes the oldest entries of sorted (ascending, oldest first) beyond
// max and returns the names it removed. A failed deletion is logged and the
// batch continues; a file that is already gone is not reported as deleted.
func (p *Pruner) Prune(ctx context.Context, dir string, sorted []string, max int) ([]string, error) {
	victims := Excess(sorted, max)
	if len(victims) == 0 {
		p.log.Debug("retention: within limit", "dir", dir, "count", len(sorted), "max", max)
		return nil, nil
	}

	p.log.Info("retention: removing old files", "dir", dir, "count", len(victims), "max", max)

	var (
		deleted []string
		errs    []error
	)
	for _, name := range victims {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		path := filepath.Join(dir, name)
		err := p.fs.Remove(ctx, path)
		switch {
		case err == nil:
			deleted = append(deleted, name)
			p.log.Info("retention: removed", "file", path)
		case fs.IsNotExist(err):
			p.log.Info("retention: already removed", "file", path)
		default:
			errs = append(errs, err)
			p.log.Error("retention: remove failed", "file", path, "error", err)
		}
	}

	return deleted, multierr.Combine(errs...)
}
