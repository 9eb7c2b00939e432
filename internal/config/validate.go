package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/raoulx24/log-archiver/internal/compress"
	"github.com/raoulx24/log-archiver/internal/naming"
	"github.com/raoulx24/log-archiver/internal/rotate"
	"github.com/raoulx24/log-archiver/internal/schedule"
)

var watchModes = map[string]bool{"": true, "off": true, "auto": true, "poll": true, "fsnotify": true}

var logFormats = map[string]bool{"": true, "auto": true, "json": true, "console": true}

// Validate reports every configuration error at once.
func (c *Config) Validate() error {
	var err error

	a := c.Archive
	if a.Directory == "" {
		err = multierr.Append(err, errors.New("archive.directory is empty"))
	}
	if _, nerr := naming.New(a.BaseName, a.CompressionSuffix); nerr != nil {
		err = multierr.Append(err, fmt.Errorf("archive: %w", nerr))
	}
	if a.CompressionLevel < 0 || a.CompressionLevel > 9 {
		err = multierr.Append(err, fmt.Errorf("archive.compressionLevel %d out of range 0-9", a.CompressionLevel))
	}
	if _, serr := schedule.Parse(a.Schedule); serr != nil {
		err = multierr.Append(err, fmt.Errorf("archive.schedule: %w", serr))
	}

	if _, rerr := rotate.ParseWhen(c.Rotate.When); rerr != nil {
		err = multierr.Append(err, fmt.Errorf("rotate.when: %w", rerr))
	}
	if c.Rotate.MaxSize < 0 {
		err = multierr.Append(err, fmt.Errorf("rotate.maxSize %d is negative", c.Rotate.MaxSize))
	}

	if !watchModes[c.Watch.Mode] {
		err = multierr.Append(err, fmt.Errorf("watch.mode %q is not one of off, auto, poll, fsnotify", c.Watch.Mode))
	}
	if c.Watch.Mode != "" && c.Watch.Mode != "off" && c.Watch.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("watch.pollInterval must be positive in %s mode", c.Watch.Mode))
	}
	if c.Watch.DebounceWindow < 0 {
		err = multierr.Append(err, errors.New("watch.debounceWindow is negative"))
	}

	if !logFormats[c.Logging.Format] {
		err = multierr.Append(err, fmt.Errorf("logging.format %q is not one of auto, json, console", c.Logging.Format))
	}

	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Warnings lists settings that are valid but degrade behavior.
func (c *Config) Warnings() []string {
	var out []string
	comp := compress.New(c.Archive.CompressionSuffix, c.Archive.CompressionLevel, nil)
	if !comp.Available() {
		out = append(out, fmt.Sprintf("rotated logs will not be compressed: %s", comp.Reason()))
	}
	if c.Archive.RawRetention > 0 && c.Archive.ArchiveRetention > 0 &&
		c.Archive.ArchiveRetention < c.Archive.RawRetention {
		out = append(out, fmt.Sprintf("archiveRetention %d is below rawRetention %d; pruned archives are recreated from surviving rotated logs",
			c.Archive.ArchiveRetention, c.Archive.RawRetention))
	}
	return out
}
