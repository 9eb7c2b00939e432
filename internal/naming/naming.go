// Package naming maps (base name, timestamp) pairs to the on-disk names of
// rotated logs and their archives, and back.
//
// Names are built from fixed-width, zero-padded fields so that sorting them
// as plain strings yields chronological order:
//
//	app_240101.log          date granularity
//	app_240101_134500.log   date+time granularity
//	app_240101_134500.zip   archive of the above
//
// For the same day a date-only name sorts before every date+time name.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// RawExt is the extension of active and rotated log files.
const RawExt = ".log"

const (
	dateLayout     = "060102"
	dateTimeLayout = "060102_150405"
)

// Kind tells rotated logs and archives apart.
type Kind int

const (
	Raw Kind = iota
	Archive
)

func (k Kind) String() string {
	if k == Archive {
		return "archive"
	}
	return "raw"
}

// Granularity is the resolution of the timestamp embedded in a name.
type Granularity int

const (
	Date Granularity = iota
	DateTime
)

func (g Granularity) layout() string {
	if g == DateTime {
		return dateTimeLayout
	}
	return dateLayout
}

var ErrNoMatch = errors.New("name does not match naming scheme")

// Name is a parsed file name.
type Name struct {
	Base        string
	Stamp       time.Time
	Granularity Granularity
	Kind        Kind
}

// Format builds the file name for base at t. suffix is only used for archives.
func Format(base string, t time.Time, g Granularity, k Kind, suffix string) string {
	ext := RawExt
	if k == Archive {
		ext = suffix
	}
	return base + "_" + t.Format(g.layout()) + ext
}

// ValidateBase checks that base can be used as a file name stem.
func ValidateBase(base string) error {
	if base == "" {
		return errors.New("base name is empty")
	}
	if strings.ContainsAny(base, `/\`) {
		return fmt.Errorf("base name %q contains a path separator", base)
	}
	return nil
}

// Scheme holds the compiled patterns for one log stream. Build it once per
// engine; it is safe for concurrent use.
type Scheme struct {
	base    string
	suffix  string
	raw     *regexp.Regexp
	archive *regexp.Regexp
}

// New compiles the patterns for base and the archive suffix.
func New(base, suffix string) (*Scheme, error) {
	if err := ValidateBase(base); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(suffix, ".") || len(suffix) < 2 {
		return nil, fmt.Errorf("compression suffix %q must start with '.'", suffix)
	}
	if strings.EqualFold(suffix, RawExt) {
		return nil, fmt.Errorf("compression suffix %q collides with raw log extension", suffix)
	}

	// Base and suffix are user input and must be matched literally.
	stem := "^" + regexp.QuoteMeta(base) + `_(\d{6})(?:_(\d{6}))?`
	return &Scheme{
		base:    base,
		suffix:  suffix,
		raw:     regexp.MustCompile(stem + regexp.QuoteMeta(RawExt) + "$"),
		archive: regexp.MustCompile(stem + regexp.QuoteMeta(suffix) + "$"),
	}, nil
}

func (s *Scheme) Base() string   { return s.base }
func (s *Scheme) Suffix() string { return s.suffix }

// ActiveName is the name of the file currently receiving writes. It never
// matches the raw pattern.
func (s *Scheme) ActiveName() string { return s.base + RawExt }

// Pattern returns the compiled pattern for k.
func (s *Scheme) Pattern(k Kind) *regexp.Regexp {
	if k == Archive {
		return s.archive
	}
	return s.raw
}

// Matches reports whether name belongs to this stream and kind.
func (s *Scheme) Matches(name string, k Kind) bool {
	return s.Pattern(k).MatchString(name)
}

// Format builds the name of a file of this stream.
func (s *Scheme) Format(t time.Time, g Granularity, k Kind) string {
	return Format(s.base, t, g, k, s.suffix)
}

// ArchiveFor returns the archive name paired with a raw name.
func (s *Scheme) ArchiveFor(raw string) string {
	return strings.TrimSuffix(filepath.Base(raw), RawExt) + s.suffix
}

// Parse decodes a raw or archive name of this stream.
func (s *Scheme) Parse(name string) (Name, error) {
	kind := Raw
	m := s.raw.FindStringSubmatch(name)
	if m == nil {
		kind = Archive
		m = s.archive.FindStringSubmatch(name)
	}
	if m == nil {
		return Name{}, fmt.Errorf("%s: %w", name, ErrNoMatch)
	}

	g, layout, value := Date, dateLayout, m[1]
	if m[2] != "" {
		g, layout, value = DateTime, dateTimeLayout, m[1]+"_"+m[2]
	}
	stamp, err := time.ParseInLocation(layout, value, time.Local)
	if err != nil {
		return Name{}, fmt.Errorf("%s: invalid timestamp: %w", name, err)
	}
	// two-digit years are always 20YY; time.Parse puts 69-99 in the 1900s
	if stamp.Year() < 2000 {
		stamp = stamp.AddDate(100, 0, 0)
	}

	return Name{Base: s.base, Stamp: stamp, Granularity: g, Kind: kind}, nil
}
