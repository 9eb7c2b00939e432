package archive

import (
	"regexp"
	"sort"

	"github.com/samber/lo"

	"github.com/raoulx24/log-archiver/internal/fs"
)

// Scan lists the regular files in dir whose names match pattern, sorted
// ascending. Because names are fixed width this is oldest first.
//
// A missing or unreadable directory yields an empty listing and an error
// wrapping fs.ErrDirUnavailable.
func Scan(fsys fs.FS, dir string, pattern *regexp.Regexp) ([]string, error) {
	names, err := fsys.ReadDir(dir)
	if err != nil {
		return []string{}, err
	}

	matched := lo.Filter(names, func(name string, _ int) bool {
		return pattern.MatchString(name)
	})
	sort.Strings(matched)
	return matched, nil
}
