package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Extension is the extension every export file carries
const Extension = ".csv"

// Locator resolves a table name to an export file and opens it
type Locator interface {
	// Locate returns the first export for table. found is false, with a nil
	// error, when there is nothing to import for the table.
	Locate(ctx context.Context, table string) (path string, found bool, err error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Matches reports whether name is an export file for table
func Matches(table, name string) bool {
	return strings.HasPrefix(name, table+"-export") && strings.HasSuffix(name, Extension)
}

// DirLocator finds exports in a local directory
type DirLocator struct {
	Dir string
}

var _ Locator = &DirLocator{}

// NewDirLocator returns a locator for exports in dir
func NewDirLocator(dir string) *DirLocator {
	return &DirLocator{Dir: dir}
}

func (l *DirLocator) Locate(_ context.Context, table string) (string, bool, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return "", false, fmt.Errorf("reading import dir %s: %w", l.Dir, err)
	}
	// ReadDir returns entries sorted by filename
	for _, e := range entries {
		if e.IsDir() || !Matches(table, e.Name()) {
			continue
		}
		return filepath.Join(l.Dir, e.Name()), true, nil
	}
	return "", false, nil
}

func (l *DirLocator) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// ReadAll reads the whole export at path as UTF-8 text. A UTF-8 or UTF-16
// byte order mark is stripped and UTF-16 content is transcoded.
func ReadAll(ctx context.Context, l Locator, path string) (string, error) {
	rc, err := l.Open(ctx, path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer rc.Close()

	r := transform.NewReader(rc, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(content), nil
}

// firstMatch picks the lexically first matching name
func firstMatch(table string, names []string) (string, bool) {
	matches := make([]string, 0, 1)
	for _, n := range names {
		if Matches(table, n) {
			matches = append(matches, n)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}
