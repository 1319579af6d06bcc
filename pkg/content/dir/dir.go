// Package dir provides a content.Source over a directory of story section
// files. Files are ordered by name, so authors number their sections
// (001-arrival.md, 002-the-bridge.md, ...). Only regular files with known
// text extensions are scanned; everything else in the directory is ignored.
package dir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/papercomputeco/loom/pkg/content"
)

var textExtensions = map[string]bool{
	".md":  true,
	".txt": true,
}

// Source implements content.Source over one directory.
type Source struct {
	dir string
}

// NewSource creates a Source for dir. The directory must exist.
func NewSource(dir string) (*Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("story directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("story directory %s is not a directory", dir)
	}

	return &Source{dir: dir}, nil
}

// Dir returns the directory this source reads.
func (s *Source) Dir() string {
	return s.dir
}

// SectionIDs returns the section file names in document order.
func (s *Source) SectionIDs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing story directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !isSectionFile(entry.Name()) {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)

	return ids, nil
}

// Scan returns every section with its text, in document order.
func (s *Source) Scan(ctx context.Context) ([]content.Section, error) {
	ids, err := s.SectionIDs(ctx)
	if err != nil {
		return nil, err
	}

	sections := make([]content.Section, 0, len(ids))
	for _, id := range ids {
		data, err := os.ReadFile(filepath.Join(s.dir, id))
		if err != nil {
			return nil, fmt.Errorf("reading section %s: %w", id, err)
		}
		sections = append(sections, content.Section{ID: id, Text: string(data)})
	}

	return sections, nil
}

func isSectionFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}

	return textExtensions[strings.ToLower(filepath.Ext(name))]
}
