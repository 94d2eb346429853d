package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultSuffix marks candidate files.
const DefaultSuffix = ".geojson"

// Source lists and reads input files by name.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads files ending in Suffix from a single directory. Listing
// order is the order os.ReadDir returns, which is sorted by name.
// Subdirectories are not descended into.
type DirSource struct {
	Dir    string
	Suffix string
}

// List returns the names of the candidate files in Dir.
func (s DirSource) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	suffix := s.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: list %s", s.Dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Read returns the content of the named file.
func (s DirSource) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read %s", name)
	}
	return data, nil
}
