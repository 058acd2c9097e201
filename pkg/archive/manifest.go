package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

// DefaultMaxDepth is the number of directory levels BuildManifest descends:
// the root, its children and its grandchildren.
const DefaultMaxDepth = 3

var ErrNotDirectory = errors.New("not a directory")

// Manifest is the ordered list of files an archive will contain.
type Manifest []models.ManifestEntry

// Names returns the archive entry names in manifest order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for _, e := range m {
		names = append(names, e.Name)
	}
	return names
}

type pendingDir struct {
	path  string
	level int
}

// EffectiveMaxDepth resolves a configured depth: zero selects DefaultMaxDepth
// and a negative value means no limit.
func EffectiveMaxDepth(maxDepth int) int {
	switch {
	case maxDepth == 0:
		return DefaultMaxDepth
	case maxDepth < 0:
		return -1
	}
	return maxDepth
}

// BuildManifest walks root breadth-first and collects every regular file found
// within maxDepth directory levels. Files directly inside root are level 1.
// Deeper files are left out. A maxDepth of zero means DefaultMaxDepth and a
// negative one means no limit.
//
// Entry names are relative to the parent of root, so an archive built from
// /tmp/proj holds proj/a.txt, proj/sub/b.txt and so on. Symlinked files are
// followed; symlinked directories are not.
func BuildManifest(root string, maxDepth int) (Manifest, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotDirectory)
	}
	base := filepath.Dir(abs)
	maxDepth = EffectiveMaxDepth(maxDepth)

	var manifest Manifest
	queue := []pendingDir{{path: abs, level: 1}}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", dir.path, err)
		}
		for _, entry := range entries {
			full := filepath.Join(dir.path, entry.Name())

			if entry.IsDir() {
				if maxDepth < 0 || dir.level < maxDepth {
					queue = append(queue, pendingDir{path: full, level: dir.level + 1})
				}
				continue
			}

			if entry.Type()&os.ModeSymlink != 0 {
				target, err := os.Stat(full)
				if err != nil || !target.Mode().IsRegular() {
					continue
				}
			} else if !entry.Type().IsRegular() {
				continue
			}

			rel, err := filepath.Rel(base, full)
			if err != nil {
				return nil, fmt.Errorf("failed to compute archive name for %s: %w", full, err)
			}
			manifest = append(manifest, models.ManifestEntry{
				SourcePath: full,
				Name:       filepath.ToSlash(rel),
			})
		}
	}
	return manifest, nil
}
