package experiment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// fileTreeSnapshot builds a bounded JSON-able tree of the experiment's
// output directory: directories become mappings, files become their size
// in bytes. Depth and entry count are limited so snapshots of large
// result directories stay small.
func fileTreeSnapshot(path string, level, maxLevel, maxFiles int) any {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	if info.IsDir() {
		if level > maxLevel {
			return fmt.Sprintf("Maximum depth of %d exceeded.", maxLevel)
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		tree := make(map[string]any, len(entries))
		for i, entry := range entries {
			if i == maxFiles {
				return fmt.Sprintf("Maximum number of files (%d) exceeded.", maxFiles)
			}
			tree[entry.Name()] = fileTreeSnapshot(filepath.Join(path, entry.Name()), level+1, maxLevel, maxFiles)
		}
		return tree
	}

	return info.Size()
}

// saveFileTree mirrors a snapshot of the trial's output directory to the
// central store. Best effort, like all central writes.
func (t *Trial) saveFileTree() {
	if t.central == nil || t.meta.OutputDir == "" {
		return
	}
	tree := fileTreeSnapshot(t.meta.OutputDir, 0, t.global.FileTree.MaxLevel, t.global.FileTree.MaxFiles)
	doc, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		t.log.Warn("could not serialize file tree", "experiment_id", t.ID(), "err", err)
		return
	}
	t.central.Mirror(t.meta.OutputDir, "files.json", doc)
}
