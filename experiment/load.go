package experiment

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/logging"
)

var loadLog = logging.New("loader")

// FromPath reconstructs a Trial or Series from a previously persisted
// metadata document. path may be an output directory or the cordage.json
// file inside it. If the directory was moved since persistence, the
// recorded output directory is corrected to the actual location (the
// identifier is left untouched) and a notice is logged.
func FromPath(path string, global *config.GlobalConfig) (Experiment, error) {
	metaPath := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		metaPath = filepath.Join(path, MetadataFileName)
	}

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithDetails(errors.EExperimentNotFound,
				fmt.Sprintf("no %s at %s", MetadataFileName, path), err,
				map[string]string{"path": path})
		}
		return nil, errors.WrapWithDetails(errors.EMetadataCorrupt,
			fmt.Sprintf("could not read %s", metaPath), err,
			map[string]string{"path": metaPath})
	}

	meta, err := DeserializeMetadata(raw)
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EMetadataCorrupt,
			fmt.Sprintf("could not parse %s", metaPath), err,
			map[string]string{"path": metaPath})
	}

	actualDir, err := filepath.Abs(filepath.Dir(metaPath))
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "could not resolve experiment directory", err)
	}
	if recorded, _ := filepath.Abs(meta.OutputDir); recorded != actualDir {
		loadLog.Info("output directory moved since persistence, correcting",
			"recorded", meta.OutputDir, "actual", actualDir)
		meta.OutputDir = actualDir
	}

	ann := loadAnnotations(actualDir)

	if global == nil {
		global = config.Default()
	}

	if meta.IsSeries() {
		return loadSeries(meta, ann, actualDir, global)
	}
	return loadTrial(meta, ann, global), nil
}

func loadAnnotations(dir string) *Annotations {
	raw, err := os.ReadFile(filepath.Join(dir, AnnotationsFileName))
	if err != nil {
		return &Annotations{}
	}
	ann, err := DeserializeAnnotations(raw)
	if err != nil {
		loadLog.Warn("could not parse annotations, ignoring", "dir", dir, "err", err)
		return &Annotations{}
	}
	return ann
}

func loadTrial(meta *Metadata, ann *Annotations, global *config.GlobalConfig) *Trial {
	return &Trial{
		base: base{
			meta:   meta,
			ann:    ann,
			global: global,
			log:    logging.New("trial"),
		},
		Config: meta.Configuration,
	}
}

// loadSeries rebuilds a Series and its child trials. Children that were
// persisted are loaded from their own subdirectories; children that never
// ran are re-materialized from the spec.
func loadSeries(meta *Metadata, ann *Annotations, dir string, global *config.GlobalConfig) (*Series, error) {
	baseConfig, _ := meta.Configuration[baseConfigurationKey].(map[string]any)

	var order []string
	if rawOrder, ok := meta.Configuration[seriesAxisOrderKey].([]any); ok {
		for _, e := range rawOrder {
			if s, ok := e.(string); ok {
				order = append(order, s)
			}
		}
	}

	spec, err := SpecFromValue(meta.Configuration[seriesSpecKey], order)
	if err != nil {
		return nil, err
	}

	skip := 0
	switch v := meta.Configuration[seriesSkipKey].(type) {
	case float64:
		skip = int(v)
	case int:
		skip = v
	}

	s, err := NewSeries(SeriesParams{
		Function:   meta.Function,
		BaseConfig: baseConfig,
		Spec:       spec,
		Skip:       skip,
		Global:     global,
	})
	if err != nil {
		return nil, err
	}

	// adopt the persisted record over the freshly constructed one
	s.meta = meta
	s.ann = ann
	s.assignChildIdentity()

	children := childDirsByIndex(dir)
	for i := range s.trials {
		childDir, ok := children[i+1]
		if !ok {
			continue
		}
		child, err := FromPath(childDir, global)
		if err != nil {
			loadLog.Warn("could not load series child", "dir", childDir, "err", err)
			continue
		}
		if trial, ok := child.(*Trial); ok {
			s.trials[i] = trial
		}
	}

	return s, nil
}

// childDirsByIndex finds the series' persisted children among the
// immediate subdirectories, keyed by their recorded trial_index. Matching
// on metadata rather than on the padded directory name means a renamed
// child directory still loads. A child persisted outside the series
// directory entirely (possible under an output directory format that does
// not nest by identifier) is not found here and stays re-materialized as
// pending.
func childDirsByIndex(dir string) map[int]string {
	found := make(map[int]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return found
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		childDir := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(filepath.Join(childDir, MetadataFileName))
		if err != nil {
			continue
		}
		childMeta, err := DeserializeMetadata(raw)
		if err != nil {
			continue
		}
		index := intInfo(childMeta, "trial_index")
		if index < 1 {
			continue
		}
		// ReadDir is sorted, so the first match per index is stable
		if _, taken := found[index]; !taken {
			found[index] = childDir
		}
	}
	return found
}

func intInfo(m *Metadata, key string) int {
	v, ok := m.Info(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// AllFromPath walks root recursively for persisted experiments, sorted by
// output directory path. Once a directory yields an experiment, deeper
// metadata under it is skipped: children of a series are not listed
// independently at the top level.
func AllFromPath(root string, global *config.GlobalConfig) ([]Experiment, error) {
	var found []Experiment

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		// the root itself never yields: discovery lists experiments
		// strictly below it, so listing a series directory lists its
		// trials, not the series itself
		if filepath.Clean(path) == filepath.Clean(root) {
			return nil
		}
		if _, statErr := os.Stat(filepath.Join(path, MetadataFileName)); statErr != nil {
			return nil
		}

		exp, loadErr := FromPath(path, global)
		if loadErr != nil {
			loadLog.Warn("skipping unreadable experiment", "dir", path, "err", loadErr)
		} else {
			found = append(found, exp)
		}
		return fs.SkipDir
	})
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EInternal,
			fmt.Sprintf("could not walk %s", root), err,
			map[string]string{"path": root})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].OutputDir() < found[j].OutputDir()
	})
	return found, nil
}
