package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/store"
	"github.com/plonerma/cordage/internal/tmpl"
)

// Experiment is the common surface of Trials and Series: identity, status,
// annotations, and the persisted location.
type Experiment interface {
	ID() string
	Status() Status
	OutputDir() string
	Metadata() *Metadata
	Annotations() *Annotations
	HasStatus(statuses ...Status) bool
	HasTag(tags ...string) bool
}

// base holds the lifecycle state shared by Trial and Series.
type base struct {
	meta    *Metadata
	ann     *Annotations
	global  *config.GlobalConfig
	central *store.Central
	log     log15.Logger

	// pendingID is an identifier preassigned by a parent Series. It
	// becomes the metadata identifier at Start; until then the record
	// keeps the pending-state invariant (identifier unset).
	pendingID string
}

// ID returns the allocated identifier, empty until started.
func (b *base) ID() string { return b.meta.ExperimentID }

// Status returns the current lifecycle status.
func (b *base) Status() Status { return b.meta.Status }

// OutputDir returns the materialized output directory, empty until started.
func (b *base) OutputDir() string { return b.meta.OutputDir }

// Metadata exposes the underlying lifecycle record.
func (b *base) Metadata() *Metadata { return b.meta }

// Annotations exposes the tags/comment sidecar record.
func (b *base) Annotations() *Annotations { return b.ann }

// AddTag records an explicit tag; adding an existing tag is a no-op. Tags
// are persisted at the next Start/End or an explicit Flush.
func (b *base) AddTag(tag string) { b.ann.AddTag(tag) }

// SetComment replaces the free-text comment.
func (b *base) SetComment(comment string) { b.ann.Comment = comment }

// Comment returns the free-text comment.
func (b *base) Comment() string { return b.ann.Comment }

// HasStatus reports whether the current status is among the given ones.
// An empty argument list matches everything.
func (b *base) HasStatus(statuses ...Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if b.meta.Status == s {
			return true
		}
	}
	return false
}

// HasTag reports whether any of the given tags is present (explicit or
// comment-derived). An empty argument list matches everything.
func (b *base) HasTag(tags ...string) bool {
	return b.ann.HasTag(tags...)
}

// outputDirForID computes the output directory a given identifier would
// materialize to, without touching the filesystem.
func (b *base) outputDirForID(id string, startTime time.Time) (string, error) {
	rel, err := formatOutputDir(b.global.OutputDirFormat, b.meta.Function, id, startTime)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.global.BaseOutputDir, rel), nil
}

// start allocates the identifier, materializes the output directory
// exclusively, and moves the record to running. Precondition: pending.
func (b *base) start() error {
	if b.meta.Status != StatusPending {
		return errors.NewWithDetails(errors.EIllegalState,
			fmt.Sprintf("cannot start an experiment in status %q", b.meta.Status),
			map[string]string{"experiment_id": b.meta.ExperimentID, "status": string(b.meta.Status)})
	}

	now := time.Now()
	b.meta.StartTime = &now
	b.meta.Status = StatusRunning

	id := b.pendingID
	if id == "" {
		ideal, err := FormatID(b.global.ExperimentIDFormat, b.meta.Function, now)
		if err != nil {
			return err
		}
		id = Disambiguate(ideal, func(candidate string) bool {
			dir, err := b.outputDirForID(candidate, now)
			if err != nil {
				return false
			}
			_, statErr := os.Stat(dir)
			return statErr == nil
		})
	}

	dir, err := b.outputDirForID(id, now)
	if err != nil {
		return err
	}
	if err := materializeDir(dir); err != nil {
		return err
	}

	b.meta.ExperimentID = id
	b.meta.OutputDir = dir

	return b.persist()
}

// end moves the record to a terminal status and persists it.
func (b *base) end(status Status) error {
	if b.meta.Status.IsTerminal() {
		return errors.NewWithDetails(errors.EIllegalState,
			fmt.Sprintf("cannot end an experiment in terminal status %q", b.meta.Status),
			map[string]string{"experiment_id": b.meta.ExperimentID, "status": string(b.meta.Status)})
	}
	if b.meta.StartTime == nil {
		return errors.New(errors.EIllegalState, "cannot end an experiment that was never started")
	}

	now := time.Now()
	b.meta.EndTime = &now
	b.meta.Status = status

	return b.persist()
}

// persist writes cordage.json and annotations.json to the output
// directory, then duplicates both to the central mirror and the central
// index. Central failures are logged, never fatal.
func (b *base) persist() error {
	if b.meta.OutputDir == "" {
		return errors.New(errors.EIllegalState, "cannot persist an experiment without an output directory")
	}

	mdDoc, err := b.meta.Serialize()
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "could not serialize metadata", err,
			map[string]string{"experiment_id": b.meta.ExperimentID})
	}
	annDoc, err := b.ann.Serialize()
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "could not serialize annotations", err,
			map[string]string{"experiment_id": b.meta.ExperimentID})
	}

	if err := os.WriteFile(filepath.Join(b.meta.OutputDir, MetadataFileName), mdDoc, 0o644); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "could not write metadata", err,
			map[string]string{"experiment_id": b.meta.ExperimentID, "output_dir": b.meta.OutputDir})
	}
	if err := os.WriteFile(filepath.Join(b.meta.OutputDir, AnnotationsFileName), annDoc, 0o644); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "could not write annotations", err,
			map[string]string{"experiment_id": b.meta.ExperimentID, "output_dir": b.meta.OutputDir})
	}

	if b.central != nil {
		b.central.Mirror(b.meta.OutputDir, store.CentralMetadataFile, mdDoc)
		b.central.Mirror(b.meta.OutputDir, store.CentralAnnotationsFile, annDoc)
		b.central.Index(store.IndexRecord{
			ExperimentID: b.meta.ExperimentID,
			Function:     b.meta.Function,
			Status:       string(b.meta.Status),
			StartTime:    b.meta.StartTime,
			EndTime:      b.meta.EndTime,
			OutputDir:    b.meta.OutputDir,
			ParentID:     infoString(b.meta, "parent_id"),
		})
	}
	return nil
}

// Flush persists the current metadata and annotations outside the regular
// Start/End points (e.g. after tag mutation). Fails with E_ILLEGAL_STATE
// before Start, when no output directory exists yet.
func (b *base) Flush() error {
	return b.persist()
}

// materializeDir creates dir exclusively: parents as needed, the leaf
// itself must not exist. A race between the identifier existence check and
// this mkdir surfaces as E_DIR_EXISTS rather than silent reuse.
func materializeDir(dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "could not create parent directories", err,
			map[string]string{"output_dir": dir})
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return errors.WrapWithDetails(errors.EDirExists,
				fmt.Sprintf("output directory %s already exists", dir), err,
				map[string]string{"output_dir": dir})
		}
		return errors.WrapWithDetails(errors.EPersistFailed, "could not create output directory", err,
			map[string]string{"output_dir": dir})
	}
	return nil
}

// formatOutputDir renders the output directory format template.
func formatOutputDir(format, function, id string, startTime time.Time) (string, error) {
	return tmpl.Format(format, map[string]any{
		"function":      function,
		"experiment_id": id,
		"start_time":    startTime,
	})
}

func infoString(m *Metadata, key string) string {
	if v, ok := m.Info(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
