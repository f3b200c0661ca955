// Package store implements the optional central metadata mirror: a second
// write location aggregating metadata across all experiments, plus a
// sqlite index over them. Central writes are best effort; a failure is
// logged and never rolls back or invalidates the primary write.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/plonerma/cordage/internal/logging"
)

// File names inside the central mirror, per experiment directory.
const (
	CentralMetadataFile    = "metadata.json"
	CentralAnnotationsFile = "annotations.json"
)

// IndexFileName is the sqlite index at the central root.
const IndexFileName = "index.db"

// Central mirrors metadata documents under a central root and maintains
// the experiment index. A nil *Central is valid and does nothing, so
// callers need no enabled-check.
type Central struct {
	root          string
	baseOutputDir string
	log           log15.Logger

	db     *sql.DB
	dbOnce bool
}

// OpenCentral returns a Central for the given configuration, or nil when
// the mirror is disabled.
func OpenCentral(use bool, root, baseOutputDir string) *Central {
	if !use || root == "" {
		return nil
	}
	return &Central{
		root:          root,
		baseOutputDir: baseOutputDir,
		log:           logging.New("central"),
	}
}

// relPath computes an experiment's position inside the central store: its
// output directory relative to the base output directory.
func (c *Central) relPath(outputDir string) (string, bool) {
	rel, err := filepath.Rel(c.baseOutputDir, outputDir)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", false
	}
	return rel, true
}

// Mirror duplicates a document to <central>/<rel path>/<name>, creating
// parent directories as needed. Failures are logged, never returned.
func (c *Central) Mirror(outputDir, name string, doc []byte) {
	if c == nil {
		return
	}
	rel, ok := c.relPath(outputDir)
	if !ok {
		c.log.Warn("output directory is outside the base output directory, not mirroring",
			"output_dir", outputDir, "base", c.baseOutputDir)
		return
	}

	dir := filepath.Join(c.root, rel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.log.Warn("could not create central metadata directory", "dir", dir, "err", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), doc, 0o644); err != nil {
		c.log.Warn("could not write central metadata", "dir", dir, "file", name, "err", err)
	}
}

// IndexRecord is one row of the central experiment index.
type IndexRecord struct {
	ExperimentID string
	Function     string
	Status       string
	StartTime    *time.Time
	EndTime      *time.Time
	OutputDir    string
	ParentID     string
}

// Index upserts an experiment into the sqlite index, keyed by output
// directory. Best effort like Mirror.
func (c *Central) Index(rec IndexRecord) {
	if c == nil {
		return
	}
	db, err := c.database()
	if err != nil {
		c.log.Warn("central index unavailable", "err", err)
		return
	}

	_, err = db.Exec(`
		INSERT INTO experiments (id, experiment_id, function, status, start_time, end_time, output_dir, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(output_dir) DO UPDATE SET
			experiment_id = excluded.experiment_id,
			status        = excluded.status,
			start_time    = excluded.start_time,
			end_time      = excluded.end_time,
			parent_id     = excluded.parent_id`,
		uuid.NewString(), rec.ExperimentID, rec.Function, rec.Status,
		timeText(rec.StartTime), timeText(rec.EndTime), rec.OutputDir, rec.ParentID)
	if err != nil {
		c.log.Warn("could not index experiment", "experiment_id", rec.ExperimentID, "err", err)
	}
}

// database opens the index lazily, creating the schema on first use.
func (c *Central) database() (*sql.DB, error) {
	if c.dbOnce {
		if c.db == nil {
			return nil, errIndexUnavailable
		}
		return c.db, nil
	}
	c.dbOnce = true

	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(c.root, IndexFileName))
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS experiments (
			id            TEXT PRIMARY KEY,
			experiment_id TEXT NOT NULL,
			function      TEXT NOT NULL,
			status        TEXT NOT NULL,
			start_time    TEXT,
			end_time      TEXT,
			output_dir    TEXT NOT NULL UNIQUE,
			parent_id     TEXT
		)`)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.db = db
	return db, nil
}

// Close releases the index database, if it was opened.
func (c *Central) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func timeText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

type indexError string

func (e indexError) Error() string { return string(e) }

const errIndexUnavailable indexError = "central index could not be opened"
