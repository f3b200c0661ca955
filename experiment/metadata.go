// Package experiment implements the series-expansion and trial-lifecycle
// engine: expanding a base configuration plus a series specification into
// concrete trials, and tracking each trial's lifecycle metadata on disk.
package experiment

import (
	"encoding/json"
	"time"

	"github.com/plonerma/cordage/internal/logging"
)

// MetadataFileName is the metadata document written into every experiment's
// output directory.
const MetadataFileName = "cordage.json"

// AnnotationsFileName is the sidecar document holding tags and comment.
const AnnotationsFileName = "annotations.json"

// Status is the lifecycle state of a Trial or Series.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusAborted  Status = "aborted"

	// StatusSkipped marks a trial excluded by series_skip: terminal-like,
	// meaning "never executed by design".
	StatusSkipped Status = "skipped"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusAborted, StatusSkipped:
		return true
	}
	return false
}

// Metadata is the lifecycle record of one Trial or Series.
//
// Invariants: status == pending implies OutputDir, ExperimentID and
// StartTime are all unset; a terminal status implies EndTime is set and
// EndTime >= StartTime.
type Metadata struct {
	Function string `json:"function"`
	Status   Status `json:"status"`

	ExperimentID string `json:"experiment_id,omitempty"`
	OutputDir    string `json:"output_dir,omitempty"`

	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Configuration is a nested configuration mapping for a Trial, or a
	// {base_configuration, series_spec, series_skip} structure for a
	// Series.
	Configuration map[string]any `json:"configuration"`

	// Result holds the value returned by the user function, if any. A
	// result that cannot be serialized degrades to null on save.
	Result any `json:"result,omitempty"`

	// AdditionalInfo holds open-ended extension fields (trial_index,
	// parent_id, captured exception, ...).
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// Keys of the series structure inside Metadata.Configuration.
const (
	baseConfigurationKey = "base_configuration"
	seriesSpecKey        = "series_spec"
	seriesSkipKey        = "series_skip"
)

var metaLog = logging.New("experiment")

// Duration is the elapsed time between start and end, computed on read.
// Zero until both timestamps are set.
func (m *Metadata) Duration() time.Duration {
	if m.StartTime == nil || m.EndTime == nil {
		return 0
	}
	return m.EndTime.Sub(*m.StartTime)
}

// SetInfo records a free-form additional_info field.
func (m *Metadata) SetInfo(key string, value any) {
	if m.AdditionalInfo == nil {
		m.AdditionalInfo = make(map[string]any)
	}
	m.AdditionalInfo[key] = value
}

// Info looks up an additional_info field.
func (m *Metadata) Info(key string) (any, bool) {
	v, ok := m.AdditionalInfo[key]
	return v, ok
}

// Serialize converts the record to a JSON document. A result value that
// fails serialization is replaced with null and a warning is emitted; this
// never aborts the rest of the save.
func (m *Metadata) Serialize() ([]byte, error) {
	shadow := *m
	if shadow.Result != nil {
		if _, err := json.Marshal(shadow.Result); err != nil {
			metaLog.Warn("result value is not serializable, storing null",
				"experiment_id", m.ExperimentID, "err", err)
			shadow.Result = nil
		}
	}
	return json.MarshalIndent(&shadow, "", "  ")
}

// DeserializeMetadata is the inverse of Serialize. The configuration leaf
// stays a raw nested mapping; use bind to construct a typed value from it.
func DeserializeMetadata(raw []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// IsSeries reports whether the configuration payload carries a series-spec
// marker, i.e. the record belongs to a Series rather than a Trial.
func (m *Metadata) IsSeries() bool {
	if m.Configuration == nil {
		return false
	}
	_, ok := m.Configuration[seriesSpecKey]
	return ok
}
