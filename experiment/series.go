package experiment

import (
	"fmt"

	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/logging"
	"github.com/plonerma/cordage/internal/maps"
	"github.com/plonerma/cordage/internal/store"
)

// Series is an ordered collection of Trials derived from one base
// configuration plus a series specification. A singular series (no spec)
// is transparent: its own lifecycle and persistence are no-ops and only
// the sole child trial is observable on disk.
type Series struct {
	base

	spec       *SeriesSpec
	baseConfig map[string]any
	skip       int
	onlyTrial  int

	trials []*Trial

	// padWidth is fixed once at construction, when the length is known,
	// so every sub-identifier uses the same width for the whole series
	// lifetime.
	padWidth int
}

// SeriesParams configures a Series.
type SeriesParams struct {
	// Function is the name of the user callable being invoked.
	Function string

	// BaseConfig is the nested base configuration mapping.
	BaseConfig map[string]any

	// Spec describes the expansion; nil means a singular series.
	Spec *SeriesSpec

	// Skip marks the first Skip trials as skipped; they are excluded
	// from default iteration but still counted by Len.
	Skip int

	// OnlyTrial, if positive, restricts iteration to the single trial
	// with that 1-based index.
	OnlyTrial int

	// Global is the cordage configuration; defaults are used if nil.
	Global *config.GlobalConfig

	// ParentID optionally links this series to an enclosing experiment.
	ParentID string

	// Comment seeds the series' annotation comment.
	Comment string
}

// NewSeries validates the specification and eagerly materializes all child
// trials (identifiers and output directories stay unset until each trial's
// own Start).
func NewSeries(p SeriesParams) (*Series, error) {
	global := p.Global
	if global == nil {
		global = config.Default()
	}
	if err := global.Validate(); err != nil {
		return nil, err
	}

	spec := p.Spec
	if spec == nil {
		spec = SingularSpec()
	}

	if p.Skip < 0 {
		return nil, errors.Newf(errors.EInvalidSeriesSpec, "series_skip must be non-negative, got %d", p.Skip)
	}
	if p.Skip > spec.Len() {
		return nil, errors.Newf(errors.EInvalidSeriesSpec,
			"series_skip %d exceeds series length %d", p.Skip, spec.Len())
	}
	if p.OnlyTrial < 0 || p.OnlyTrial > spec.Len() {
		return nil, errors.Newf(errors.EInvalidSeriesSpec,
			"series trial selection %d is outside 1..%d", p.OnlyTrial, spec.Len())
	}
	if p.OnlyTrial > 0 && p.OnlyTrial <= p.Skip {
		return nil, errors.Newf(errors.EInvalidSeriesSpec,
			"series trial selection %d is excluded by series_skip %d", p.OnlyTrial, p.Skip)
	}

	baseConfig := p.BaseConfig
	if baseConfig == nil {
		baseConfig = map[string]any{}
	}

	seriesConfig := map[string]any{
		baseConfigurationKey: baseConfig,
		seriesSpecKey:        spec.serialize(),
		seriesSkipKey:        p.Skip,
	}
	if order := spec.axisOrder(); order != nil {
		seriesConfig[seriesAxisOrderKey] = order
	}

	central := store.OpenCentral(global.CentralMetadata.Use, global.CentralMetadata.Path, global.BaseOutputDir)

	s := &Series{
		base: base{
			meta: &Metadata{
				Function:      p.Function,
				Status:        StatusPending,
				Configuration: seriesConfig,
			},
			ann:     &Annotations{Comment: p.Comment},
			global:  global,
			central: central,
			log:     logging.New("series"),
		},
		spec:       spec,
		baseConfig: baseConfig,
		skip:       p.Skip,
		onlyTrial:  p.OnlyTrial,
		padWidth:   indexWidth(spec.Len()),
	}
	if p.ParentID != "" {
		s.meta.SetInfo("parent_id", p.ParentID)
	}

	// a singular series is transparent, so its comment belongs to the
	// sole child trial
	childComment := ""
	if spec.IsSingular() {
		childComment = p.Comment
	}

	overlays := spec.Overlays()
	s.trials = make([]*Trial, len(overlays))
	for i, overlay := range overlays {
		cfg := maps.Merge(baseConfig, overlay)
		t := &Trial{
			base: base{
				meta: &Metadata{
					Function:      p.Function,
					Status:        StatusPending,
					Configuration: cfg,
				},
				ann:     &Annotations{Comment: childComment},
				global:  global,
				central: central,
				log:     logging.New("trial"),
			},
			Config: cfg,
		}
		t.meta.SetInfo("trial_index", i+1)
		if spec.IsSingular() && p.ParentID != "" {
			t.meta.SetInfo("parent_id", p.ParentID)
		}
		if i < s.skip {
			t.meta.Status = StatusSkipped
		}
		s.trials[i] = t
	}

	// Len recomputes the count from the spec; materialization must agree.
	if len(s.trials) != s.Len() {
		return nil, errors.Newf(errors.EInternal,
			"materialized %d trials for a series of length %d", len(s.trials), s.Len())
	}

	s.log.Debug("series expanded", "trials", s.Len(), "singular", s.IsSingular())
	return s, nil
}

// seriesAxisOrderKey persists the axis order of a product-form spec so a
// reloaded series expands its trials in the original order.
const seriesAxisOrderKey = "series_axis_order"

// IsSingular reports whether the series degenerates to exactly one trial
// using the base configuration unmodified.
func (s *Series) IsSingular() bool { return s.spec.IsSingular() }

// Len is the number of trials, recomputed from the specification
// independently of the materialized trial list.
func (s *Series) Len() int { return s.spec.Len() }

// Spec returns the series specification.
func (s *Series) Spec() *SeriesSpec { return s.spec }

// BaseConfig returns the nested base configuration mapping.
func (s *Series) BaseConfig() map[string]any { return s.baseConfig }

// Skip returns the number of leading pre-skipped trials.
func (s *Series) Skip() int { return s.skip }

// ChangingFields returns the dotted configuration paths varied across the
// series.
func (s *Series) ChangingFields() []string { return s.spec.ChangingFields() }

// All returns every trial in order, including pre-skipped ones.
func (s *Series) All() []*Trial {
	s.assignChildIdentity()
	return s.trials
}

// Trials returns the trials to execute, in order: pre-skipped trials are
// excluded, and an OnlyTrial selection restricts the result to one trial.
func (s *Series) Trials() []*Trial {
	s.assignChildIdentity()

	if s.onlyTrial > 0 {
		return []*Trial{s.trials[s.onlyTrial-1]}
	}

	out := make([]*Trial, 0, len(s.trials)-s.skip)
	for _, t := range s.trials[s.skip:] {
		out = append(out, t)
	}
	return out
}

// Trial returns the trial with the given 1-based index.
func (s *Series) Trial(index int) (*Trial, error) {
	if index < 1 || index > len(s.trials) {
		return nil, errors.Newf(errors.EUsage, "trial index %d is outside 1..%d", index, len(s.trials))
	}
	s.assignChildIdentity()
	return s.trials[index-1], nil
}

// assignChildIdentity links child trials to the series identifier once it
// is known: parent linkage in additional_info and a preassigned
// sub-identifier "{series_id}/{zero-padded index}".
func (s *Series) assignChildIdentity() {
	if s.IsSingular() || s.meta.ExperimentID == "" {
		return
	}
	for i, t := range s.trials {
		if t.pendingID != "" {
			continue
		}
		t.pendingID = subIdentifier(s.meta.ExperimentID, i+1, s.padWidth)
		t.meta.SetInfo("parent_id", s.meta.ExperimentID)
	}
}

// Start begins the series lifecycle. For a singular series this is a
// no-op; only the sole child trial's lifecycle is real.
func (s *Series) Start() error {
	if s.IsSingular() {
		return nil
	}
	if err := s.start(); err != nil {
		return err
	}
	s.assignChildIdentity()
	s.log.Info("series started", "experiment_id", s.ID(), "trials", s.Len())
	return nil
}

// End moves the series to a terminal status. No-op for a singular series.
func (s *Series) End(status Status) error {
	if s.IsSingular() {
		return nil
	}
	return s.end(status)
}

// Flush persists series metadata outside Start/End. No-op for a singular
// series.
func (s *Series) Flush() error {
	if s.IsSingular() {
		return nil
	}
	return s.base.Flush()
}

// String describes the series for logging.
func (s *Series) String() string {
	if s.IsSingular() {
		return "singular series"
	}
	return fmt.Sprintf("series of %d trials", s.Len())
}
