// Package cordage runs configuration-driven experiments: it expands a base
// configuration plus a series specification into an ordered sequence of
// trials and executes a user function once per trial, tracking lifecycle
// metadata on disk.
package cordage

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/plonerma/cordage/codec"
	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/experiment"
	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/logging"
	"github.com/plonerma/cordage/internal/maps"
)

// Func is the user function executed once per trial, against that trial's
// bound configuration.
type Func[T any] func(ctx context.Context, trial *experiment.Trial, cfg T) error

// Options wires one Run invocation. The CLI front end (or any caller)
// supplies a flat mapping of provided options, an optional config file to
// merge as base, skip/subset selection, and an optional comment; cordage
// does not parse argv itself.
type Options struct {
	// FunctionName names the user callable in persisted metadata.
	FunctionName string

	// ConfigPath optionally points at a config file to load as the base
	// configuration. The file may carry a series specification under
	// the "__series__" key.
	ConfigPath string

	// Overrides is a flat mapping of dotted-key options; they win over
	// values from the config file.
	Overrides map[string]any

	// BaseConfig is a programmatic base configuration, used when no
	// ConfigPath is given.
	BaseConfig map[string]any

	// Spec is a programmatic series specification, used when no
	// ConfigPath is given.
	Spec *experiment.SeriesSpec

	// SeriesSkip marks the first n trials as skipped.
	SeriesSkip int

	// SeriesTrial, if positive, restricts execution to the single trial
	// with that 1-based index.
	SeriesTrial int

	// Comment seeds the experiment's annotation comment.
	Comment string

	// Global is the cordage configuration; resolved via config.Load
	// when nil.
	Global *config.GlobalConfig

	// Parent links nested experiments explicitly: when a user function
	// launches a further Run, it passes its own trial here.
	Parent experiment.Experiment
}

var log = logging.New("cordage")

// Run expands the configured series and executes fn once per trial,
// strictly sequentially and in order. It returns the Series (or, for a
// singular series, the sole Trial) together with the first execution
// error: a failing trial halts subsequent trials, and a cancellation is
// re-propagated after "aborted" bookkeeping.
func Run[T any](ctx context.Context, fn Func[T], opts Options) (experiment.Experiment, error) {
	global := opts.Global
	if global == nil {
		var err error
		global, err = config.Load("")
		if err != nil {
			return nil, err
		}
	}

	baseConfig, spec, fileComment, fileSkip, err := resolveInputs(opts)
	if err != nil {
		return nil, err
	}

	skip := opts.SeriesSkip
	if skip == 0 {
		skip = fileSkip
	}

	parentID := ""
	if opts.Parent != nil {
		parentID = opts.Parent.ID()
	}

	series, err := experiment.NewSeries(experiment.SeriesParams{
		Function:   opts.FunctionName,
		BaseConfig: baseConfig,
		Spec:       spec,
		Skip:       skip,
		OnlyTrial:  opts.SeriesTrial,
		Global:     global,
		ParentID:   parentID,
		Comment:    combineComments(fileComment, opts.Comment),
	})
	if err != nil {
		return nil, err
	}
	series.Metadata().SetInfo("invocation_id", uuid.NewString())

	// bind every trial configuration up front so a binding error
	// surfaces before any identifier or directory is allocated
	for _, trial := range series.All() {
		var probe T
		if err := trial.BindConfig(&probe); err != nil {
			return nil, err
		}
	}

	if series.IsSingular() {
		trial := series.Trials()[0]
		return trial, runTrial(ctx, trial, fn)
	}

	log.Debug("executing series", "trials", series.Len(), "skip", series.Skip())

	if err := series.Start(); err != nil {
		return series, err
	}

	for _, trial := range series.Trials() {
		if cause := context.Cause(ctx); cause != nil {
			// cancellation between trials: honest series bookkeeping
			// before the signal propagates
			if endErr := series.End(experiment.StatusAborted); endErr != nil {
				log.Warn("could not persist aborted series", "err", endErr)
			}
			return series, cause
		}

		if err := runTrial(ctx, trial, fn); err != nil {
			status := experiment.StatusFailed
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				status = experiment.StatusAborted
			}
			if endErr := series.End(status); endErr != nil {
				log.Warn("could not persist series status", "status", status, "err", endErr)
			}
			return series, err
		}
	}

	return series, series.End(experiment.StatusComplete)
}

// runTrial binds the trial configuration and executes the user function
// inside the trial's scoped lifecycle.
func runTrial[T any](ctx context.Context, trial *experiment.Trial, fn Func[T]) error {
	var cfg T
	if err := trial.BindConfig(&cfg); err != nil {
		return err
	}
	return trial.Run(ctx, func(ctx context.Context, t *experiment.Trial) error {
		return fn(ctx, t, cfg)
	})
}

// resolveInputs merges the config file (if any) with the provided
// overrides and extracts the series specification.
func resolveInputs(opts Options) (map[string]any, *experiment.SeriesSpec, string, int, error) {
	if opts.ConfigPath == "" {
		base := opts.BaseConfig
		if base == nil {
			base = map[string]any{}
		}
		if len(opts.Overrides) > 0 {
			base = maps.Merge(base, maps.Nest(opts.Overrides))
		}
		return base, opts.Spec, "", 0, nil
	}

	if opts.Spec != nil || opts.BaseConfig != nil {
		return nil, nil, "", 0, errors.New(errors.EUsage,
			"pass either a config path or a programmatic base configuration, not both")
	}

	doc, err := codec.ReadDocument(opts.ConfigPath)
	if err != nil {
		return nil, nil, "", 0, err
	}

	base := maps.Merge(doc.Data, map[string]any{}) // deep copy
	specValue := base[config.SeriesSpecKey]
	delete(base, config.SeriesSpecKey)

	comment, _ := base[config.SeriesCommentKey].(string)
	delete(base, config.SeriesCommentKey)

	skip := intValue(base[config.SeriesSkipKey])
	delete(base, config.SeriesSkipKey)

	spec, err := experiment.SpecFromValue(specValue, specKeyOrder(doc.KeyOrder))
	if err != nil {
		return nil, nil, "", 0, err
	}

	if len(opts.Overrides) > 0 {
		base = maps.Merge(base, maps.Nest(opts.Overrides))
	}
	return base, spec, comment, skip, nil
}

// specKeyOrder extracts the document order of series-spec leaves from the
// full config file key order.
func specKeyOrder(keyOrder []string) []string {
	prefix := config.SeriesSpecKey + "."
	var order []string
	for _, k := range keyOrder {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			order = append(order, k[len(prefix):])
		}
	}
	return order
}

func combineComments(fileComment, optComment string) string {
	switch {
	case fileComment == "":
		return optComment
	case optComment == "":
		return fileComment
	default:
		return fmt.Sprintf("%s\n\n%s", fileComment, optComment)
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
