package experiment

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"

	"github.com/plonerma/cordage/bind"
	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/internal/logging"
	"github.com/plonerma/cordage/internal/store"
)

// Trial is one concrete execution of the user function against one fully
// resolved configuration.
type Trial struct {
	base

	// Config is the nested configuration mapping for this trial, the
	// base configuration with this trial's overlay merged in.
	Config map[string]any
}

// TrialParams configures a standalone Trial.
type TrialParams struct {
	// Function is the name of the user callable being invoked.
	Function string

	// Config is the trial's nested configuration mapping.
	Config map[string]any

	// Global is the cordage configuration; defaults are used if nil.
	Global *config.GlobalConfig

	// ParentID optionally links this trial to an enclosing experiment.
	// Passed explicitly by the executor rather than via ambient state.
	ParentID string

	// Comment seeds the trial's annotation comment.
	Comment string
}

// NewTrial creates a pending standalone trial.
func NewTrial(p TrialParams) (*Trial, error) {
	global := p.Global
	if global == nil {
		global = config.Default()
	}
	if err := global.Validate(); err != nil {
		return nil, err
	}

	cfg := p.Config
	if cfg == nil {
		cfg = map[string]any{}
	}

	t := &Trial{
		base: base{
			meta: &Metadata{
				Function:      p.Function,
				Status:        StatusPending,
				Configuration: cfg,
			},
			ann:     &Annotations{Comment: p.Comment},
			global:  global,
			central: store.OpenCentral(global.CentralMetadata.Use, global.CentralMetadata.Path, global.BaseOutputDir),
			log:     logging.New("trial"),
		},
		Config: cfg,
	}
	if p.ParentID != "" {
		t.meta.SetInfo("parent_id", p.ParentID)
	}
	return t, nil
}

// Start begins trial execution: allocates the identifier, creates the
// output directory exclusively, and persists metadata and annotations.
// Fails with E_ILLEGAL_STATE unless the trial is pending.
func (t *Trial) Start() error {
	if err := t.start(); err != nil {
		return err
	}
	t.log.Info("trial started", "experiment_id", t.ID(), "output_dir", t.OutputDir())
	return nil
}

// End moves the trial to a terminal status, sets the end time, and
// persists. Duration is derived on read, never stored.
func (t *Trial) End(status Status) error {
	if err := t.end(status); err != nil {
		return err
	}
	t.saveFileTree()
	return nil
}

// SetResult records the user function's result value for persistence.
func (t *Trial) SetResult(result any) {
	t.meta.Result = result
}

// BindConfig constructs a typed configuration value from the trial's
// configuration mapping.
func (t *Trial) BindConfig(target any) error {
	return bind.Bind(target, t.Config, t.global.StrictMode)
}

// Run executes fn inside the trial's scoped lifecycle: Start on entry;
// complete on normal return; aborted (then propagated) on cancellation;
// failed with a captured exception record (then propagated) on any other
// error. A panic in fn is captured as a failure and re-raised.
func (t *Trial) Run(ctx context.Context, fn func(context.Context, *Trial) error) error {
	if err := t.Start(); err != nil {
		return err
	}

	err := t.runUser(ctx, fn)
	if err == nil {
		// a cancellation fn swallowed still counts as aborted
		err = context.Cause(ctx)
	}

	switch {
	case err == nil:
		if endErr := t.End(StatusComplete); endErr != nil {
			return endErr
		}
		t.log.Info("trial completed", "experiment_id", t.ID())
		return nil

	case stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded):
		t.log.Warn("trial aborted", "experiment_id", t.ID())
		if endErr := t.End(StatusAborted); endErr != nil {
			t.log.Warn("could not persist aborted state", "experiment_id", t.ID(), "err", endErr)
		}
		return err

	default:
		t.captureException(err.Error(), string(debug.Stack()))
		t.log.Warn("trial failed", "experiment_id", t.ID(), "err", err)
		if endErr := t.End(StatusFailed); endErr != nil {
			t.log.Warn("could not persist failed state", "experiment_id", t.ID(), "err", endErr)
		}
		return err
	}
}

// runUser invokes fn, converting a panic into a recorded failure before
// re-raising it, so an honest record exists even for crashes.
func (t *Trial) runUser(ctx context.Context, fn func(context.Context, *Trial) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.captureException(fmt.Sprintf("panic: %v", r), string(debug.Stack()))
			if endErr := t.End(StatusFailed); endErr != nil {
				t.log.Warn("could not persist failed state", "experiment_id", t.ID(), "err", endErr)
			}
			panic(r)
		}
	}()
	return fn(ctx, t)
}

// captureException records an exception summary and trace into
// additional_info.exception.
func (t *Trial) captureException(short, trace string) {
	t.meta.SetInfo("exception", map[string]any{
		"short":     short,
		"traceback": trace,
	})
}
