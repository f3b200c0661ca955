// Package logging configures the shared log15 root logger for cordage.
// Child loggers are namespaced per component via New.
package logging

import (
	"os"

	"github.com/inconshreveable/log15"
	"github.com/mattn/go-isatty"
)

var root = log15.New()

func init() {
	Setup(log15.LvlInfo)
}

// Setup installs the root handler. Terminal format when stderr is a tty,
// logfmt otherwise, so piped output stays machine readable.
func Setup(maxLvl log15.Lvl) {
	var h log15.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		h = log15.StreamHandler(os.Stderr, log15.TerminalFormat())
	} else {
		h = log15.StreamHandler(os.Stderr, log15.LogfmtFormat())
	}
	root.SetHandler(log15.LvlFilterHandler(maxLvl, h))
}

// SetHandler replaces the root handler directly (used by tests to capture
// or silence output).
func SetHandler(h log15.Handler) {
	root.SetHandler(h)
}

// New returns a child logger tagged with the given component name.
func New(component string) log15.Logger {
	return root.New("component", component)
}
