package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/plonerma/cordage/experiment"
)

// WriteShowHuman writes the detail view for a single experiment.
func WriteShowHuman(w io.Writer, exp experiment.Experiment) error {
	meta := exp.Metadata()

	writeField(w, "experiment_id", valueOr(exp.ID(), "<pending>"))
	writeField(w, "function", meta.Function)
	writeField(w, "status", string(exp.Status()))

	if meta.StartTime != nil {
		writeField(w, "started", fmt.Sprintf("%s (%s)",
			meta.StartTime.Format(time.RFC3339), humanize.RelTime(*meta.StartTime, time.Now(), "ago", "from now")))
	}
	if meta.EndTime != nil {
		writeField(w, "ended", meta.EndTime.Format(time.RFC3339))
	}
	if d := meta.Duration(); d > 0 {
		writeField(w, "duration", d.Round(time.Millisecond).String())
	}

	writeField(w, "output_dir", exp.OutputDir())

	if parent, ok := meta.Info("parent_id"); ok {
		writeField(w, "parent_id", fmt.Sprint(parent))
	}

	ann := exp.Annotations()
	if tags := ann.AllTags(); len(tags) > 0 {
		writeField(w, "tags", strings.Join(tags, ","))
	}
	if ann.Comment != "" {
		writeField(w, "comment", ann.Comment)
	}

	if s, ok := exp.(*experiment.Series); ok {
		writeField(w, "trials", fmt.Sprint(s.Len()))
		if fields := s.ChangingFields(); len(fields) > 0 {
			writeField(w, "changing_fields", strings.Join(fields, ","))
		}
	}

	if meta.Configuration != nil {
		doc, err := json.MarshalIndent(meta.Configuration, "", "  ")
		if err == nil {
			fmt.Fprintf(w, "\nconfiguration:\n%s\n", doc)
		}
	}
	if meta.Result != nil {
		doc, err := json.MarshalIndent(meta.Result, "", "  ")
		if err == nil {
			fmt.Fprintf(w, "\nresult:\n%s\n", doc)
		}
	}

	return nil
}

func writeField(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%-16s %s\n", key+":", value)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
