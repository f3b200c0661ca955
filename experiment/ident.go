package experiment

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/plonerma/cordage/internal/tmpl"
)

// FormatID renders the identifier format template for an experiment that
// started at the given time. Pure function of template and context.
func FormatID(format string, function string, startTime time.Time) (string, error) {
	return tmpl.Format(format, map[string]any{
		"function":   function,
		"start_time": startTime,
	})
}

// Disambiguate resolves identifier collisions against external state. If
// the ideal identifier is free it is returned unchanged; otherwise
// candidates are enumerated from counter i = 2 with a suffix of
// level = floor(log10(i)/2)+1 underscores followed by i zero-padded to
// 2*level digits. The padded width grows every 100 collisions, so suffixes
// stay lexicographically sortable within each width tier.
func Disambiguate(idealID string, exists func(string) bool) string {
	if !exists(idealID) {
		return idealID
	}
	for i := 2; ; i++ {
		candidate := idealID + collisionSuffix(i)
		if !exists(candidate) {
			return candidate
		}
	}
}

func collisionSuffix(i int) string {
	level := int(math.Floor(math.Log10(float64(i))/2)) + 1
	return strings.Repeat("_", level) + fmt.Sprintf("%0*d", 2*level, i)
}

// indexWidth is the zero-padding width for trial sub-identifiers in a
// series of length n: the smallest w with 10^w >= n (integer form of
// ceil(log10(n)), avoiding float rounding at powers of ten).
func indexWidth(n int) int {
	w := 0
	for p := 1; p < n; p *= 10 {
		w++
	}
	return w
}

// subIdentifier builds the identifier of trial index (1-based) within a
// series of length n.
func subIdentifier(seriesID string, index, width int) string {
	return fmt.Sprintf("%s/%0*d", seriesID, width, index)
}
