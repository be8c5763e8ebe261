package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/repopulse/pkg/features"
)

const (
	thousand = 1_000
	million  = 1_000_000
	billion  = 1_000_000_000

	daysPerYear  = 365.25
	daysPerMonth = 30
)

// NumberFormat controls how counts are printed.
type NumberFormat struct {
	Abbreviate bool
	Threshold  int
}

// Format renders n with thousands separators, or abbreviated with K/M/B once
// its magnitude reaches the threshold.
func (f NumberFormat) Format(n int) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}

	if !f.Abbreviate || abs < f.Threshold || abs < thousand {
		return humanize.Comma(int64(n))
	}

	switch {
	case abs >= billion:
		return abbreviate(n, billion, "B")
	case abs >= million:
		return abbreviate(n, million, "M")
	default:
		return abbreviate(n, thousand, "K")
	}
}

// Signed renders n like Format with an explicit plus sign for positives.
func (f NumberFormat) Signed(n int) string {
	if n > 0 {
		return "+" + f.Format(n)
	}

	return f.Format(n)
}

func abbreviate(n, unit int, suffix string) string {
	return strconv.FormatFloat(float64(n)/float64(unit), 'f', 1, 64) + suffix
}

// FormatAge renders inactivity days for humans.
func FormatAge(days *int) string {
	if days == nil {
		return "never"
	}

	d := *days

	switch {
	case d <= 0:
		return "today"
	case d == 1:
		return "1 day"
	case d < daysPerMonth:
		return fmt.Sprintf("%d days", d)
	case float64(d) < daysPerYear:
		return fmt.Sprintf("%d months", d/daysPerMonth)
	default:
		return fmt.Sprintf("%.1f years", float64(d)/daysPerYear)
	}
}

// ActivityGlyph returns the status marker of a repository.
func ActivityGlyph(active, hasCommits bool) string {
	switch {
	case !hasCommits:
		return "⚪"
	case active:
		return "✅"
	default:
		return "☑️"
	}
}

// Feature matrix markers.
const (
	GlyphPresent  = "✅"
	GlyphAbsent   = "❌"
	GlyphDisabled = "➖"
	GlyphFailed   = "⚠️"
	notApplicable = "n/a"
)

// FeatureGlyph renders one check result. ok is false when the check did not
// run because it is disabled, which is distinct from a check that found
// nothing.
func FeatureGlyph(res features.Result, ok bool) string {
	switch {
	case !ok:
		return GlyphDisabled
	case res.Err() != "":
		return GlyphFailed
	case res.Present():
		return GlyphPresent
	default:
		return GlyphAbsent
	}
}

// escapeCell makes s safe inside a Markdown table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)

	return strings.ReplaceAll(s, "\n", " ")
}
