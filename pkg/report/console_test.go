package report_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/repopulse/pkg/report"
)

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	report.PrintSummary(&buf, fixtureSnapshot(t), report.NumberFormat{})

	out := buf.String()
	assert.Contains(t, out, "repopulse: demo")
	assert.Contains(t, out, "Most active repositories")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "1 collection errors:")
	assert.Contains(t, out, "gamma|pipe: git log failed")
}
