package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/repopulse/pkg/persist"
)

// Artifact file names inside a project output directory.
const (
	MarkdownName       = "report.md"
	HTMLName           = "report.html"
	ChartsName         = "report_charts.html"
	ResolvedConfigBase = "config_resolved"
)

const dirPerm = 0o750

// WriteOptions controls which artifacts Write produces.
type WriteOptions struct {
	// Dir is the project output directory. It is created when missing.
	Dir      string
	NoHTML   bool
	NoZip    bool
	Markdown MarkdownOptions
	// ResolvedConfig is written as config_resolved.json when non-nil.
	ResolvedConfig map[string]any
}

// Artifacts lists the files one Write produced. Empty fields were skipped.
type Artifacts struct {
	Raw            string
	Markdown       string
	HTML           string
	Charts         string
	ResolvedConfig string
	Bundle         string
}

// Write renders every enabled artifact of snap into opts.Dir. The raw
// snapshot is validated against the published schema before anything else
// is derived from it.
func Write(snap *Snapshot, opts WriteOptions, logger *slog.Logger) (Artifacts, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var out Artifacts

	mkdirErr := os.MkdirAll(opts.Dir, dirPerm)
	if mkdirErr != nil {
		return out, fmt.Errorf("%w: create output dir: %w", ErrRender, mkdirErr)
	}

	raw, err := SaveSnapshot(opts.Dir, snap)
	if err != nil {
		return out, fmt.Errorf("%w: write snapshot: %w", ErrRender, err)
	}

	out.Raw = raw

	data, err := os.ReadFile(raw)
	if err != nil {
		return out, fmt.Errorf("%w: reread snapshot: %w", ErrRender, err)
	}

	validateErr := ValidateSnapshot(data)
	if validateErr != nil {
		return out, fmt.Errorf("%w: %w", ErrRender, validateErr)
	}

	if opts.ResolvedConfig != nil {
		out.ResolvedConfig, err = persist.SaveState(opts.Dir, ResolvedConfigBase, persist.NewJSONCodec(), opts.ResolvedConfig)
		if err != nil {
			return out, fmt.Errorf("%w: write resolved config: %w", ErrRender, err)
		}
	}

	var md bytes.Buffer

	mdErr := RenderMarkdown(&md, snap, opts.Markdown)
	if mdErr != nil {
		return out, mdErr
	}

	out.Markdown, err = writeFile(opts.Dir, MarkdownName, md.Bytes())
	if err != nil {
		return out, err
	}

	if !opts.NoHTML {
		var page bytes.Buffer

		htmlErr := RenderHTML(&page, "Repository Analysis Report: "+snap.Project, md.Bytes())
		if htmlErr != nil {
			return out, htmlErr
		}

		out.HTML, err = writeFile(opts.Dir, HTMLName, page.Bytes())
		if err != nil {
			return out, err
		}
	}

	var chartPage bytes.Buffer

	chartsErr := RenderCharts(&chartPage, snap)
	if chartsErr != nil {
		return out, chartsErr
	}

	out.Charts, err = writeFile(opts.Dir, ChartsName, chartPage.Bytes())
	if err != nil {
		return out, err
	}

	if !opts.NoZip {
		out.Bundle, err = WriteBundle(opts.Dir, snap.Project)
		if err != nil {
			return out, err
		}
	}

	logger.Info("report written", "dir", opts.Dir, "html", !opts.NoHTML, "bundle", !opts.NoZip)

	return out, nil
}

func writeFile(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)

	err := os.WriteFile(path, data, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: write %s: %w", ErrRender, name, err)
	}

	return path, nil
}
