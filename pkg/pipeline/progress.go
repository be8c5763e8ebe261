package pipeline

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Progress observes completed repositories.
type Progress interface {
	Add(n int) error
	Finish() error
}

type silentProgress struct{}

func (silentProgress) Add(int) error { return nil }
func (silentProgress) Finish() error { return nil }

// NewProgress returns a progress bar on stderr when it is a terminal and a
// silent tracker otherwise.
func NewProgress(total int) Progress {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return silentProgress{}
	}

	return NewProgressTo(os.Stderr, total)
}

// NewProgressTo renders a progress bar into w.
func NewProgressTo(w io.Writer, total int) Progress {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("collecting"),
		progressbar.OptionSetWidth(progressWidth),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

const progressWidth = 40
