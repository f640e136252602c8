// Package progress reports long CLI jobs such as theme scans and
// document exports.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives the progress of a job over a known number of items.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Finish()
}

// NewReporter returns a BarReporter on interactive runs and a
// LineReporter when CI or GITHUB_ACTIONS is set. Both write to stderr.
func NewReporter(description string) Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &LineReporter{Description: description, Out: os.Stderr}
	}
	return &BarReporter{Description: description, Out: os.Stderr}
}

// BarReporter draws a progress bar.
type BarReporter struct {
	Description string
	Out         io.Writer
	bar         *progressbar.ProgressBar
}

func (r *BarReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.Out),
		progressbar.OptionSetDescription(r.Description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *BarReporter) Update(current int, message string) {
	if r.bar == nil {
		return
	}
	if message != "" {
		r.bar.Describe(r.Description + ": " + message)
	}
	r.bar.Set(current)
}

func (r *BarReporter) Finish() {
	if r.bar != nil {
		r.bar.Finish()
	}
}

// LineReporter prints one line per tenth of the job, for logs that do
// not render carriage returns.
type LineReporter struct {
	Description string
	Out         io.Writer
	total       int
	lastStep    int
}

func (r *LineReporter) Start(total int) {
	r.total, r.lastStep = total, 0
	fmt.Fprintf(r.Out, "%s: %d items\n", r.Description, total)
}

func (r *LineReporter) Update(current int, message string) {
	if r.total <= 0 {
		return
	}
	step := current * 10 / r.total
	if step <= r.lastStep {
		return
	}
	r.lastStep = step
	fmt.Fprintf(r.Out, "%s: %d/%d %s\n", r.Description, current, r.total, message)
}

func (r *LineReporter) Finish() {
	fmt.Fprintf(r.Out, "%s: done\n", r.Description)
}
