package progress

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"video-calib/internal/pipeline"
)

// Bar renders progress as a terminal bar.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar creates a bar on w. A total of zero or less renders a spinner.
func NewBar(w io.Writer, description string, total int) *Bar {
	max := total
	if max <= 0 {
		max = -1
	}
	bar := progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
	)
	return &Bar{bar: bar}
}

// Report implements pipeline.Reporter.
func (b *Bar) Report(state pipeline.State) {
	_ = b.bar.Set(state.Completed)
}

// Finish completes the bar.
func (b *Bar) Finish() error {
	return b.bar.Finish()
}

// Finisher is a Reporter with a final step after the run.
type Finisher interface {
	pipeline.Reporter
	Finish() error
}

// ForConsole returns a Bar when f is a terminal and a Log reporter
// otherwise, so redirected output stays line-oriented.
func ForConsole(f *os.File, description string, total int) Finisher {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		return NewBar(f, description, total)
	}
	return NewLog(description, total, 0)
}
