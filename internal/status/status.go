// =============================================================================
// Purchase Ledger - Status Line
// =============================================================================
//
// Every command reports what it is doing with one short, colored line:
//
//   Working...                    (blue)   the operation has started
//   All done!                     (green)  the operation finished
//   Failed <action>: <reason>     (red)    the operation stopped
//
// Progress over many sheets is shown with a progress bar drawn on the same
// writer.
//
// =============================================================================

package status

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// WorkingColor marks an operation in progress.
	WorkingColor = lipgloss.Color("#4A90D9")
	// DoneColor marks a finished operation.
	DoneColor = lipgloss.Color("#4CAF50")
	// FailedColor marks a failed operation.
	FailedColor = lipgloss.Color("#E53935")
	// NoteColor is used for secondary detail lines.
	NoteColor = lipgloss.Color("#888888")

	// WorkingStyle formats the in-progress line.
	WorkingStyle = lipgloss.NewStyle().Foreground(WorkingColor)

	// DoneStyle formats the success line.
	DoneStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(DoneColor)

	// FailedStyle formats the failure line.
	FailedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(FailedColor)

	// NoteStyle formats detail lines.
	NoteStyle = lipgloss.NewStyle().Foreground(NoteColor)
)

// Fixed status texts.
const (
	WorkingText = "Working..."
	DoneText    = "All done!"
)

// =============================================================================
// REPORTER
// =============================================================================

// Reporter writes status lines to a terminal (or any writer).
type Reporter struct {
	out io.Writer
}

// New creates a Reporter writing to out.
func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Working reports that an operation has started.
func (r *Reporter) Working() {
	fmt.Fprintln(r.out, WorkingStyle.Render(WorkingText))
}

// Done reports that an operation finished.
func (r *Reporter) Done() {
	fmt.Fprintln(r.out, DoneStyle.Render(DoneText))
}

// Failed reports that an operation stopped, and returns err so callers can
// `return r.Failed("commit", err)`.
func (r *Reporter) Failed(action string, err error) error {
	fmt.Fprintln(r.out, FailedStyle.Render(FailedMessage(action, err)))
	return err
}

// Note writes a detail line, e.g. a summary count.
func (r *Reporter) Note(format string, args ...any) {
	fmt.Fprintln(r.out, NoteStyle.Render(fmt.Sprintf(format, args...)))
}

// FailedMessage is the plain text of a failure line.
func FailedMessage(action string, err error) string {
	if err == nil {
		return fmt.Sprintf("Failed %s", action)
	}
	return fmt.Sprintf("Failed %s: %v", action, err)
}

// =============================================================================
// PROGRESS
// =============================================================================

// Progress creates a bar over total steps. The description is shown in
// front of the bar.
func (r *Reporter) Progress(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(r.out)
		}),
	)
}
