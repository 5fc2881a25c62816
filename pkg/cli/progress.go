package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"mercator-hq/webdev/pkg/build"
)

// ProgressReporter prints build progress for interactive commands. It
// implements build.Observer and the router's publish observer.
type ProgressReporter struct {
	mu     sync.Mutex
	writer io.Writer

	ok   *color.Color
	fail *color.Color
	dim  *color.Color
}

// NewProgressReporter creates a reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer, noColor bool) *ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	p := &ProgressReporter{
		writer: w,
		ok:     color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		dim:    color.New(color.Faint),
	}
	if noColor {
		p.ok.DisableColor()
		p.fail.DisableColor()
		p.dim.DisableColor()
	}
	return p
}

// JobStarted implements build.Observer.
func (p *ProgressReporter) JobStarted(job *build.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "%s building %s %s\n",
		p.dim.Sprint("▶"), job.Root(), p.dim.Sprintf("(job %s)", job.ID()))
}

// JobFinished implements build.Observer.
func (p *ProgressReporter) JobFinished(job *build.Job, res build.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res.State == build.Succeeded {
		fmt.Fprintf(p.writer, "%s build succeeded in %s\n", p.ok.Sprint("✓"), roundDuration(res.Duration()))
		return
	}

	fmt.Fprintf(p.writer, "%s build failed after %s", p.fail.Sprint("✗"), roundDuration(res.Duration()))
	if res.ExitCode >= 0 {
		fmt.Fprintf(p.writer, " (exit code %d)", res.ExitCode)
	}
	fmt.Fprintln(p.writer)
	if len(res.Tail) > 0 {
		fmt.Fprintln(p.writer, p.dim.Sprint("  last output:"))
		for _, line := range res.Tail {
			fmt.Fprintf(p.writer, "  %s\n", line)
		}
	} else if res.Err != nil {
		fmt.Fprintf(p.writer, "  %v\n", res.Err)
	}
}

// Published reports the publish outcome.
func (p *ProgressReporter) Published(jobID string, d time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		fmt.Fprintf(p.writer, "%s publish failed: %v\n", p.fail.Sprint("✗"), err)
		return
	}
	fmt.Fprintf(p.writer, "%s published in %s\n", p.ok.Sprint("✓"), roundDuration(d))
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(100 * time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(time.Millisecond)
	default:
		return d
	}
}
