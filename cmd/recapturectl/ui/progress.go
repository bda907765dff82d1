package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Spinner wraps a spinner for indeterminate work. A nil Spinner is a no-op.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a spinner with the given message. It returns nil in
// JSON mode.
func (ui *UI) NewSpinner(message string) *Spinner {
	if ui.jsonMode {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	if s != nil {
		s.spinner.Start()
	}
}

// Stop stops the spinner animation.
func (s *Spinner) Stop() {
	if s != nil {
		s.spinner.Stop()
	}
}

// ProgressBar wraps a determinate progress bar. A nil ProgressBar is a no-op.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a progress bar over total items.
func (ui *UI) NewProgressBar(total int64, description string) *ProgressBar {
	if ui.jsonMode {
		return nil
	}
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("tasks"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar}
}

// Set moves the bar to current.
func (p *ProgressBar) Set(current int64) {
	if p != nil {
		_ = p.bar.Set64(current)
	}
}

// SetTotal changes the bar's total.
func (p *ProgressBar) SetTotal(total int64) {
	if p != nil {
		p.bar.ChangeMax64(total)
	}
}

// Finish completes the bar.
func (p *ProgressBar) Finish() {
	if p != nil {
		_ = p.bar.Finish()
	}
}

// JobTracker renders one bar per watched job, counting completed tasks.
type JobTracker struct {
	progress *mpb.Progress
	bars     map[string]*mpb.Bar
}

// NewJobTracker creates a tracker. It returns nil in JSON mode.
func (ui *UI) NewJobTracker() *JobTracker {
	if ui.jsonMode {
		return nil
	}
	return &JobTracker{
		progress: mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr)),
		bars:     make(map[string]*mpb.Bar),
	}
}

// Update sets the bar for name to complete out of total, creating it on
// first use.
func (t *JobTracker) Update(name string, complete, total int) {
	if t == nil {
		return
	}
	bar, ok := t.bars[name]
	if !ok {
		bar = t.progress.AddBar(int64(total),
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
				decor.CountersNoUnit("%d / %d pages", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WC{W: 5}),
				decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
				decor.OnComplete(decor.Name(""), " done"),
			),
		)
		t.bars[name] = bar
	}
	bar.SetCurrent(int64(complete))
	if total == 0 {
		bar.SetTotal(0, true)
	}
}

// Close finishes rendering. Bars that never completed are aborted.
func (t *JobTracker) Close() {
	if t == nil {
		return
	}
	for _, bar := range t.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	if IsTerminal() {
		t.progress.Wait()
	} else {
		t.progress.Shutdown()
	}
}
