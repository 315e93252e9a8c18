// Package status implements the dashboard status line: one message at a time,
// dimmed and then reverted to an idle placeholder unless it is an error.
package status

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Crys266/IoT-Project/internal/clock"
	"github.com/Crys266/IoT-Project/internal/model"
)

// Line is what the status line currently shows.
type Line struct {
	Text     string
	Severity model.Severity
	Dimmed   bool
	Idle     bool
	At       time.Time
}

// Sink receives every change of the displayed line.
type Sink func(Line)

// Options configures a Reporter. Zero values take the defaults.
type Options struct {
	IdleText    string
	DimAfter    time.Duration
	RevertAfter time.Duration // measured from the report, not from the dim
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Reporter owns the status line.
type Reporter struct {
	mu          sync.Mutex
	clock       clock.Clock
	logger      *slog.Logger
	idleText    string
	dimAfter    time.Duration
	revertAfter time.Duration
	line        Line
	dim         clock.Task
	revert      clock.Task
	sinks       []Sink
}

// NewReporter returns a Reporter showing the idle placeholder.
func NewReporter(opts Options) *Reporter {
	if opts.IdleText == "" {
		opts.IdleText = model.DefaultIdleText
	}
	if opts.DimAfter <= 0 {
		opts.DimAfter = 3 * time.Second
	}
	if opts.RevertAfter <= opts.DimAfter {
		opts.RevertAfter = opts.DimAfter + 2*time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Reporter{
		clock:       opts.Clock,
		logger:      opts.Logger,
		idleText:    opts.IdleText,
		dimAfter:    opts.DimAfter,
		revertAfter: opts.RevertAfter,
	}
	r.line = r.idleLine()
	return r
}

// AddSink registers fn for every later change.
func (r *Reporter) AddSink(fn Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, fn)
}

// Current returns the displayed line.
func (r *Reporter) Current() Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.line
}

// Report displays message immediately. Non-error messages dim after DimAfter and
// revert to the idle text after RevertAfter unless superseded.
func (r *Reporter) Report(message string, sev model.Severity) {
	r.mu.Lock()
	r.stopFade()
	r.line = Line{Text: message, Severity: sev, At: r.clock.Now()}
	if sev != model.SeverityError {
		r.dim = r.clock.AfterFunc(r.dimAfter, func() { r.dimIfShowing(message) })
		r.revert = r.clock.AfterFunc(r.revertAfter, func() { r.revertIfShowing(message) })
	}
	line, sinks := r.line, r.snapshotSinks()
	r.mu.Unlock()

	r.log(line)
	notify(sinks, line)
}

func (r *Reporter) dimIfShowing(message string) {
	r.mu.Lock()
	if r.line.Idle || r.line.Text != message || r.line.Dimmed {
		r.mu.Unlock()
		return
	}
	r.line.Dimmed = true
	line, sinks := r.line, r.snapshotSinks()
	r.mu.Unlock()
	notify(sinks, line)
}

func (r *Reporter) revertIfShowing(message string) {
	r.mu.Lock()
	if r.line.Idle || r.line.Text != message {
		r.mu.Unlock()
		return
	}
	r.line = r.idleLine()
	r.dim, r.revert = nil, nil
	line, sinks := r.line, r.snapshotSinks()
	r.mu.Unlock()
	notify(sinks, line)
}

func (r *Reporter) idleLine() Line {
	return Line{Text: r.idleText, Severity: model.SeverityInfo, Idle: true, At: r.clock.Now()}
}

func (r *Reporter) stopFade() {
	if r.dim != nil {
		r.dim.Stop()
		r.dim = nil
	}
	if r.revert != nil {
		r.revert.Stop()
		r.revert = nil
	}
}

func (r *Reporter) snapshotSinks() []Sink {
	return append([]Sink(nil), r.sinks...)
}

func (r *Reporter) log(l Line) {
	switch l.Severity {
	case model.SeverityError:
		r.logger.Error("status", "text", l.Text)
	case model.SeverityWarning:
		r.logger.Warn("status", "text", l.Text)
	default:
		r.logger.Info("status", "text", l.Text, "severity", string(l.Severity))
	}
}

func notify(sinks []Sink, l Line) {
	for _, s := range sinks {
		s(l)
	}
}
