// Package progress carries best-effort progress notifications from the
// reconciliation passes to an observer such as a UI.
package progress

import (
	"context"
	"log/slog"
	"sync"
)

type Status string

const (
	StatusStarted     Status = "started"
	StatusDownloading Status = "downloading"
	StatusSkipped     Status = "skipped"
	StatusCompleted   Status = "completed"
)

type Event struct {
	Phase      string
	Current    int64
	Total      int64
	Percentage float64
	File       string
	Status     Status
}

// Sink observes progress. Implementations must not block for long and have
// no way to fail the operation reporting to them.
type Sink interface {
	Report(Event)
}

// NewEvent fills in the percentage.
func NewEvent(phase string, current, total int64, file string, status Status) Event {
	pct := 100.0
	if total > 0 {
		pct = float64(current) * 100 / float64(total)
	}
	return Event{
		Phase:      phase,
		Current:    current,
		Total:      total,
		Percentage: pct,
		File:       file,
		Status:     status,
	}
}

type nop struct{}

func (nop) Report(Event) {}

// Nop discards every event.
var Nop Sink = nop{}

// Or returns s, or Nop when s is nil.
func Or(s Sink) Sink {
	if s == nil {
		return Nop
	}
	return s
}

// Func adapts a function to Sink.
type Func func(Event)

func (f Func) Report(e Event) { f(e) }

// Log reports events at debug level, and phase boundaries at info level.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Report(e Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	if e.Status == StatusStarted || (e.Status == StatusCompleted && e.File == "") {
		level = slog.LevelInfo
	}
	logger.Log(context.Background(), level, "progress",
		"phase", e.Phase,
		"current", e.Current,
		"total", e.Total,
		"percentage", e.Percentage,
		"file", e.File,
		"status", e.Status)
}

// Recorder keeps every event. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
