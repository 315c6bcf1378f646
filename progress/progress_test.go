package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent("files", 1, 4, "a.jar", StatusDownloading)
	assert.Equal(t, 25.0, e.Percentage)
	assert.Equal(t, "a.jar", e.File)

	assert.Equal(t, 100.0, NewEvent("files", 0, 0, "", StatusCompleted).Percentage)
}

func TestOr(t *testing.T) {
	assert.Equal(t, Nop, Or(nil))

	var got []Event
	s := Or(Func(func(e Event) { got = append(got, e) }))
	s.Report(Event{Phase: "x"})
	assert.Len(t, got, 1)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Report(Event{Current: 1})
	r.Report(Event{Current: 2})
	events := r.Events()
	assert.Len(t, events, 2)
	assert.Equal(t, int64(2), events[1].Current)
}
