package logger

import (
	"fmt"
	"sync"
)

// Entry is a message captured by Recorder.
type Entry struct {
	Level     Level
	Component string
	Message   string
}

// Recorder keeps every message it receives. It is meant for tests.
type Recorder struct {
	mu        *sync.Mutex
	entries   *[]Entry
	component string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		mu:      new(sync.Mutex),
		entries: new([]Entry),
	}
}

func (r *Recorder) Debug(msg string, args ...interface{}) { r.add(LevelDebug, msg, args...) }
func (r *Recorder) Info(msg string, args ...interface{})  { r.add(LevelInfo, msg, args...) }
func (r *Recorder) Warn(msg string, args ...interface{})  { r.add(LevelWarn, msg, args...) }
func (r *Recorder) Error(msg string, args ...interface{}) { r.add(LevelError, msg, args...) }

// WithComponent returns a Recorder sharing r's entries.
func (r *Recorder) WithComponent(component string) Logger {
	return &Recorder{mu: r.mu, entries: r.entries, component: component}
}

// Entries returns a copy of the recorded messages.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

// Count returns the number of messages recorded at level.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (r *Recorder) add(level Level, msg string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	*r.entries = append(*r.entries, Entry{
		Level:     level,
		Component: r.component,
		Message:   fmt.Sprintf(msg, args...),
	})
}
