package conceptcache

import (
	"io"
	"sync"
)

// Level is the verbosity of a report line.
type Level int

const (
	LevelQuiet   Level = 0
	LevelNormal  Level = 1
	LevelVerbose Level = 2
)

// Reporter receives progress text.
type Reporter interface {
	Write(text string, level Level)
}

// WriterReporter writes every line up to Max to W.
type WriterReporter struct {
	mu  sync.Mutex
	W   io.Writer
	Max Level
}

// NewWriterReporter creates a reporter for w at the given verbosity.
func NewWriterReporter(w io.Writer, maxLevel Level) *WriterReporter {
	return &WriterReporter{W: w, Max: maxLevel}
}

// Write implements Reporter.
func (r *WriterReporter) Write(text string, level Level) {
	if level > r.Max {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.W, text)
}

type discard struct{}

func (discard) Write(string, Level) {}
