package main

import (
	"fmt"
	"io"
	"sync"
)

// stderrLogger writes prefixed diagnostic lines. It serves the requester,
// the runner's failure hook and the extractor.
type stderrLogger struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func newStderrLogger(w io.Writer, verbose bool) *stderrLogger {
	return &stderrLogger{w: w, verbose: verbose}
}

func (l *stderrLogger) Debugf(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.printf(format, args...)
}

func (l *stderrLogger) Warnf(format string, args ...any) {
	l.printf("warning: "+format, args...)
}

func (l *stderrLogger) Warn(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

func (l *stderrLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.printf("exchange failed: %v", err)
}

func (l *stderrLogger) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[h1exec] "+format+"\n", args...)
}
