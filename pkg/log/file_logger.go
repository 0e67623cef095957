package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends trace events to a CBOR file. It is safe for concurrent
// use. A failed write never reaches the dispatch path; it is counted and
// handed to the error handler set with WithErrorHandler.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool

	onError func(error)
	failed  uint64
}

// FileOption configures a FileLogger.
type FileOption func(*FileLogger)

// WithErrorHandler calls fn for every event that could not be written.
// fn runs on the logging goroutine after the file lock is released.
func WithErrorHandler(fn func(error)) FileOption {
	return func(l *FileLogger) {
		l.onError = fn
	}
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string, opts ...FileOption) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &FileLogger{file: f, encoder: newEncoder(f)}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Log implements Logger. Events logged after Close are ignored.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	err := l.encoder.Encode(event)
	if err != nil {
		l.failed++
	}
	onError := l.onError
	l.mu.Unlock()

	if err != nil && onError != nil {
		onError(err)
	}
}

// Errors returns the number of events that could not be written.
func (l *FileLogger) Errors() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}

// Close closes the trace file. Further calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
