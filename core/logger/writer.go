package logger

import (
	"errors"
	"io"
	"sync"
)

// lineWriter fans complete lines out to every sink, one line at a time.
type lineWriter struct {
	mu    sync.Mutex
	sinks []io.Writer
}

func newLineWriter(sinks ...io.Writer) *lineWriter {
	w := &lineWriter{}
	for _, s := range sinks {
		if s != nil {
			w.sinks = append(w.sinks, s)
		}
	}
	return w
}

func (w *lineWriter) Write(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if _, err := s.Write(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
