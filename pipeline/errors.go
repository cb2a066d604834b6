package pipeline

import "fmt"

// ErrSink indicates a sink could not persist a batch.
type ErrSink struct {
	Sink string
	Err  error
}

func (e ErrSink) Error() string {
	return fmt.Errorf("sink %s: %w", e.Sink, e.Err).Error()
}

func (e ErrSink) Unwrap() error {
	return e.Err
}
