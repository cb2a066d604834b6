package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/leadscout/models"
)

// MultiSink fans a batch out to several sinks at once.
type MultiSink struct {
	sinks []RecordSink
}

// NewMultiSink combines sinks. At least one is required.
func NewMultiSink(sinks ...RecordSink) (*MultiSink, error) {
	if len(sinks) == 0 {
		return nil, fmt.Errorf("multi sink needs at least one sink")
	}
	return &MultiSink{sinks: sinks}, nil
}

// Name lists the wrapped sinks.
func (ms *MultiSink) Name() string {
	names := make([]string, 0, len(ms.sinks))
	for _, s := range ms.sinks {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// Append writes leads to every sink concurrently. Each sink gets its own copy
// of the slice and the caller's ctx, so one failing sink does not abort the
// others; the first failure is returned as an ErrSink naming that sink.
func (ms *MultiSink) Append(ctx context.Context, leads []*models.Lead) error {
	var g errgroup.Group
	for _, sink := range ms.sinks {
		batch := make([]*models.Lead, len(leads))
		copy(batch, leads)
		g.Go(func() error {
			if err := sink.Append(ctx, batch); err != nil {
				return ErrSink{Sink: sink.Name(), Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// Close closes every sink and joins their errors.
func (ms *MultiSink) Close() error {
	var errs []error
	for _, sink := range ms.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close failed: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
