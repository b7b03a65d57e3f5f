package notify

import (
	"context"
	"errors"

	"visittrack/api/models"
	"visittrack/api/tracker"
)

// FuncSink adapts a function to tracker.Sink.
type FuncSink func(ctx context.Context, n models.Notification) error

func (f FuncSink) Deliver(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}

// MultiSink fans a notification out to every sink, collecting failures.
type MultiSink []tracker.Sink

func (m MultiSink) Deliver(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
