package events

import (
	"context"

	"go.uber.org/multierr"

	"github.com/charlesng35/partyfinder/internal/party"
)

// Publisher delivers committed domain events to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, events []party.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, events []party.Event) error

func (f PublisherFunc) Publish(ctx context.Context, events []party.Event) error {
	return f(ctx, events)
}

// Fanout publishes to every sink and combines their failures.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, events []party.Event) error {
	var errs error
	for _, p := range f {
		if p == nil {
			continue
		}
		errs = multierr.Append(errs, p.Publish(ctx, events))
	}
	return errs
}
