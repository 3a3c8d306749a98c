package party

import (
	"context"
	"time"
)

const (
	DefaultMaxSlots     = 8
	DefaultImmediateTTL = 2 * time.Hour
	DefaultPageSize     = 50

	// MaxUserIDLength bounds the opaque user ids handed over by the identity layer.
	MaxUserIDLength = 64
)

// Options tune the ledger and engine.
type Options struct {
	MaxSlots     int
	ImmediateTTL time.Duration
	PageSize     int
	Now          func() time.Time
	// OnCommit runs after a mutation commits with the events it produced.
	OnCommit func(ctx context.Context, events []Event)
}

func (o Options) withDefaults() Options {
	if o.MaxSlots <= 0 {
		o.MaxSlots = DefaultMaxSlots
	}
	if o.ImmediateTTL <= 0 {
		o.ImmediateTTL = DefaultImmediateTTL
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) now() time.Time {
	return o.Now().UTC()
}

func (o Options) committed(ctx context.Context, events []Event) {
	if o.OnCommit != nil && len(events) > 0 {
		o.OnCommit(ctx, events)
	}
}
