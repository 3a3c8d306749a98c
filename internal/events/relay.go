package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/partyfinder/internal/models"
	"github.com/charlesng35/partyfinder/internal/party"
	"github.com/charlesng35/partyfinder/pkg/logger"
	"github.com/charlesng35/partyfinder/pkg/metrics"
)

const (
	DefaultBatchSize   = 100
	DefaultMaxAttempts = 5
)

// OutboxSource is implemented by storage.OutboxStore.
type OutboxSource interface {
	Pending(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) (bool, error)
}

// RelayStats summarises one relay pass.
type RelayStats struct {
	Sent   int
	Failed int
	Dead   int
}

// Relay drains the outbox into a publisher, one row at a time so a failing
// row never blocks the rows behind it.
type Relay struct {
	source      OutboxSource
	publisher   Publisher
	batchSize   int
	maxAttempts int
	now         func() time.Time
	log         *zap.Logger
}

// RelayOption customises a Relay.
type RelayOption func(*Relay)

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithRelayClock(now func() time.Time) RelayOption {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRelay(source OutboxSource, publisher Publisher, opts ...RelayOption) (*Relay, error) {
	if source == nil {
		return nil, errors.New("outbox relay: source is required")
	}
	if publisher == nil {
		return nil, errors.New("outbox relay: publisher is required")
	}
	r := &Relay{
		source:      source,
		publisher:   publisher,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		log:         logger.WithModule("outbox"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunOnce relays up to one batch of pending rows.
func (r *Relay) RunOnce(ctx context.Context) (RelayStats, error) {
	var stats RelayStats

	rows, err := r.source.Pending(ctx, r.batchSize)
	if err != nil {
		return stats, err
	}

	var errs error
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, multierr.Append(errs, err)
		}

		publishErr := r.publishRow(ctx, row)
		if publishErr == nil {
			if err := r.source.MarkSent(ctx, row.ID, r.now().UTC()); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			stats.Sent++
			metrics.OutboxEvents.WithLabelValues("sent").Inc()
			continue
		}

		dead, err := r.source.MarkFailed(ctx, row.ID, publishErr, r.maxAttempts)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if dead {
			stats.Dead++
			metrics.OutboxEvents.WithLabelValues("dead").Inc()
			r.log.Error("outbox event dead-lettered",
				zap.String("event_id", row.ID),
				zap.String("event_type", row.EventType),
				zap.Int("attempts", row.Attempts+1),
				zap.Error(publishErr))
			continue
		}
		stats.Failed++
		metrics.OutboxEvents.WithLabelValues("retry").Inc()
		r.log.Warn("outbox publish failed",
			zap.String("event_id", row.ID),
			zap.String("event_type", row.EventType),
			zap.Error(publishErr))
	}

	if stats.Sent+stats.Failed+stats.Dead > 0 {
		r.log.Debug("outbox relay pass",
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed),
			zap.Int("dead", stats.Dead))
	}
	return stats, errs
}

func (r *Relay) publishRow(ctx context.Context, row models.OutboxEvent) error {
	evt, err := DecodeEvent(row)
	if err != nil {
		return err
	}
	return r.publisher.Publish(ctx, []party.Event{evt})
}

// DecodeEvent restores the event stored in an outbox row. The row id becomes the event id.
func DecodeEvent(row models.OutboxEvent) (party.Event, error) {
	var evt party.Event
	if err := json.Unmarshal(row.Payload, &evt); err != nil {
		return party.Event{}, fmt.Errorf("outbox relay: decode %s: %w", row.ID, err)
	}
	evt.ID = row.ID
	return evt, nil
}
