package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/partyfinder/internal/monitoring"
	"github.com/charlesng35/partyfinder/internal/storage"
)

// BacklogReader is satisfied by storage.OutboxStore.
type BacklogReader interface {
	Backlog(ctx context.Context) (storage.OutboxBacklog, error)
}

// Outbox degrades when events were dead-lettered or the pending backlog exceeds maxPending.
func Outbox(reader BacklogReader, maxPending int64) monitoring.Check {
	return monitoring.Check{Name: "outbox", Probe: func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		backlog, err := reader.Backlog(ctx)
		if err != nil {
			return monitoring.ResultFromError("outbox", err, time.Since(start))
		}

		result := monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
		switch {
		case backlog.Dead > 0:
			result.Status = monitoring.StatusDegraded
			result.Details = fmt.Sprintf("%d dead-lettered events", backlog.Dead)
		case maxPending > 0 && backlog.Pending > maxPending:
			result.Status = monitoring.StatusDegraded
			result.Details = fmt.Sprintf("%d events awaiting delivery", backlog.Pending)
		}
		return result
	}}
}
