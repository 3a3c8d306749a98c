package checks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/app/maintenance"
	testutil "github.com/charlesng35/partyfinder/internal/database/testutil"
	"github.com/charlesng35/partyfinder/internal/monitoring"
	"github.com/charlesng35/partyfinder/internal/monitoring/checks"
	"github.com/charlesng35/partyfinder/internal/storage"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type backlog struct {
	value storage.OutboxBacklog
	err   error
}

func (b backlog) Backlog(context.Context) (storage.OutboxBacklog, error) { return b.value, b.err }

type jobs []maintenance.JobStatus

func (j jobs) Jobs() []maintenance.JobStatus { return j }

func TestDatabaseCheck(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	result := checks.Database(db).Probe(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	result = checks.Database(nil).Probe(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}

func TestCacheCheck(t *testing.T) {
	require.Equal(t, monitoring.StatusUp, checks.Cache(nil).Probe(context.Background()).Status)
	require.Equal(t, monitoring.StatusUp, checks.Cache(pinger{}).Probe(context.Background()).Status)

	result := checks.Cache(pinger{err: errors.New("dial tcp: refused")}).Probe(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "redis unreachable")
}

func TestOutboxCheck(t *testing.T) {
	ctx := context.Background()

	ok := checks.Outbox(backlog{value: storage.OutboxBacklog{Pending: 3}}, 10).Probe(ctx)
	require.Equal(t, monitoring.StatusUp, ok.Status)

	dead := checks.Outbox(backlog{value: storage.OutboxBacklog{Dead: 2}}, 10).Probe(ctx)
	require.Equal(t, monitoring.StatusDegraded, dead.Status)
	require.Contains(t, dead.Details, "2 dead-lettered")

	behind := checks.Outbox(backlog{value: storage.OutboxBacklog{Pending: 50}}, 10).Probe(ctx)
	require.Equal(t, monitoring.StatusDegraded, behind.Status)

	failed := checks.Outbox(backlog{err: errors.New("no such table")}, 10).Probe(ctx)
	require.Equal(t, monitoring.StatusDown, failed.Status)
}

func TestMaintenanceCheck(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	healthy := checks.Maintenance(jobs{
		{Job: "outbox_relay", Schedule: "@every 5s", TotalRuns: 3, LastRunAt: now},
		{Job: "audit_retention", Schedule: "@daily", TotalRuns: 1, LastRunAt: now},
	}, time.Minute).Probe(ctx)
	require.Equal(t, monitoring.StatusUp, healthy.Status)

	stale := checks.Maintenance(jobs{
		{Job: "expire_posts", Schedule: "@every 1m", TotalRuns: 1, LastRunAt: now.Add(-time.Hour)},
	}, time.Minute).Probe(ctx)
	require.Equal(t, monitoring.StatusDegraded, stale.Status)
	require.Contains(t, stale.Details, "expire_posts")

	failing := checks.Maintenance(jobs{
		{Job: "expire_posts", Schedule: "@every 1m", LastRunAt: now.Add(-time.Hour)},
		{Job: "outbox_relay", Schedule: "@every 5s", TotalRuns: 4, ConsecutiveFailures: 3, LastRunAt: now, LastError: "broker down"},
	}, time.Minute).Probe(ctx)
	require.Equal(t, monitoring.StatusDown, failing.Status)
	require.Contains(t, failing.Details, "broker down")
}
