package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/monitoring"
)

func TestHealthManagerEvaluateReadiness(t *testing.T) {
	manager := monitoring.NewHealthManager(time.Second)
	manager.RegisterReadiness(monitoring.NewCheck("database", func(context.Context) error { return nil }))
	manager.RegisterReadiness(monitoring.NewCheck("cache", func(context.Context) error {
		return errors.New("connection refused")
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, monitoring.StatusUp, report.Checks[0].Status)
	require.Equal(t, "connection refused", report.Checks[1].Details)
	require.False(t, report.CheckedAt.IsZero())
}

func TestHealthManagerTimeoutDegrades(t *testing.T) {
	manager := monitoring.NewHealthManager(10 * time.Millisecond)
	manager.RegisterReadiness(monitoring.NewCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.False(t, report.Success)
}

func TestHealthManagerRecoversPanickingProbe(t *testing.T) {
	manager := monitoring.NewHealthManager(0)
	manager.RegisterLiveness(monitoring.Check{Name: "boom", Probe: func(context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}})
	manager.RegisterLiveness(monitoring.Check{Name: "ignored"})

	report := manager.EvaluateLiveness(context.Background())
	require.Len(t, report.Checks, 1)
	require.Equal(t, "boom", report.Checks[0].Component)
	require.Equal(t, monitoring.StatusDown, report.Checks[0].Status)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
}

func TestEmptyReportIsUp(t *testing.T) {
	report := monitoring.NewHealthManager(0).EvaluateLiveness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Empty(t, report.Checks)
}
