package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/database/testutil"
	"github.com/charlesng35/partyfinder/internal/models"
)

func TestAuditServiceLogAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := context.Background()
	user := newUser()
	require.NoError(t, svc.Log(ctx, AuditEntry{
		UserID:   user,
		Action:   "application.reject",
		Resource: "party:p1",
		Metadata: map[string]any{"application_id": "a1"},
	}))
	require.NoError(t, svc.Log(ctx, AuditEntry{Action: "party.close", Resource: "party:p1", Result: AuditResultFailure}))

	logs, err := svc.List(ctx, AuditFilters{UserID: user}, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, AuditResultSuccess, logs[0].Result)
	require.JSONEq(t, `{"application_id":"a1"}`, string(logs[0].Metadata))

	all, err := svc.List(ctx, AuditFilters{Resource: "party:p1"}, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.Error(t, svc.Log(ctx, AuditEntry{}))
}

func TestAuditServiceCleanupOlderThan(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	svc, err := NewAuditService(db, WithAuditClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.AuditLog{Action: "party.delete", Result: "success", CreatedAt: now.AddDate(0, 0, -40)}).Error)
	require.NoError(t, db.Create(&models.AuditLog{Action: "party.delete", Result: "success", CreatedAt: now.AddDate(0, 0, -1)}).Error)

	removed, err := svc.CleanupOlderThan(context.Background(), 30)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, err = svc.CleanupOlderThan(context.Background(), 0)
	require.Error(t, err)
}
