package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/party"
)

func TestCursorTokens(t *testing.T) {
	cursor := party.Cursor{SubmittedAt: time.Date(2026, 3, 1, 18, 0, 0, 123, time.UTC), ID: "app-1"}

	decoded, err := DecodeCursor(EncodeCursor(cursor))
	require.NoError(t, err)
	require.True(t, cursor.SubmittedAt.Equal(decoded.SubmittedAt))
	require.Equal(t, cursor.ID, decoded.ID)

	require.Empty(t, EncodeCursor(party.Cursor{}))
	start, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.True(t, start.IsZero())

	for _, bad := range []string{"***", "bm8tc2VwYXJhdG9y", "bm90LWEtdGltZXxhcHA"} {
		_, err := DecodeCursor(bad)
		require.Error(t, err, bad)
	}
}
