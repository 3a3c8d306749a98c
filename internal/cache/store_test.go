package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/database/testutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func storesUnderTest(t *testing.T) map[string]struct {
	store Store
	clock *testClock
} {
	t.Helper()

	memClock := &testClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
	dbClock := &testClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	dbStore, err := NewDatabaseStore(db, WithDatabaseClock(dbClock.Now))
	require.NoError(t, err)

	return map[string]struct {
		store Store
		clock *testClock
	}{
		"memory":   {store: NewMemoryStore().WithClock(memClock.Now), clock: memClock},
		"database": {store: dbStore, clock: dbClock},
	}
}

func TestStoreSetGetDelete(t *testing.T) {
	for name, tc := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := tc.store.Get(ctx, "party:my:u1")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, tc.store.Set(ctx, "party:my:u1", []byte(`{"counts":{}}`), 5*time.Second))
			value, ok, err := tc.store.Get(ctx, "party:my:u1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, `{"counts":{}}`, string(value))

			require.NoError(t, tc.store.Set(ctx, "party:my:u1", []byte(`v2`), 5*time.Second))
			value, _, err = tc.store.Get(ctx, "party:my:u1")
			require.NoError(t, err)
			require.Equal(t, "v2", string(value))

			require.NoError(t, tc.store.Delete(ctx, "party:my:u1", "party:my:missing"))
			_, ok, err = tc.store.Get(ctx, "party:my:u1")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, tc.store.Delete(ctx))
		})
	}
}

func TestStoreExpiry(t *testing.T) {
	for name, tc := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, tc.store.Set(ctx, "short", []byte("x"), time.Second))
			require.NoError(t, tc.store.Set(ctx, "forever", []byte("y"), 0))

			tc.clock.Advance(2 * time.Second)

			_, ok, err := tc.store.Get(ctx, "short")
			require.NoError(t, err)
			require.False(t, ok)

			_, ok, err = tc.store.Get(ctx, "forever")
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestStoreIncrementWithTTL(t *testing.T) {
	for name, tc := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			count, ttl, err := tc.store.IncrementWithTTL(ctx, "submit:u1", time.Minute)
			require.NoError(t, err)
			require.EqualValues(t, 1, count)
			require.Equal(t, time.Minute, ttl)

			tc.clock.Advance(10 * time.Second)
			count, ttl, err = tc.store.IncrementWithTTL(ctx, "submit:u1", time.Minute)
			require.NoError(t, err)
			require.EqualValues(t, 2, count)
			require.Equal(t, 50*time.Second, ttl)

			tc.clock.Advance(time.Minute)
			count, ttl, err = tc.store.IncrementWithTTL(ctx, "submit:u1", time.Minute)
			require.NoError(t, err)
			require.EqualValues(t, 1, count)
			require.Equal(t, time.Minute, ttl)
		})
	}
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
	store, err := NewDatabaseStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()), WithDatabaseClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, store.Set(ctx, "c", []byte("3"), 0))

	clock.Advance(time.Minute)
	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	_, ok, err := store.Get(ctx, "c")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewDatabaseStoreRequiresDB(t *testing.T) {
	_, err := NewDatabaseStore(nil)
	require.Error(t, err)
}
