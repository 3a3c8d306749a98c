package party_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/database/testutil"
	"github.com/charlesng35/partyfinder/internal/party"
	"github.com/charlesng35/partyfinder/internal/storage"
)

type fixture struct {
	store      *storage.PartyStore
	ledger     *party.Ledger
	engine     *party.Engine
	aggregator *party.Aggregator

	mu     sync.Mutex
	now    time.Time
	events []party.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := storage.NewPartyStore(db)
	require.NoError(t, err)

	f := &fixture{store: store, now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
	opts := party.Options{
		Now: f.tick,
		OnCommit: func(_ context.Context, events []party.Event) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, events...)
		},
	}

	f.ledger, err = party.NewLedger(store, opts)
	require.NoError(t, err)
	f.engine, err = party.NewEngine(store, opts)
	require.NoError(t, err)
	f.aggregator, err = party.NewAggregator(store)
	require.NoError(t, err)
	return f
}

// tick advances the clock one second per call so submission order is deterministic.
func (f *fixture) tick() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fixture) committed(types ...party.EventType) []party.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[party.EventType]bool, len(types))
	for _, typ := range types {
		want[typ] = true
	}
	var out []party.Event
	for _, evt := range f.events {
		if len(want) == 0 || want[evt.Type] {
			out = append(out, evt)
		}
	}
	return out
}

func (f *fixture) createPost(t *testing.T, ownerID string, joinType party.JoinType, roles ...string) party.Post {
	t.Helper()
	slots := make([]party.SlotInput, 0, len(roles))
	for _, role := range roles {
		slots = append(slots, party.SlotInput{Role: role})
	}
	post, err := f.engine.CreatePost(context.Background(), party.CreatePostInput{
		OwnerID:     ownerID,
		Title:       "Expedition run",
		DungeonType: "expedition",
		Schedule:    party.Schedule{IsImmediate: true},
		JoinType:    joinType,
		Slots:       slots,
	})
	require.NoError(t, err)
	return post
}

func (f *fixture) submit(t *testing.T, post party.Post, slot int, applicantID string) party.Application {
	t.Helper()
	app, err := f.ledger.Submit(context.Background(), party.SubmitInput{
		PostID:      post.ID,
		SlotID:      post.Slots[slot].ID,
		ApplicantID: applicantID,
		Character:   party.Character{Name: "Hero-" + applicantID[:4], Class: "cleric"},
	})
	require.NoError(t, err)
	return app
}

func newUser() string {
	return uuid.NewString()
}
