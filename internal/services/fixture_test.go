package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/partyfinder/internal/cache"
	"github.com/charlesng35/partyfinder/internal/database/testutil"
	"github.com/charlesng35/partyfinder/internal/party"
	"github.com/charlesng35/partyfinder/internal/realtime"
	"github.com/charlesng35/partyfinder/internal/storage"
)

type serviceFixture struct {
	db      *gorm.DB
	cache   *cache.MemoryStore
	audit   *AuditService
	service *PartyService

	mu     sync.Mutex
	events []party.Event
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := storage.NewPartyStore(db)
	require.NoError(t, err)
	audit, err := NewAuditService(db)
	require.NoError(t, err)

	f := &serviceFixture{db: db, cache: cache.NewMemoryStore(), audit: audit}
	f.service, err = NewPartyService(store, f.cache, audit, PartyServiceConfig{
		ProjectionCacheTTL: time.Minute,
		Options: party.Options{
			OnCommit: func(_ context.Context, events []party.Event) {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.events = append(f.events, events...)
			},
		},
	})
	require.NoError(t, err)
	return f
}

func (f *serviceFixture) committed() []party.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]party.Event(nil), f.events...)
}

func (f *serviceFixture) createPost(t *testing.T, ownerID string, roles ...string) party.Post {
	t.Helper()
	slots := make([]party.SlotInput, 0, len(roles))
	for _, role := range roles {
		slots = append(slots, party.SlotInput{Role: role})
	}
	post, err := f.service.CreatePost(context.Background(), party.CreatePostInput{
		OwnerID:     ownerID,
		Title:       "Sanctuary clear",
		DungeonType: "sanctuary",
		Schedule:    party.Schedule{IsImmediate: true},
		Slots:       slots,
	})
	require.NoError(t, err)
	return post
}

func (f *serviceFixture) submit(t *testing.T, post party.Post, slot int, applicantID string) party.Application {
	t.Helper()
	app, err := f.service.Submit(context.Background(), party.SubmitInput{
		PostID:      post.ID,
		SlotID:      post.Slots[slot].ID,
		ApplicantID: applicantID,
		Character:   party.Character{Name: "Hero", Class: "gladiator"},
	})
	require.NoError(t, err)
	return app
}

func newUser() string {
	return uuid.NewString()
}

type recordingHub struct {
	mu       sync.Mutex
	messages map[string][]realtime.Message
}

func newRecordingHub() *recordingHub {
	return &recordingHub{messages: map[string][]realtime.Message{}}
}

func (h *recordingHub) BroadcastToUsers(stream string, userIDs []string, message realtime.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range userIDs {
		message.Stream = stream
		h.messages[id] = append(h.messages[id], message)
	}
}

func (h *recordingHub) For(userID string) []realtime.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]realtime.Message(nil), h.messages[userID]...)
}
