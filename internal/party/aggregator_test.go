package party_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/party"
)

func TestNewAggregatorRequiresReader(t *testing.T) {
	_, err := party.NewAggregator(nil)
	require.Error(t, err)
}

func TestBuildMyPartiesSplitsProjections(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	joinedAt := base.Add(time.Hour)

	owned := party.Post{ID: "own", OwnerID: "me", CreatedAt: base, Slots: []party.Slot{{ID: "o1", Number: 1, Role: "Tank"}}}
	olderOwned := party.Post{ID: "own-old", OwnerID: "me", CreatedAt: base.Add(-time.Hour)}
	joinedPost := party.Post{ID: "joined", OwnerID: "x", Slots: []party.Slot{{ID: "j1", Number: 1, Role: "Healer", OccupantID: "app-j"}}}
	pendingPost := party.Post{ID: "pending", OwnerID: "y", Slots: []party.Slot{{ID: "p1", Number: 1, Role: "DPS"}, {ID: "p2", Number: 2, Role: "Tank"}}}

	snapshot := party.UserSnapshot{
		Owned:         []party.Post{olderOwned, owned},
		PendingByPost: map[string]int{"own": 3},
		Live: []party.Application{
			{ID: "app-p", PostID: "pending", SlotID: "p2", Status: party.ApplicationPending, SubmittedAt: base.Add(2 * time.Hour), Character: party.Character{Name: "Aria", Class: "cleric"}},
			{ID: "app-j", PostID: "joined", SlotID: "j1", Status: party.ApplicationAccepted, SubmittedAt: base, DecidedAt: &joinedAt, Character: party.Character{Name: "Aria", Class: "cleric"}},
			{ID: "app-gone", PostID: "deleted", SlotID: "z", Status: party.ApplicationPending, SubmittedAt: base},
		},
		Posts: map[string]party.Post{"joined": joinedPost, "pending": pendingPost},
	}

	view := party.BuildMyParties(snapshot)

	require.Len(t, view.Created, 2)
	require.Equal(t, "own", view.Created[0].ID)
	require.Equal(t, 3, view.Created[0].PendingCount)
	require.Zero(t, view.Created[1].PendingCount)

	require.Len(t, view.Joined, 1)
	require.Equal(t, "joined", view.Joined[0].ID)
	require.Equal(t, "Healer", view.Joined[0].MyMember.Role)
	require.Equal(t, joinedAt, view.Joined[0].MyMember.JoinedAt)

	require.Len(t, view.Pending, 1)
	require.Equal(t, "Tank", view.Pending[0].MyApplication.Role)
	require.Equal(t, 2, view.Pending[0].MyApplication.SlotNumber)

	require.Equal(t, party.Counts{Created: 2, Joined: 1, Pending: 1, Total: 4}, view.Counts)
}

func TestBuildMyPartiesEmpty(t *testing.T) {
	view := party.BuildMyParties(party.UserSnapshot{})

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	require.JSONEq(t, `{"created":[],"joined":[],"pending":[],"counts":{"created":0,"joined":0,"pending":0,"total":0}}`, string(raw))
}

func TestBuildMyPartiesSerialisesPostFields(t *testing.T) {
	view := party.BuildMyParties(party.UserSnapshot{
		Owned:         []party.Post{{ID: "own", Title: "Run", Status: party.PostRecruiting, JoinType: party.JoinFirstCome}},
		PendingByPost: map[string]int{"own": 1},
	})

	raw, err := json.Marshal(view.Created[0])
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "own", decoded["id"])
	require.Equal(t, "recruiting", decoded["status"])
	require.Equal(t, "first_come", decoded["join_type"])
	require.EqualValues(t, 1, decoded["pending_count"])
}

func TestProjectionsAcceptOpaqueUserIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, bob, cara := "owner-account-1", "player-bob-2", "player-cara-3"

	post := f.createPost(t, owner, party.JoinApproval, "Tank", "Healer")
	app := f.submit(t, post, 0, bob)
	require.Equal(t, party.ApplicationPending, app.Status)
	f.submit(t, post, 1, cara)

	created, err := f.aggregator.Created(ctx, owner)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, 2, created[0].PendingCount)

	pending, err := f.aggregator.Pending(ctx, bob)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, post.ID, pending[0].Post.ID)

	apps, err := party.Collect(f.ledger.ListByApplicant(ctx, bob))
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.Equal(t, app.ID, apps[0].ID)

	_, err = f.engine.Approve(ctx, post.ID, post.Slots[0].ID, app.ID, owner)
	require.NoError(t, err)

	joined, err := f.aggregator.Joined(ctx, bob)
	require.NoError(t, err)
	require.Len(t, joined, 1)
}

func TestOversizedUserIDIsInvalidInput(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, newUser(), party.JoinApproval, "Healer")
	long := strings.Repeat("u", party.MaxUserIDLength+1)

	_, err := f.ledger.Submit(context.Background(), party.SubmitInput{
		PostID:      post.ID,
		SlotID:      post.Slots[0].ID,
		ApplicantID: long,
		Character:   party.Character{Name: "Aria", Class: "cleric"},
	})
	require.Equal(t, party.KindInvalidInput, party.KindOf(err))

	_, err = f.engine.CreatePost(context.Background(), party.CreatePostInput{
		OwnerID:     long,
		Title:       "Run",
		DungeonType: "expedition",
		Schedule:    party.Schedule{IsImmediate: true},
		Slots:       []party.SlotInput{{Role: "Tank"}},
	})
	require.Equal(t, party.KindInvalidInput, party.KindOf(err))
}
