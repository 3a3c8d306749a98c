package party_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/party"
)

func TestNewLedgerRequiresStore(t *testing.T) {
	_, err := party.NewLedger(nil, party.Options{})
	require.Error(t, err)
}

func TestSubmitCreatesPendingApplication(t *testing.T) {
	f := newFixture(t)
	owner, applicant := newUser(), newUser()
	post := f.createPost(t, owner, party.JoinApproval, "Healer")

	app := f.submit(t, post, 0, applicant)

	require.NotEmpty(t, app.ID)
	require.Equal(t, party.ApplicationPending, app.Status)
	require.Equal(t, post.Slots[0].ID, app.SlotID)

	submitted := f.committed(party.EventApplicationSubmitted)
	require.Len(t, submitted, 1)
	require.ElementsMatch(t, []string{applicant, owner}, submitted[0].Recipients)
}

func TestSubmitValidatesInput(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, newUser(), party.JoinApproval, "Healer")

	_, err := f.ledger.Submit(context.Background(), party.SubmitInput{
		PostID:      post.ID,
		SlotID:      post.Slots[0].ID,
		ApplicantID: newUser(),
		Character:   party.Character{Name: " ", Class: "cleric"},
	})
	require.Equal(t, party.KindInvalidInput, party.KindOf(err))

	_, err = f.ledger.Submit(context.Background(), party.SubmitInput{
		PostID:      post.ID,
		SlotID:      newUser(),
		ApplicantID: newUser(),
		Character:   party.Character{Name: "a", Class: "b"},
	})
	require.ErrorIs(t, err, party.ErrSlotNotFound)

	_, err = f.ledger.Submit(context.Background(), party.SubmitInput{
		PostID:      newUser(),
		SlotID:      post.Slots[0].ID,
		ApplicantID: newUser(),
		Character:   party.Character{Name: "a", Class: "b"},
	})
	require.ErrorIs(t, err, party.ErrPostNotFound)
}

func TestSubmitRejectsDuplicateLiveApplication(t *testing.T) {
	f := newFixture(t)
	post := f.createPost(t, newUser(), party.JoinApproval, "Healer", "Tank")
	applicant := newUser()
	f.submit(t, post, 0, applicant)

	for _, slot := range []int{0, 1} {
		_, err := f.ledger.Submit(context.Background(), party.SubmitInput{
			PostID:      post.ID,
			SlotID:      post.Slots[slot].ID,
			ApplicantID: applicant,
			Character:   party.Character{Name: "Aria", Class: "cleric"},
		})
		require.ErrorIs(t, err, party.ErrDuplicateApplication)
		require.Equal(t, party.KindDuplicateApplication, party.KindOf(err))
	}
}

func TestSubmitAfterRejectionIsAllowed(t *testing.T) {
	f := newFixture(t)
	owner, applicant := newUser(), newUser()
	post := f.createPost(t, owner, party.JoinApproval, "Healer")
	first := f.submit(t, post, 0, applicant)

	_, err := f.engine.Reject(context.Background(), post.ID, post.Slots[0].ID, first.ID, owner)
	require.NoError(t, err)

	second := f.submit(t, post, 0, applicant)
	require.NotEqual(t, first.ID, second.ID)
}

func TestSubmitChecksRequirements(t *testing.T) {
	f := newFixture(t)
	post, err := f.engine.CreatePost(context.Background(), party.CreatePostInput{
		OwnerID:      newUser(),
		Title:        "Transcend 5",
		DungeonType:  "transcend",
		Schedule:     party.Schedule{IsImmediate: true},
		Requirements: party.Requirements{MinItemLevel: 3000, MinCombatPower: 50000},
		Slots:        []party.SlotInput{{Role: "Healer", RequiredClass: "cleric"}},
	})
	require.NoError(t, err)

	cases := []struct {
		name      string
		character party.Character
		ok        bool
	}{
		{"wrong class", party.Character{Name: "a", Class: "gladiator", ItemLevel: 3100, CombatPower: 60000}, false},
		{"low item level", party.Character{Name: "a", Class: "Cleric", ItemLevel: 2900, CombatPower: 60000}, false},
		{"low combat power", party.Character{Name: "a", Class: "cleric", ItemLevel: 3100, CombatPower: 100}, false},
		{"meets all", party.Character{Name: "a", Class: "CLERIC", ItemLevel: 3000, CombatPower: 50000}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.Submit(context.Background(), party.SubmitInput{
				PostID:      post.ID,
				SlotID:      post.Slots[0].ID,
				ApplicantID: newUser(),
				Character:   tc.character,
			})
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, party.ErrRequirementNotMet)
		})
	}
}

func TestSubmitToClosedPostIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	owner := newUser()
	post := f.createPost(t, owner, party.JoinApproval, "Healer")
	_, err := f.engine.ClosePost(context.Background(), post.ID, owner)
	require.NoError(t, err)

	_, err = f.ledger.Submit(context.Background(), party.SubmitInput{
		PostID:      post.ID,
		SlotID:      post.Slots[0].ID,
		ApplicantID: newUser(),
		Character:   party.Character{Name: "a", Class: "b"},
	})
	require.ErrorIs(t, err, party.ErrInvalidTransition)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	owner, applicant := newUser(), newUser()
	post := f.createPost(t, owner, party.JoinApproval, "Healer")
	app := f.submit(t, post, 0, applicant)

	_, err := f.ledger.Withdraw(context.Background(), app.ID, newUser())
	require.ErrorIs(t, err, party.ErrNotApplicant)
	require.Equal(t, party.KindForbidden, party.KindOf(err))

	withdrawn, err := f.ledger.Withdraw(context.Background(), app.ID, applicant)
	require.NoError(t, err)
	require.Equal(t, party.ApplicationWithdrawn, withdrawn.Status)

	_, err = f.ledger.Withdraw(context.Background(), app.ID, applicant)
	require.ErrorIs(t, err, party.ErrInvalidTransition)

	_, err = f.ledger.Withdraw(context.Background(), newUser(), applicant)
	require.ErrorIs(t, err, party.ErrApplicationNotFound)
}

func TestSubmitThenWithdrawLeavesSlotOpen(t *testing.T) {
	f := newFixture(t)
	owner, applicant := newUser(), newUser()
	post := f.createPost(t, owner, party.JoinApproval, "Healer")
	app := f.submit(t, post, 0, applicant)

	_, err := f.ledger.Withdraw(context.Background(), app.ID, applicant)
	require.NoError(t, err)

	slots, err := party.LoadSlotSet(context.Background(), f.store, post.ID)
	require.NoError(t, err)
	occ, err := slots.Occupancy(post.Slots[0].ID)
	require.NoError(t, err)
	require.Equal(t, party.SlotOpen, occ.State)
	require.Zero(t, occ.PendingCount)

	view, err := f.aggregator.MyParties(context.Background(), applicant)
	require.NoError(t, err)
	require.Empty(t, view.Joined)
	require.Empty(t, view.Pending)
}

func TestListsAreOrderedAndRestartable(t *testing.T) {
	f := newFixture(t)
	owner := newUser()
	ledger, err := party.NewLedger(f.store, party.Options{PageSize: 2})
	require.NoError(t, err)

	post := f.createPost(t, owner, party.JoinApproval, "A", "B", "C", "D", "E")
	var want []string
	for i := range post.Slots {
		want = append(want, f.submit(t, post, i, newUser()).ID)
	}

	seq := ledger.ListByPost(context.Background(), post.ID)
	for round := 0; round < 2; round++ {
		apps, err := party.Collect(seq)
		require.NoError(t, err)
		got := make([]string, 0, len(apps))
		for _, app := range apps {
			got = append(got, app.ID)
		}
		require.Equal(t, want, got)
	}

	var first []string
	for app, err := range seq {
		require.NoError(t, err)
		first = append(first, app.ID)
		if len(first) == 3 {
			break
		}
	}
	require.Equal(t, want[:3], first)
}

func TestListByApplicantSpansPosts(t *testing.T) {
	f := newFixture(t)
	applicant := newUser()
	a := f.createPost(t, newUser(), party.JoinApproval, "Healer")
	b := f.createPost(t, newUser(), party.JoinApproval, "Healer")
	first := f.submit(t, a, 0, applicant)
	second := f.submit(t, b, 0, applicant)

	apps, err := party.Collect(f.ledger.ListByApplicant(context.Background(), applicant))
	require.NoError(t, err)
	require.Len(t, apps, 2)
	require.Equal(t, first.ID, apps[0].ID)
	require.Equal(t, second.ID, apps[1].ID)
}
