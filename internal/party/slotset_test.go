package party_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/party"
)

func TestSlotSetOrdersSlotsAndReportsOccupancy(t *testing.T) {
	post := party.Post{
		ID: "p",
		Slots: []party.Slot{
			{ID: "s3", Number: 3, Role: "DPS"},
			{ID: "s1", Number: 1, Role: "Tank", OccupantID: "a1"},
			{ID: "s2", Number: 2, Role: "Healer"},
		},
	}
	set := party.NewSlotSet(post, map[string]int{"s2": 2, "s3": 1})

	slots := set.Slots()
	require.Equal(t, []string{"s1", "s2", "s3"}, []string{slots[0].ID, slots[1].ID, slots[2].ID})

	occ, err := set.Occupancy("s1")
	require.NoError(t, err)
	require.Equal(t, party.SlotFilled, occ.State)
	require.Equal(t, "a1", occ.ApplicationID)

	occ, err = set.Occupancy("s2")
	require.NoError(t, err)
	require.Equal(t, party.SlotOpen, occ.State)
	require.Empty(t, occ.ApplicationID)
	require.Equal(t, 2, occ.PendingCount)

	require.Equal(t, 3, set.PendingTotal())
	require.Equal(t, 2, set.OpenCount())
	require.Len(t, set.All(), 3)

	_, err = set.Occupancy("elsewhere")
	require.ErrorIs(t, err, party.ErrSlotNotFound)
	require.Equal(t, party.KindNotFound, party.KindOf(err))
}

func TestSlotSetDoesNotAliasPost(t *testing.T) {
	post := party.Post{Slots: []party.Slot{{ID: "s1", Number: 1}}}
	set := party.NewSlotSet(post, nil)

	slots := set.Slots()
	slots[0].OccupantID = "tampered"

	occ, err := set.Occupancy("s1")
	require.NoError(t, err)
	require.Equal(t, party.SlotOpen, occ.State)
}
