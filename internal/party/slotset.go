package party

import (
	"context"
	"sort"
)

// Occupancy is the current state of one slot.
type Occupancy struct {
	Slot          Slot      `json:"slot"`
	State         SlotState `json:"state"`
	ApplicationID string    `json:"application_id,omitempty"`
	PendingCount  int       `json:"pending_count"`
}

// SlotSet is a read-only view of a post's slots and their occupancy.
type SlotSet struct {
	post    Post
	pending map[string]int
}

// NewSlotSet orders the post's slots by slot number.
func NewSlotSet(post Post, pending map[string]int) *SlotSet {
	slots := append([]Slot(nil), post.Slots...)
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Number < slots[j].Number })
	post.Slots = slots
	if pending == nil {
		pending = map[string]int{}
	}
	return &SlotSet{post: post, pending: pending}
}

// LoadSlotSet reads the post and its pending counts.
func LoadSlotSet(ctx context.Context, reader Reader, postID string) (*SlotSet, error) {
	post, err := reader.Post(ctx, postID)
	if err != nil {
		return nil, err
	}
	pending, err := reader.PendingCounts(ctx, postID)
	if err != nil {
		return nil, err
	}
	return NewSlotSet(post, pending), nil
}

func (s *SlotSet) Post() Post {
	return s.post
}

// Slots returns the ordered slots.
func (s *SlotSet) Slots() []Slot {
	return append([]Slot(nil), s.post.Slots...)
}

// Occupancy fails with ErrSlotNotFound when slotID is not part of the post.
func (s *SlotSet) Occupancy(slotID string) (Occupancy, error) {
	slot, ok := s.post.Slot(slotID)
	if !ok {
		return Occupancy{}, ErrSlotNotFound
	}
	return Occupancy{
		Slot:          slot,
		State:         slot.State(),
		ApplicationID: slot.OccupantID,
		PendingCount:  s.pending[slotID],
	}, nil
}

// All returns the occupancy of every slot in order.
func (s *SlotSet) All() []Occupancy {
	out := make([]Occupancy, 0, len(s.post.Slots))
	for _, slot := range s.post.Slots {
		occ, _ := s.Occupancy(slot.ID)
		out = append(out, occ)
	}
	return out
}

// PendingTotal sums pending applications across all slots.
func (s *SlotSet) PendingTotal() int {
	total := 0
	for _, slot := range s.post.Slots {
		total += s.pending[slot.ID]
	}
	return total
}

// OpenCount counts unoccupied slots.
func (s *SlotSet) OpenCount() int {
	return s.post.OpenSlots()
}
