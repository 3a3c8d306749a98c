package party

import "time"

// Character is the applicant's presented character at submission time.
type Character struct {
	Name         string `json:"character_name"`
	Class        string `json:"character_class"`
	ServerID     string `json:"server_id,omitempty"`
	Level        int    `json:"level,omitempty"`
	ItemLevel    int    `json:"item_level,omitempty"`
	Breakthrough int    `json:"breakthrough,omitempty"`
	CombatPower  int64  `json:"combat_power,omitempty"`
}

// Requirements are the minimum character stats a post accepts.
type Requirements struct {
	MinItemLevel    int   `json:"min_item_level"`
	MinBreakthrough int   `json:"min_breakthrough"`
	MinCombatPower  int64 `json:"min_combat_power"`
}

// Schedule describes when the party runs.
type Schedule struct {
	IsImmediate bool       `json:"is_immediate"`
	StartsAt    *time.Time `json:"scheduled_at,omitempty"`
	EndsAt      *time.Time `json:"scheduled_end,omitempty"`
	RunCount    int        `json:"run_count"`
}

// Post is a party post with its ordered slots.
type Post struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"owner_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	DungeonType  string       `json:"dungeon_type"`
	DungeonID    string       `json:"dungeon_id,omitempty"`
	DungeonName  string       `json:"dungeon_name,omitempty"`
	DungeonTier  int          `json:"dungeon_tier,omitempty"`
	Schedule     Schedule     `json:"schedule"`
	JoinType     JoinType     `json:"join_type"`
	Requirements Requirements `json:"requirements"`
	Status       PostStatus   `json:"status"`
	ExpiresAt    time.Time    `json:"expires_at"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Slots        []Slot       `json:"slots"`
}

// MaxMembers is the fixed slot count.
func (p Post) MaxMembers() int {
	return len(p.Slots)
}

// Slot finds a slot of the post by id.
func (p Post) Slot(slotID string) (Slot, bool) {
	for _, slot := range p.Slots {
		if slot.ID == slotID {
			return slot, true
		}
	}
	return Slot{}, false
}

// OpenSlots counts slots without an occupant.
func (p Post) OpenSlots() int {
	open := 0
	for _, slot := range p.Slots {
		if slot.State() == SlotOpen {
			open++
		}
	}
	return open
}

// Slot is a single capacity-one admission unit.
type Slot struct {
	ID            string `json:"id"`
	PostID        string `json:"post_id"`
	Number        int    `json:"slot_number"`
	PartyNumber   int    `json:"party_number"`
	Role          string `json:"role"`
	RequiredClass string `json:"required_class,omitempty"`
	// OccupantID is the accepted application id, empty while the slot is open.
	OccupantID string `json:"occupant_application_id,omitempty"`
}

// State derives open/filled from the occupant.
func (s Slot) State() SlotState {
	if s.OccupantID == "" {
		return SlotOpen
	}
	return SlotFilled
}

// Application is a user's request to occupy a slot.
type Application struct {
	ID          string            `json:"id"`
	PostID      string            `json:"post_id"`
	SlotID      string            `json:"slot_id"`
	ApplicantID string            `json:"applicant_id"`
	Character   Character         `json:"character"`
	Message     string            `json:"message,omitempty"`
	Status      ApplicationStatus `json:"status"`
	Reason      RejectReason      `json:"reason,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty"`
}

// Cursor is a keyset position in a submission-ordered listing.
type Cursor struct {
	SubmittedAt time.Time
	ID          string
}

// IsZero reports whether the cursor points at the start of a listing.
func (c Cursor) IsZero() bool {
	return c.ID == "" && c.SubmittedAt.IsZero()
}

// After returns the cursor positioned after app.
func After(app Application) Cursor {
	return Cursor{SubmittedAt: app.SubmittedAt, ID: app.ID}
}

// PostFilter narrows post listings.
type PostFilter struct {
	DungeonType string
	Status      PostStatus
	// AfterID continues a listing ordered by creation time descending.
	AfterID string
	Limit   int
}
