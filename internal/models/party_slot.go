package models

// PartySlot is a single role slot of a post. OccupantApplicationID is the compare-and-set field.
type PartySlot struct {
	BaseModel

	PostID        string `gorm:"type:uuid;not null;uniqueIndex:idx_party_slots_post_number" json:"post_id"`
	SlotNumber    int    `gorm:"not null;uniqueIndex:idx_party_slots_post_number" json:"slot_number"`
	PartyNumber   int    `gorm:"not null;default:1" json:"party_number"`
	Role          string `gorm:"type:varchar(64);not null" json:"role"`
	RequiredClass string `gorm:"type:varchar(64)" json:"required_class"`

	OccupantApplicationID *string `gorm:"type:uuid;index" json:"occupant_application_id"`
}

func (PartySlot) TableName() string {
	return "party_slots"
}
