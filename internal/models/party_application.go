package models

import "time"

// PartyApplication records one attempt by a user to occupy a slot.
//
// LiveKey holds "<post_id>:<applicant_id>" while the application is pending or accepted and is
// cleared on rejection or withdrawal, so the unique index admits one live application per
// applicant and post.
type PartyApplication struct {
	BaseModel

	PostID      string `gorm:"type:uuid;not null;index:idx_party_applications_post_submitted,priority:1" json:"post_id"`
	SlotID      string `gorm:"type:uuid;not null;index" json:"slot_id"`
	ApplicantID string `gorm:"type:varchar(64);not null;index:idx_party_applications_applicant_submitted,priority:1" json:"applicant_id"`

	CharacterName  string `gorm:"type:varchar(64);not null" json:"character_name"`
	CharacterClass string `gorm:"type:varchar(64);not null" json:"character_class"`
	ServerID       string `gorm:"type:varchar(32)" json:"server_id"`
	Level          int    `json:"level"`
	ItemLevel      int    `json:"item_level"`
	Breakthrough   int    `json:"breakthrough"`
	CombatPower    int64  `json:"combat_power"`
	Message        string `gorm:"type:varchar(255)" json:"message"`

	Status  string  `gorm:"type:varchar(16);not null;index" json:"status"`
	Reason  string  `gorm:"type:varchar(32)" json:"reason"`
	LiveKey *string `gorm:"type:varchar(112);uniqueIndex" json:"-"`

	SubmittedAt time.Time  `gorm:"not null;index:idx_party_applications_post_submitted,priority:2;index:idx_party_applications_applicant_submitted,priority:2" json:"submitted_at"`
	DecidedAt   *time.Time `json:"decided_at"`
}

func (PartyApplication) TableName() string {
	return "party_applications"
}
