package models

import "time"

// PartyPost is a recruiting post owned by a single user. Slots are created with the post and never change.
type PartyPost struct {
	BaseModel

	OwnerID     string `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	Title       string `gorm:"type:varchar(120);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	DungeonType string `gorm:"type:varchar(32);not null;index" json:"dungeon_type"`
	DungeonID   string `gorm:"type:varchar(64)" json:"dungeon_id"`
	DungeonName string `gorm:"type:varchar(120)" json:"dungeon_name"`
	DungeonTier int    `json:"dungeon_tier"`

	IsImmediate  bool       `gorm:"default:true" json:"is_immediate"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	ScheduledEnd *time.Time `json:"scheduled_end"`
	RunCount     int        `gorm:"default:1" json:"run_count"`

	JoinType        string `gorm:"type:varchar(16);not null;default:'approval'" json:"join_type"`
	MinItemLevel    int    `json:"min_item_level"`
	MinBreakthrough int    `json:"min_breakthrough"`
	MinCombatPower  int64  `json:"min_combat_power"`

	Status    string    `gorm:"type:varchar(16);not null;index" json:"status"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	Slots []PartySlot `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"slots,omitempty"`
}

// TableName pins the table name used by raw conditional updates.
func (PartyPost) TableName() string {
	return "party_posts"
}
