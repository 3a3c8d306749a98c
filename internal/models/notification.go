package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app message delivered to a user about one of their parties.
type Notification struct {
	BaseModel

	UserID    string         `gorm:"type:varchar(64);index" json:"user_id"`
	PostID    *string        `gorm:"type:uuid;index" json:"post_id"`
	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Severity  string         `gorm:"type:varchar(32);default:'info'" json:"severity"`
	ActionURL string         `gorm:"type:text" json:"action_url"`
	Metadata  datatypes.JSON `json:"metadata"`

	// DedupKey is "<event_id>:<user_id>" for notifications raised by relayed events.
	DedupKey *string `gorm:"type:varchar(112);uniqueIndex" json:"-"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
