package models

import (
	"time"

	"gorm.io/datatypes"
)

// Outbox statuses.
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusDead    = "dead"
)

// OutboxEvent is a domain event written in the same transaction as the state change that caused it.
type OutboxEvent struct {
	BaseModel

	EventType   string         `gorm:"type:varchar(64);not null;index" json:"event_type"`
	AggregateID string         `gorm:"type:uuid;not null;index" json:"aggregate_id"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`
	Status      string         `gorm:"type:varchar(16);not null;default:'pending';index:idx_outbox_events_status_created,priority:1" json:"status"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastError   string         `gorm:"type:text" json:"last_error"`
	SentAt      *time.Time     `json:"sent_at"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
