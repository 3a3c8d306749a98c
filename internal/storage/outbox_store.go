package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/partyfinder/internal/models"
)

// OutboxStore reads and settles rows written by PartyStore.AppendEvents.
type OutboxStore struct {
	db *gorm.DB
}

// NewOutboxStore constructs an OutboxStore.
func NewOutboxStore(db *gorm.DB) (*OutboxStore, error) {
	if db == nil {
		return nil, errors.New("outbox store: db is required")
	}
	return &OutboxStore{db: db}, nil
}

// Pending returns the oldest pending rows.
func (s *OutboxStore) Pending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		return []models.OutboxEvent{}, nil
	}
	var rows []models.OutboxEvent
	err := s.db.WithContext(ctx).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("outbox store: list pending: %w", err)
	}
	return rows, nil
}

// OutboxBacklog counts rows still waiting for delivery and rows given up on.
type OutboxBacklog struct {
	Pending int64 `json:"pending"`
	Dead    int64 `json:"dead"`
}

// Backlog reports the pending and dead-lettered row counts.
func (s *OutboxStore) Backlog(ctx context.Context) (OutboxBacklog, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Select("status, COUNT(*) AS total").
		Where("status IN ?", []string{models.OutboxStatusPending, models.OutboxStatusDead}).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return OutboxBacklog{}, fmt.Errorf("outbox store: backlog: %w", err)
	}

	var backlog OutboxBacklog
	for _, row := range rows {
		switch row.Status {
		case models.OutboxStatusPending:
			backlog.Pending = row.Total
		case models.OutboxStatusDead:
			backlog.Dead = row.Total
		}
	}
	return backlog, nil
}

// MarkSent settles a pending row.
func (s *OutboxStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ?", id, models.OutboxStatusPending).
		Updates(map[string]interface{}{
			"status":     models.OutboxStatusSent,
			"sent_at":    at,
			"last_error": "",
		}).Error
	if err != nil {
		return fmt.Errorf("outbox store: mark sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and moves the row to dead once maxAttempts is reached.
// It reports whether the row is now dead.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) (bool, error) {
	var dead bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.OutboxEvent
		if err := tx.Take(&row, "id = ?", id).Error; err != nil {
			return err
		}
		attempts := row.Attempts + 1
		status := models.OutboxStatusPending
		if maxAttempts > 0 && attempts >= maxAttempts {
			status = models.OutboxStatusDead
			dead = true
		}
		message := ""
		if cause != nil {
			message = cause.Error()
		}
		return tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND status = ?", id, models.OutboxStatusPending).
			Updates(map[string]interface{}{
				"attempts":   attempts,
				"status":     status,
				"last_error": message,
			}).Error
	})
	if err != nil {
		return false, fmt.Errorf("outbox store: mark failed: %w", err)
	}
	return dead, nil
}

// PurgeSent deletes sent rows older than before.
func (s *OutboxStore) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("status = ? AND sent_at < ?", models.OutboxStatusSent, before).
		Delete(&models.OutboxEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("outbox store: purge sent: %w", result.Error)
	}
	return result.RowsAffected, nil
}
