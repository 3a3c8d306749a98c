package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/partyfinder/internal/models"
)

// Audit results.
const (
	AuditResultSuccess = "success"
	AuditResultFailure = "failure"
)

// AuditEntry captures a single owner action to persist.
type AuditEntry struct {
	UserID    string
	Action    string
	Resource  string
	Result    string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// AuditFilters narrows audit queries.
type AuditFilters struct {
	UserID   string
	Action   string
	Resource string
	Since    *time.Time
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

// AuditOption customises an AuditService.
type AuditOption func(*AuditService)

// WithAuditClock overrides the clock used for retention cut-offs.
func WithAuditClock(now func() time.Time) AuditOption {
	return func(s *AuditService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuditService(db *gorm.DB, opts ...AuditOption) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	s := &AuditService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Log stores an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return errors.New("audit service: action is required")
	}
	row := models.AuditLog{
		Action:    action,
		Resource:  strings.TrimSpace(entry.Resource),
		Result:    defaultIfEmpty(strings.TrimSpace(entry.Result), AuditResultSuccess),
		IPAddress: strings.TrimSpace(entry.IPAddress),
		UserAgent: strings.TrimSpace(entry.UserAgent),
	}
	if id := strings.TrimSpace(entry.UserID); id != "" {
		row.UserID = &id
	}
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("audit service: create log: %w", err)
	}
	return nil
}

// List returns the newest entries matching filters.
func (s *AuditService) List(ctx context.Context, filters AuditFilters, limit int) ([]models.AuditLog, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Resource != "" {
		query = query.Where("resource = ?", filters.Resource)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", filters.Since.UTC())
	}

	var rows []models.AuditLog
	if err := query.
		Order("created_at DESC").
		Limit(clampLimit(limit, 50, 200)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("audit service: list logs: %w", err)
	}
	return rows, nil
}

// CleanupOlderThan removes entries older than retentionDays.
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)
	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
