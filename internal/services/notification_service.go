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
	"gorm.io/gorm/clause"

	"github.com/charlesng35/partyfinder/internal/models"
	"github.com/charlesng35/partyfinder/internal/realtime"
	apperrors "github.com/charlesng35/partyfinder/pkg/errors"
)

// NotificationDTO is the API shape of a notification.
type NotificationDTO struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	PostID    string         `json:"post_id,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// CreateNotificationInput defines a notification to persist.
type CreateNotificationInput struct {
	UserID    string
	PostID    string
	Type      string
	Title     string
	Message   string
	Severity  string
	ActionURL string
	Metadata  map[string]any
	// DedupKey makes Create idempotent: a second input with the same key returns the stored row.
	DedupKey string
}

// ListNotificationsInput filters a user's notifications.
type ListNotificationsInput struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}

// NotificationService manages per-user notifications and pushes them over the realtime hub.
type NotificationService struct {
	db  *gorm.DB
	hub realtime.Broadcaster
	now func() time.Time
}

func NewNotificationService(db *gorm.DB, hub realtime.Broadcaster) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, hub: hub, now: time.Now}, nil
}

// ListForUser returns notifications newest first.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(input.Limit, 25, 100)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items, nil
}

// Create persists a notification and pushes it to the user's open connections.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	kind := strings.TrimSpace(input.Type)
	if kind == "" {
		return nil, errors.New("notification service: type is required")
	}

	row := models.Notification{
		UserID:    userID,
		Type:      kind,
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Severity:  defaultIfEmpty(strings.TrimSpace(input.Severity), "info"),
		ActionURL: strings.TrimSpace(input.ActionURL),
	}
	if postID := strings.TrimSpace(input.PostID); postID != "" {
		row.PostID = &postID
	}
	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(data)
	}

	if key := strings.TrimSpace(input.DedupKey); key != "" {
		row.DedupKey = &key
		result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			return nil, fmt.Errorf("notification service: create notification: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var existing models.Notification
			if err := s.db.WithContext(ctx).Where("dedup_key = ?", key).Take(&existing).Error; err != nil {
				return nil, fmt.Errorf("notification service: load delivered notification: %w", err)
			}
			dto := mapNotification(existing)
			return &dto, nil
		}
	} else if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	dto := mapNotification(row)
	s.push(userID, "notification.created", dto)
	return &dto, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var row models.Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("Notification not found")
	}
	if err != nil {
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	if !row.IsRead {
		now := s.now().UTC()
		if err := s.db.WithContext(ctx).Model(&row).Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
			return nil, fmt.Errorf("notification service: mark read: %w", err)
		}
		row.IsRead = true
		row.ReadAt = &now
	}

	dto := mapNotification(row)
	s.push(userID, "notification.read", dto)
	return &dto, nil
}

// MarkAllRead flags every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now().UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.push(userID, "notification.read_all", nil)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) push(userID, event string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToUsers(realtime.StreamNotifications, []string{userID}, realtime.Message{
		Event: event,
		Data:  data,
	})
}

func mapNotification(row models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Severity:  defaultIfEmpty(row.Severity, "info"),
		ActionURL: row.ActionURL,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		ReadAt:    row.ReadAt,
	}
	if row.PostID != nil {
		dto.PostID = *row.PostID
	}
	if len(row.Metadata) > 0 {
		_ = json.Unmarshal(row.Metadata, &dto.Metadata)
	}
	return dto
}
