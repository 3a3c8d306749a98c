package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/partyfinder/internal/models"
	"github.com/charlesng35/partyfinder/internal/party"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var liveStatuses = []string{party.ApplicationPending.String(), party.ApplicationAccepted.String()}

// PartyStore implements party.Store on gorm. Conditional updates report success through the
// affected row count.
type PartyStore struct {
	db *gorm.DB
}

var _ party.Store = (*PartyStore)(nil)

// NewPartyStore constructs a PartyStore.
func NewPartyStore(db *gorm.DB) (*PartyStore, error) {
	if db == nil {
		return nil, errors.New("party store: db is required")
	}
	return &PartyStore{db: db}, nil
}

// Atomic runs fn in a database transaction.
func (s *PartyStore) Atomic(ctx context.Context, fn func(tx party.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&partyTx{db: tx})
	})
}

func (s *PartyStore) Post(ctx context.Context, postID string) (party.Post, error) {
	return loadPost(s.db.WithContext(ctx), postID)
}

func (s *PartyStore) Application(ctx context.Context, applicationID string) (party.Application, error) {
	return loadApplication(s.db.WithContext(ctx), applicationID)
}

func (s *PartyStore) PendingCounts(ctx context.Context, postID string) (map[string]int, error) {
	counts := map[string]int{}
	if !validID(postID) {
		return counts, nil
	}

	var rows []struct {
		SlotID string
		Total  int
	}
	err := s.db.WithContext(ctx).
		Model(&models.PartyApplication{}).
		Select("slot_id, COUNT(*) AS total").
		Where("post_id = ? AND status = ?", postID, party.ApplicationPending.String()).
		Group("slot_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("party store: pending counts: %w", err)
	}
	for _, row := range rows {
		counts[row.SlotID] = row.Total
	}
	return counts, nil
}

func (s *PartyStore) ListPosts(ctx context.Context, filter party.PostFilter) ([]party.Post, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := s.db.WithContext(ctx).Model(&models.PartyPost{})
	if filter.DungeonType != "" {
		query = query.Where("dungeon_type = ?", filter.DungeonType)
	}
	if filter.Status != party.PostUnspecified {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.AfterID != "" && validID(filter.AfterID) {
		var anchor models.PartyPost
		err := s.db.WithContext(ctx).Select("id", "created_at").Take(&anchor, "id = ?", filter.AfterID).Error
		switch {
		case err == nil:
			query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("party store: load cursor post: %w", err)
		}
	}

	var rows []models.PartyPost
	err := query.
		Preload("Slots", orderSlots).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("party store: list posts: %w", err)
	}

	posts := make([]party.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, toPost(row))
	}
	return posts, nil
}

func (s *PartyStore) ApplicationsByPost(ctx context.Context, postID string, after party.Cursor, limit int) ([]party.Application, error) {
	if !validID(postID) {
		return []party.Application{}, nil
	}
	return s.pageApplications(ctx, "post_id = ?", postID, after, limit)
}

func (s *PartyStore) ApplicationsByApplicant(ctx context.Context, applicantID string, after party.Cursor, limit int) ([]party.Application, error) {
	return s.pageApplications(ctx, "applicant_id = ?", applicantID, after, limit)
}

func (s *PartyStore) pageApplications(ctx context.Context, where string, arg string, after party.Cursor, limit int) ([]party.Application, error) {
	if limit <= 0 {
		limit = party.DefaultPageSize
	}

	query := s.db.WithContext(ctx).Where(where, arg)
	if !after.IsZero() {
		query = query.Where("(submitted_at > ?) OR (submitted_at = ? AND id > ?)", after.SubmittedAt, after.SubmittedAt, after.ID)
	}

	var rows []models.PartyApplication
	if err := query.Order("submitted_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("party store: page applications: %w", err)
	}

	apps := make([]party.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, toApplication(row))
	}
	return apps, nil
}

// UserSnapshot reads the user's posts and live applications inside one transaction.
func (s *PartyStore) UserSnapshot(ctx context.Context, userID string) (party.UserSnapshot, error) {
	snapshot := party.UserSnapshot{
		PendingByPost: map[string]int{},
		Posts:         map[string]party.Post{},
	}
	if userID == "" {
		return snapshot, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []models.PartyPost
		if err := tx.Preload("Slots", orderSlots).Where("owner_id = ?", userID).Find(&owned).Error; err != nil {
			return fmt.Errorf("load owned posts: %w", err)
		}
		ownedIDs := make([]string, 0, len(owned))
		for _, row := range owned {
			snapshot.Owned = append(snapshot.Owned, toPost(row))
			ownedIDs = append(ownedIDs, row.ID)
		}

		if len(ownedIDs) > 0 {
			var counts []struct {
				PostID string
				Total  int
			}
			err := tx.Model(&models.PartyApplication{}).
				Select("post_id, COUNT(*) AS total").
				Where("post_id IN ? AND status = ?", ownedIDs, party.ApplicationPending.String()).
				Group("post_id").
				Scan(&counts).Error
			if err != nil {
				return fmt.Errorf("count pending applications: %w", err)
			}
			for _, row := range counts {
				snapshot.PendingByPost[row.PostID] = row.Total
			}
		}

		var live []models.PartyApplication
		err := tx.Where("applicant_id = ? AND status IN ?", userID, liveStatuses).
			Order("submitted_at ASC").
			Find(&live).Error
		if err != nil {
			return fmt.Errorf("load live applications: %w", err)
		}
		if len(live) == 0 {
			return nil
		}

		postIDs := make([]string, 0, len(live))
		for _, row := range live {
			snapshot.Live = append(snapshot.Live, toApplication(row))
			postIDs = append(postIDs, row.PostID)
		}
		var posts []models.PartyPost
		if err := tx.Preload("Slots", orderSlots).Where("id IN ?", postIDs).Find(&posts).Error; err != nil {
			return fmt.Errorf("load joined posts: %w", err)
		}
		for _, row := range posts {
			snapshot.Posts[row.ID] = toPost(row)
		}
		return nil
	})
	if err != nil {
		return party.UserSnapshot{}, fmt.Errorf("party store: user snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *PartyStore) ExpiredPosts(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = maxListLimit
	}
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.PartyPost{}).
		Where("status IN ? AND expires_at <= ?", statusLabels([]party.PostStatus{party.PostRecruiting, party.PostFull}), now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("party store: expired posts: %w", err)
	}
	return ids, nil
}

func (s *PartyStore) CountOpenSlots(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.PartySlot{}).
		Joins("JOIN party_posts ON party_posts.id = party_slots.post_id").
		Where("party_posts.status = ? AND party_slots.occupant_application_id IS NULL", party.PostRecruiting.String()).
		Count(&total).Error
	if err != nil {
		return 0, fmt.Errorf("party store: count open slots: %w", err)
	}
	return total, nil
}

// ReconcileStatuses realigns recruiting/full with slot occupancy. Admissions committed
// concurrently on different slots of the same post can each miss the other's claim.
func (s *PartyStore) ReconcileStatuses(ctx context.Context) (int64, error) {
	var changed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		openSlot := tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.PartySlot{}).
			Select("1").
			Where("party_slots.post_id = party_posts.id AND party_slots.occupant_application_id IS NULL")

		now := time.Now().UTC()
		toFull := tx.Model(&models.PartyPost{}).
			Where("status = ?", party.PostRecruiting.String()).
			Where("NOT EXISTS (?)", openSlot).
			Updates(map[string]interface{}{"status": party.PostFull.String(), "updated_at": now})
		if toFull.Error != nil {
			return toFull.Error
		}
		toRecruiting := tx.Model(&models.PartyPost{}).
			Where("status = ?", party.PostFull.String()).
			Where("EXISTS (?)", openSlot).
			Updates(map[string]interface{}{"status": party.PostRecruiting.String(), "updated_at": now})
		if toRecruiting.Error != nil {
			return toRecruiting.Error
		}
		changed = toFull.RowsAffected + toRecruiting.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("party store: reconcile statuses: %w", err)
	}
	return changed, nil
}

type partyTx struct {
	db *gorm.DB
}

func (t *partyTx) Post(postID string) (party.Post, error) {
	return loadPost(t.db, postID)
}

func (t *partyTx) Application(applicationID string) (party.Application, error) {
	return loadApplication(t.db, applicationID)
}

func (t *partyTx) InsertPost(post *party.Post) error {
	row := fromPost(*post)
	if err := t.db.Create(&row).Error; err != nil {
		return fmt.Errorf("party store: insert post: %w", err)
	}
	post.ID = row.ID
	post.CreatedAt = row.CreatedAt
	post.UpdatedAt = row.UpdatedAt
	for i := range post.Slots {
		post.Slots[i].ID = row.Slots[i].ID
		post.Slots[i].PostID = row.ID
	}
	return nil
}

func (t *partyTx) UpdatePostMetadata(post party.Post) error {
	err := t.db.Model(&models.PartyPost{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"title":            post.Title,
			"description":      post.Description,
			"dungeon_tier":     post.DungeonTier,
			"is_immediate":     post.Schedule.IsImmediate,
			"scheduled_at":     post.Schedule.StartsAt,
			"scheduled_end":    post.Schedule.EndsAt,
			"run_count":        post.Schedule.RunCount,
			"min_item_level":   post.Requirements.MinItemLevel,
			"min_breakthrough": post.Requirements.MinBreakthrough,
			"min_combat_power": post.Requirements.MinCombatPower,
			"expires_at":       post.ExpiresAt,
			"updated_at":       post.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("party store: update post: %w", err)
	}
	return nil
}

func (t *partyTx) SetPostStatus(postID string, from []party.PostStatus, to party.PostStatus) (bool, error) {
	result := t.db.Model(&models.PartyPost{}).
		Where("id = ? AND status IN ?", postID, statusLabels(from)).
		Updates(map[string]interface{}{"status": to.String(), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, fmt.Errorf("party store: set post status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (t *partyTx) DeletePost(postID string) error {
	if err := t.db.Where("post_id = ?", postID).Delete(&models.PartyApplication{}).Error; err != nil {
		return fmt.Errorf("party store: delete applications: %w", err)
	}
	if err := t.db.Where("post_id = ?", postID).Delete(&models.PartySlot{}).Error; err != nil {
		return fmt.Errorf("party store: delete slots: %w", err)
	}
	result := t.db.Where("id = ?", postID).Delete(&models.PartyPost{})
	if result.Error != nil {
		return fmt.Errorf("party store: delete post: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return party.ErrPostNotFound
	}
	return nil
}

func (t *partyTx) LockOpenSlot(slotID string) error {
	if !validID(slotID) {
		return party.ErrSlotNotFound
	}
	var slot models.PartySlot
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&slot, "id = ?", slotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return party.ErrSlotNotFound
	}
	if err != nil {
		return fmt.Errorf("party store: lock slot: %w", err)
	}
	if slot.OccupantApplicationID != nil {
		return party.ErrSlotFull
	}
	return nil
}

func (t *partyTx) ClaimSlot(slotID, applicationID string) (bool, error) {
	result := t.db.Model(&models.PartySlot{}).
		Where("id = ? AND occupant_application_id IS NULL", slotID).
		Updates(map[string]interface{}{"occupant_application_id": applicationID, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, fmt.Errorf("party store: claim slot: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (t *partyTx) ReleaseSlot(slotID, applicationID string) (bool, error) {
	result := t.db.Model(&models.PartySlot{}).
		Where("id = ? AND occupant_application_id = ?", slotID, applicationID).
		Updates(map[string]interface{}{"occupant_application_id": nil, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, fmt.Errorf("party store: release slot: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (t *partyTx) InsertApplication(app *party.Application) error {
	row := fromApplication(*app)
	if err := t.db.Create(&row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return party.ErrDuplicateApplication
		}
		return fmt.Errorf("party store: insert application: %w", err)
	}
	app.ID = row.ID
	return nil
}

func (t *partyTx) TransitionApplication(applicationID string, from, to party.ApplicationStatus, reason party.RejectReason, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     to.String(),
		"reason":     string(reason),
		"updated_at": at,
	}
	if to != party.ApplicationPending {
		updates["decided_at"] = at
	}
	if !to.Live() {
		updates["live_key"] = nil
	}

	result := t.db.Model(&models.PartyApplication{}).
		Where("id = ? AND status = ?", applicationID, from.String()).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("party store: transition application: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (t *partyTx) RejectPending(postID, slotID, exceptID string, reason party.RejectReason, at time.Time) ([]party.Application, error) {
	query := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("post_id = ? AND status = ?", postID, party.ApplicationPending.String())
	if slotID != "" {
		query = query.Where("slot_id = ?", slotID)
	}
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}

	var rows []models.PartyApplication
	if err := query.Order("submitted_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("party store: load pending applications: %w", err)
	}
	if len(rows) == 0 {
		return []party.Application{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	err := t.db.Model(&models.PartyApplication{}).
		Where("id IN ? AND status = ?", ids, party.ApplicationPending.String()).
		Updates(map[string]interface{}{
			"status":     party.ApplicationRejected.String(),
			"reason":     string(reason),
			"decided_at": at,
			"updated_at": at,
			"live_key":   nil,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("party store: reject pending applications: %w", err)
	}

	rejected := make([]party.Application, 0, len(rows))
	for _, row := range rows {
		app := toApplication(row)
		app.Status = party.ApplicationRejected
		app.Reason = reason
		decided := at
		app.DecidedAt = &decided
		rejected = append(rejected, app)
	}
	return rejected, nil
}

func (t *partyTx) LiveApplicants(postID string) ([]string, error) {
	var ids []string
	err := t.db.Model(&models.PartyApplication{}).
		Where("post_id = ? AND status IN ?", postID, liveStatuses).
		Distinct().
		Pluck("applicant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("party store: live applicants: %w", err)
	}
	return ids, nil
}

func (t *partyTx) AppendEvents(events ...party.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]models.OutboxEvent, 0, len(events))
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("party store: encode event: %w", err)
		}
		rows = append(rows, models.OutboxEvent{
			EventType:   string(evt.Type),
			AggregateID: evt.PostID,
			Payload:     datatypes.JSON(payload),
			Status:      models.OutboxStatusPending,
		})
	}
	if err := t.db.Create(&rows).Error; err != nil {
		return fmt.Errorf("party store: append events: %w", err)
	}
	return nil
}

func loadPost(db *gorm.DB, postID string) (party.Post, error) {
	if !validID(postID) {
		return party.Post{}, party.ErrPostNotFound
	}
	var row models.PartyPost
	err := db.Preload("Slots", orderSlots).Take(&row, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return party.Post{}, party.ErrPostNotFound
	}
	if err != nil {
		return party.Post{}, fmt.Errorf("party store: load post: %w", err)
	}
	return toPost(row), nil
}

func loadApplication(db *gorm.DB, applicationID string) (party.Application, error) {
	if !validID(applicationID) {
		return party.Application{}, party.ErrApplicationNotFound
	}
	var row models.PartyApplication
	err := db.Take(&row, "id = ?", applicationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return party.Application{}, party.ErrApplicationNotFound
	}
	if err != nil {
		return party.Application{}, fmt.Errorf("party store: load application: %w", err)
	}
	return toApplication(row), nil
}

func orderSlots(db *gorm.DB) *gorm.DB {
	return db.Order("slot_number ASC")
}
