package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/partyfinder/internal/cache"
	"github.com/charlesng35/partyfinder/internal/party"
	"github.com/charlesng35/partyfinder/pkg/logger"
	"github.com/charlesng35/partyfinder/pkg/metrics"
)

const (
	DefaultProjectionCacheTTL = 5 * time.Second

	projectionKeyPrefix           = "party:my:"
	projectionGenerationKeyPrefix = "party:my-gen:"
)

// cachedProjection pins a cached view to the generation it was computed under. Every
// commit rotates the generation of the users it touched, so a view computed before the
// commit but written after the invalidation is never served.
type cachedProjection struct {
	Generation string          `json:"generation"`
	View       party.MyParties `json:"view"`
}

// PartyServiceConfig tunes the service layer around the engine.
type PartyServiceConfig struct {
	Options            party.Options
	ProjectionCacheTTL time.Duration
}

// PostDetail is a post with per-slot occupancy and pending counts.
type PostDetail struct {
	party.Post
	Occupancy    []party.Occupancy `json:"occupancy"`
	PendingCount int               `json:"pending_count"`
	OpenSlots    int               `json:"open_slots"`
}

// ApplicationPage is one keyset page of applications.
type ApplicationPage struct {
	Items      []party.Application `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// PostPage is one keyset page of posts.
type PostPage struct {
	Items      []party.Post `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// Actor identifies the caller for audit purposes.
type Actor struct {
	UserID    string
	IPAddress string
	UserAgent string
}

// PartyService wires the admission engine, ledger and aggregator to caching, auditing and metrics.
type PartyService struct {
	reader     party.Reader
	engine     *party.Engine
	ledger     *party.Ledger
	aggregator *party.Aggregator

	cache    cache.Store
	cacheTTL time.Duration
	audit    *AuditService
	log      *zap.Logger
}

// NewPartyService builds the engine and ledger over store. cacheStore and audit are optional.
func NewPartyService(store party.Store, cacheStore cache.Store, audit *AuditService, cfg PartyServiceConfig) (*PartyService, error) {
	if store == nil {
		return nil, errors.New("party service: store is required")
	}

	s := &PartyService{
		reader:   store,
		cache:    cacheStore,
		cacheTTL: cfg.ProjectionCacheTTL,
		audit:    audit,
		log:      logger.WithModule("party"),
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultProjectionCacheTTL
	}

	opts := cfg.Options
	next := opts.OnCommit
	opts.OnCommit = func(ctx context.Context, events []party.Event) {
		s.invalidate(ctx, party.AffectedUsers(events)...)
		if next != nil {
			next(ctx, events)
		}
	}

	var err error
	if s.engine, err = party.NewEngine(store, opts); err != nil {
		return nil, err
	}
	if s.ledger, err = party.NewLedger(store, opts); err != nil {
		return nil, err
	}
	if s.aggregator, err = party.NewAggregator(store); err != nil {
		return nil, err
	}
	return s, nil
}

// Engine exposes the underlying engine for maintenance jobs.
func (s *PartyService) Engine() *party.Engine {
	return s.engine
}

func (s *PartyService) CreatePost(ctx context.Context, in party.CreatePostInput) (party.Post, error) {
	post, err := s.engine.CreatePost(ensureContext(ctx), in)
	s.observe("create_post", err, zap.String("owner_id", in.OwnerID), zap.String("post_id", post.ID))
	if err == nil {
		s.invalidate(ctx, in.OwnerID)
	}
	return post, err
}

func (s *PartyService) UpdatePost(ctx context.Context, actor Actor, postID string, in party.UpdatePostInput) (party.Post, error) {
	ctx = ensureContext(ctx)
	post, err := s.engine.UpdatePostMetadata(ctx, postID, actor.UserID, in)
	s.observe("update_post", err, zap.String("post_id", postID))
	if err != nil {
		return post, err
	}
	s.invalidate(ctx, s.audience(ctx, post)...)
	return post, nil
}

func (s *PartyService) ClosePost(ctx context.Context, actor Actor, postID string) (party.Post, error) {
	post, err := s.engine.ClosePost(ensureContext(ctx), postID, actor.UserID)
	s.observe("close_post", err, zap.String("post_id", postID))
	s.auditOwnerAction(ctx, actor, "party.close", postID, err, nil)
	return post, err
}

func (s *PartyService) DeletePost(ctx context.Context, actor Actor, postID string) error {
	err := s.engine.DeletePost(ensureContext(ctx), postID, actor.UserID)
	s.observe("delete_post", err, zap.String("post_id", postID))
	s.auditOwnerAction(ctx, actor, "party.delete", postID, err, nil)
	return err
}

// GetPost returns the post with slot occupancy.
func (s *PartyService) GetPost(ctx context.Context, postID string) (PostDetail, error) {
	set, err := party.LoadSlotSet(ensureContext(ctx), s.reader, postID)
	if err != nil {
		return PostDetail{}, err
	}
	return PostDetail{
		Post:         set.Post(),
		Occupancy:    set.All(),
		PendingCount: set.PendingTotal(),
		OpenSlots:    set.OpenCount(),
	}, nil
}

// ListPosts pages posts newest first. The cursor is the last post id of the previous page.
func (s *PartyService) ListPosts(ctx context.Context, filter party.PostFilter) (PostPage, error) {
	posts, err := s.reader.ListPosts(ensureContext(ctx), filter)
	if err != nil {
		return PostPage{}, err
	}
	page := PostPage{Items: posts}
	if filter.Limit > 0 && len(posts) == filter.Limit {
		page.NextCursor = posts[len(posts)-1].ID
	}
	return page, nil
}

func (s *PartyService) Submit(ctx context.Context, in party.SubmitInput) (party.Application, error) {
	app, err := s.ledger.Submit(ensureContext(ctx), in)
	s.observe("submit", err,
		zap.String("post_id", in.PostID),
		zap.String("slot_id", in.SlotID),
		zap.String("applicant_id", in.ApplicantID))
	return app, err
}

func (s *PartyService) Withdraw(ctx context.Context, actor Actor, applicationID string) (party.Application, error) {
	app, err := s.ledger.Withdraw(ensureContext(ctx), applicationID, actor.UserID)
	s.observe("withdraw", err, zap.String("application_id", applicationID))
	return app, err
}

func (s *PartyService) Approve(ctx context.Context, actor Actor, postID, slotID, applicationID string) (party.Application, error) {
	app, err := s.engine.Approve(ensureContext(ctx), postID, slotID, applicationID, actor.UserID)
	s.observe("approve", err, zap.String("post_id", postID), zap.String("application_id", applicationID))
	s.auditOwnerAction(ctx, actor, "application.approve", postID, err, map[string]any{
		"slot_id":        slotID,
		"application_id": applicationID,
	})
	return app, err
}

func (s *PartyService) Reject(ctx context.Context, actor Actor, postID, slotID, applicationID string) (party.Application, error) {
	app, err := s.engine.Reject(ensureContext(ctx), postID, slotID, applicationID, actor.UserID)
	s.observe("reject", err, zap.String("post_id", postID), zap.String("application_id", applicationID))
	s.auditOwnerAction(ctx, actor, "application.reject", postID, err, map[string]any{
		"slot_id":        slotID,
		"application_id": applicationID,
	})
	return app, err
}

func (s *PartyService) Revoke(ctx context.Context, actor Actor, postID, slotID string) (party.Application, error) {
	app, err := s.engine.Revoke(ensureContext(ctx), postID, slotID, actor.UserID)
	s.observe("revoke", err, zap.String("post_id", postID), zap.String("slot_id", slotID))
	s.auditOwnerAction(ctx, actor, "application.revoke", postID, err, map[string]any{
		"slot_id":        slotID,
		"application_id": app.ID,
	})
	return app, err
}

// ApplicationsForPost pages a post's applications. Only the owner may list them.
func (s *PartyService) ApplicationsForPost(ctx context.Context, actor Actor, postID, cursor string, limit int) (ApplicationPage, error) {
	ctx = ensureContext(ctx)
	post, err := s.reader.Post(ctx, postID)
	if err != nil {
		return ApplicationPage{}, err
	}
	if post.OwnerID != actor.UserID {
		return ApplicationPage{}, party.ErrNotOwner
	}
	return s.page(cursor, limit, func(after party.Cursor, n int) ([]party.Application, error) {
		return s.reader.ApplicationsByPost(ctx, post.ID, after, n)
	})
}

// MyApplications pages the caller's applications.
func (s *PartyService) MyApplications(ctx context.Context, actor Actor, cursor string, limit int) (ApplicationPage, error) {
	ctx = ensureContext(ctx)
	return s.page(cursor, limit, func(after party.Cursor, n int) ([]party.Application, error) {
		return s.reader.ApplicationsByApplicant(ctx, actor.UserID, after, n)
	})
}

// MyParties serves the per-user projection through the projection cache.
func (s *PartyService) MyParties(ctx context.Context, userID string) (party.MyParties, error) {
	ctx = ensureContext(ctx)
	key := projectionKeyPrefix + userID

	// The generation is read before the projection is computed.
	var generation string
	if s.cache != nil {
		var err error
		if generation, err = s.projectionGeneration(ctx, userID); err != nil {
			s.log.Warn("projection cache read failed", zap.String("user_id", userID), zap.Error(err))
		} else if raw, ok, err := s.cache.Get(ctx, key); err != nil {
			s.log.Warn("projection cache read failed", zap.String("user_id", userID), zap.Error(err))
		} else if ok {
			var cached cachedProjection
			if err := json.Unmarshal(raw, &cached); err == nil && cached.Generation == generation {
				return cached.View, nil
			}
		}
	}

	view, err := s.aggregator.MyParties(ctx, userID)
	if err != nil {
		return party.MyParties{}, fmt.Errorf("party service: my parties: %w", err)
	}

	if generation != "" {
		if raw, err := json.Marshal(cachedProjection{Generation: generation, View: view}); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.log.Warn("projection cache write failed", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}
	return view, nil
}

// projectionGeneration returns the user's current generation, starting one when none is live.
func (s *PartyService) projectionGeneration(ctx context.Context, userID string) (string, error) {
	key := projectionGenerationKeyPrefix + userID
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if ok && len(raw) > 0 {
		return string(raw), nil
	}
	generation := uuid.NewString()
	if err := s.cache.Set(ctx, key, []byte(generation), s.generationTTL()); err != nil {
		return "", err
	}
	return generation, nil
}

// generationTTL outlives every projection written under the generation.
func (s *PartyService) generationTTL() time.Duration {
	return 2 * s.cacheTTL
}

// InvalidateEvents drops cached projections of every user an event batch touches.
func (s *PartyService) InvalidateEvents(ctx context.Context, events []party.Event) error {
	if s.cache == nil {
		return nil
	}
	return s.rotateProjections(ensureContext(ctx), party.AffectedUsers(events))
}

func (s *PartyService) invalidate(ctx context.Context, userIDs ...string) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := s.rotateProjections(ensureContext(ctx), userIDs); err != nil {
		s.log.Warn("projection cache invalidation failed", zap.Strings("user_ids", userIDs), zap.Error(err))
	}
}

// rotateProjections starts a new generation for each user and drops their cached views.
func (s *PartyService) rotateProjections(ctx context.Context, userIDs []string) error {
	var errs error
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		err := s.cache.Set(ctx, projectionGenerationKeyPrefix+id, []byte(uuid.NewString()), s.generationTTL())
		errs = multierr.Append(errs, err)
	}
	if keys := projectionKeys(userIDs); len(keys) > 0 {
		errs = multierr.Append(errs, s.cache.Delete(ctx, keys...))
	}
	return errs
}

// audience is the owner plus every live applicant of post.
func (s *PartyService) audience(ctx context.Context, post party.Post) []string {
	users := []string{post.OwnerID}
	for app, err := range s.ledger.ListByPost(ctx, post.ID) {
		if err != nil {
			s.log.Warn("list post audience failed", zap.String("post_id", post.ID), zap.Error(err))
			break
		}
		if app.Status.Live() {
			users = append(users, app.ApplicantID)
		}
	}
	return users
}

func (s *PartyService) page(cursor string, limit int, fetch func(party.Cursor, int) ([]party.Application, error)) (ApplicationPage, error) {
	after, err := DecodeCursor(cursor)
	if err != nil {
		return ApplicationPage{}, err
	}
	limit = clampLimit(limit, 20, 100)
	items, err := fetch(after, limit)
	if err != nil {
		return ApplicationPage{}, err
	}
	page := ApplicationPage{Items: items}
	if len(items) == limit {
		page.NextCursor = EncodeCursor(party.After(items[len(items)-1]))
	}
	return page, nil
}

func (s *PartyService) observe(operation string, err error, fields ...zap.Field) {
	code := party.Code(err)
	metrics.ObserveAdmission(operation, code)

	fields = append(fields, zap.String("operation", operation), zap.String("result", code))
	switch party.KindOf(err) {
	case party.KindNone:
		s.log.Debug("admission operation", fields...)
	case party.KindInternal:
		s.log.Error("admission operation failed", append(fields, zap.Error(err))...)
	default:
		s.log.Info("admission operation refused", fields...)
	}
}

func (s *PartyService) auditOwnerAction(ctx context.Context, actor Actor, action, postID string, err error, metadata map[string]any) {
	result := AuditResultSuccess
	if err != nil {
		result = AuditResultFailure
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["error"] = party.Code(err)
	}
	recordAudit(ensureContext(ctx), s.audit, s.log, AuditEntry{
		UserID:    actor.UserID,
		Action:    action,
		Resource:  "party:" + postID,
		Result:    result,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		Metadata:  metadata,
	})
}

func projectionKeys(userIDs []string) []string {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			keys = append(keys, projectionKeyPrefix+id)
		}
	}
	return keys
}
