package party

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// SlotInput defines one slot at post creation.
type SlotInput struct {
	Role          string
	RequiredClass string
}

// LeaderInput seats the owner in one of the slots at creation.
type LeaderInput struct {
	SlotNumber int
	Character  Character
}

// CreatePostInput describes a new party post.
type CreatePostInput struct {
	OwnerID      string
	Title        string
	Description  string
	DungeonType  string
	DungeonID    string
	DungeonName  string
	DungeonTier  int
	Schedule     Schedule
	JoinType     JoinType
	Requirements Requirements
	Slots        []SlotInput
	Leader       *LeaderInput
}

// UpdatePostInput carries the metadata fields an owner may change. Nil fields are left alone.
type UpdatePostInput struct {
	Title        *string
	Description  *string
	DungeonTier  *int
	Schedule     *Schedule
	Requirements *Requirements
}

// Engine enforces owner-only admission with at most one accepted application per slot.
type Engine struct {
	store Store
	opts  Options
}

// NewEngine constructs an Engine over store.
func NewEngine(store Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("admission engine: store is required")
	}
	return &Engine{store: store, opts: opts.withDefaults()}, nil
}

// CreatePost stores a post with fixed slots, optionally seating the owner as leader.
func (e *Engine) CreatePost(ctx context.Context, in CreatePostInput) (Post, error) {
	in, err := e.normalizeCreateInput(in)
	if err != nil {
		return Post{}, err
	}

	now := e.opts.now()
	post := Post{
		OwnerID:      in.OwnerID,
		Title:        in.Title,
		Description:  in.Description,
		DungeonType:  in.DungeonType,
		DungeonID:    in.DungeonID,
		DungeonName:  in.DungeonName,
		DungeonTier:  in.DungeonTier,
		Schedule:     in.Schedule,
		JoinType:     in.JoinType,
		Requirements: in.Requirements,
		Status:       PostRecruiting,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	post.ExpiresAt = e.expiresAt(now, post.Schedule)
	for i, slot := range in.Slots {
		post.Slots = append(post.Slots, Slot{
			Number:        i + 1,
			PartyNumber:   partyNumber(i + 1),
			Role:          slot.Role,
			RequiredClass: slot.RequiredClass,
		})
	}

	err = e.store.Atomic(ctx, func(tx Tx) error {
		created := post
		created.Slots = append([]Slot(nil), post.Slots...)
		if err := tx.InsertPost(&created); err != nil {
			return err
		}
		if in.Leader != nil {
			slot := created.Slots[in.Leader.SlotNumber-1]
			leader := Application{
				PostID:      created.ID,
				SlotID:      slot.ID,
				ApplicantID: created.OwnerID,
				Character:   in.Leader.Character,
				Status:      ApplicationPending,
				SubmittedAt: now,
			}
			if err := tx.InsertApplication(&leader); err != nil {
				return err
			}
			if _, _, err := admit(tx, created, slot, leader, created.OwnerID, now); err != nil {
				return err
			}
			reloaded, err := tx.Post(created.ID)
			if err != nil {
				return err
			}
			created = reloaded
		}
		post = created
		return nil
	})
	if err != nil {
		return Post{}, err
	}
	return post, nil
}

// UpdatePostMetadata edits descriptive fields. Slots are never touched.
func (e *Engine) UpdatePostMetadata(ctx context.Context, postID, requesterID string, in UpdatePostInput) (Post, error) {
	var updated Post
	err := e.store.Atomic(ctx, func(tx Tx) error {
		post, err := e.ownedPost(tx, postID, requesterID)
		if err != nil {
			return err
		}
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return invalidInput("title is required")
			}
			post.Title = title
		}
		if in.Description != nil {
			post.Description = strings.TrimSpace(*in.Description)
		}
		if in.DungeonTier != nil {
			post.DungeonTier = *in.DungeonTier
		}
		if in.Requirements != nil {
			post.Requirements = *in.Requirements
		}
		if in.Schedule != nil {
			schedule, err := normalizeSchedule(*in.Schedule)
			if err != nil {
				return err
			}
			post.Schedule = schedule
			post.ExpiresAt = e.expiresAt(post.CreatedAt, schedule)
		}
		post.UpdatedAt = e.opts.now()
		if err := tx.UpdatePostMetadata(post); err != nil {
			return err
		}
		updated = post
		return nil
	})
	if err != nil {
		return Post{}, err
	}
	return updated, nil
}

// Approve accepts a pending application, fills its slot and rejects the slot's other
// pending applications in one atomic step.
func (e *Engine) Approve(ctx context.Context, postID, slotID, applicationID, requesterID string) (Application, error) {
	now := e.opts.now()
	var (
		accepted Application
		events   []Event
	)
	err := e.store.Atomic(ctx, func(tx Tx) error {
		post, slot, app, err := e.ownedApplication(tx, postID, slotID, applicationID, requesterID)
		if err != nil {
			return err
		}
		if post.Status == PostClosed {
			return ErrInvalidTransition.WithMessage("Party post is closed")
		}
		if app.Status != ApplicationPending {
			return ErrInvalidTransition.WithMessage("Application is not pending")
		}
		if slot.State() == SlotFilled {
			return ErrInvalidTransition.WithMessage("Slot is already filled")
		}

		accepted, events, err = admit(tx, post, slot, app, requesterID, now)
		if err != nil {
			return err
		}
		return tx.AppendEvents(events...)
	})
	if err != nil {
		return Application{}, err
	}

	e.opts.committed(ctx, events)
	return accepted, nil
}

// Reject declines a pending application. Slot occupancy is unchanged.
func (e *Engine) Reject(ctx context.Context, postID, slotID, applicationID, requesterID string) (Application, error) {
	now := e.opts.now()
	var (
		rejected Application
		events   []Event
	)
	err := e.store.Atomic(ctx, func(tx Tx) error {
		post, _, app, err := e.ownedApplication(tx, postID, slotID, applicationID, requesterID)
		if err != nil {
			return err
		}
		if app.Status != ApplicationPending {
			return ErrInvalidTransition.WithMessage("Application is not pending")
		}
		ok, err := tx.TransitionApplication(app.ID, ApplicationPending, ApplicationRejected, ReasonOwner, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}

		app.Status = ApplicationRejected
		app.Reason = ReasonOwner
		app.DecidedAt = &now
		rejected = app
		events = []Event{applicationEvent(EventApplicationRejected, post, app, requesterID, now)}
		return tx.AppendEvents(events...)
	})
	if err != nil {
		return Application{}, err
	}

	e.opts.committed(ctx, events)
	return rejected, nil
}

// Revoke reopens a filled slot and moves its accepted application to rejected.
func (e *Engine) Revoke(ctx context.Context, postID, slotID, requesterID string) (Application, error) {
	now := e.opts.now()
	var (
		revoked Application
		events  []Event
	)
	err := e.store.Atomic(ctx, func(tx Tx) error {
		post, err := e.ownedPost(tx, postID, requesterID)
		if err != nil {
			return err
		}
		slot, ok := post.Slot(slotID)
		if !ok {
			return ErrSlotNotFound
		}
		if post.Status == PostClosed {
			return ErrInvalidTransition.WithMessage("Party post is closed")
		}
		if slot.State() != SlotFilled {
			return ErrInvalidTransition.WithMessage("Slot is not filled")
		}

		released, err := tx.ReleaseSlot(slot.ID, slot.OccupantID)
		if err != nil {
			return err
		}
		if !released {
			return ErrInvalidTransition.WithMessage("Slot is not filled")
		}
		moved, err := tx.TransitionApplication(slot.OccupantID, ApplicationAccepted, ApplicationRejected, ReasonRevoked, now)
		if err != nil {
			return err
		}
		if !moved {
			return ErrInvalidTransition
		}
		if _, err := tx.SetPostStatus(post.ID, []PostStatus{PostFull}, PostRecruiting); err != nil {
			return err
		}

		app, err := tx.Application(slot.OccupantID)
		if err != nil {
			return err
		}
		revoked = app
		events = []Event{applicationEvent(EventApplicationRejected, post, app, requesterID, now)}
		return tx.AppendEvents(events...)
	})
	if err != nil {
		return Application{}, err
	}

	e.opts.committed(ctx, events)
	return revoked, nil
}

// ClosePost stops recruiting and rejects every pending application.
func (e *Engine) ClosePost(ctx context.Context, postID, requesterID string) (Post, error) {
	now := e.opts.now()
	var (
		closed Post
		events []Event
	)
	err := e.store.Atomic(ctx, func(tx Tx) error {
		post, err := e.ownedPost(tx, postID, requesterID)
		if err != nil {
			return err
		}
		events, err = closePost(tx, post, requesterID, now)
		if err != nil {
			return err
		}
		post.Status = PostClosed
		closed = post
		return nil
	})
	if err != nil {
		return Post{}, err
	}

	e.opts.committed(ctx, events)
	return closed, nil
}

// DeletePost removes the post with its slots and applications.
func (e *Engine) DeletePost(ctx context.Context, postID, requesterID string) error {
	now := e.opts.now()
	var events []Event
	err := e.store.Atomic(ctx, func(tx Tx) error {
		post, err := e.ownedPost(tx, postID, requesterID)
		if err != nil {
			return err
		}
		applicants, err := tx.LiveApplicants(post.ID)
		if err != nil {
			return err
		}
		if err := tx.DeletePost(post.ID); err != nil {
			return err
		}
		events = []Event{{
			Type:       EventPostDeleted,
			PostID:     post.ID,
			PostTitle:  post.Title,
			ActorID:    requesterID,
			Recipients: recipients(post.OwnerID, applicants),
			OccurredAt: now,
		}}
		return tx.AppendEvents(events...)
	})
	if err != nil {
		return err
	}

	e.opts.committed(ctx, events)
	return nil
}

// ExpireDue closes posts whose expiry has passed and returns how many were closed.
func (e *Engine) ExpireDue(ctx context.Context, limit int) (int, error) {
	now := e.opts.now()
	ids, err := e.store.ExpiredPosts(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("admission engine: list expired posts: %w", err)
	}

	var (
		closed int
		errs   error
	)
	for _, id := range ids {
		var events []Event
		err := e.store.Atomic(ctx, func(tx Tx) error {
			post, err := tx.Post(id)
			if err != nil {
				return err
			}
			events, err = closePost(tx, post, "", now)
			return err
		})
		switch {
		case err == nil:
			closed++
			e.opts.committed(ctx, events)
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPostNotFound):
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire post %s: %w", id, err))
		}
	}
	return closed, errs
}

func (e *Engine) ownedPost(tx Tx, postID, requesterID string) (Post, error) {
	post, err := tx.Post(strings.TrimSpace(postID))
	if err != nil {
		return Post{}, err
	}
	if post.OwnerID != requesterID {
		return Post{}, ErrNotOwner
	}
	return post, nil
}

func (e *Engine) ownedApplication(tx Tx, postID, slotID, applicationID, requesterID string) (Post, Slot, Application, error) {
	post, err := e.ownedPost(tx, postID, requesterID)
	if err != nil {
		return Post{}, Slot{}, Application{}, err
	}
	slot, ok := post.Slot(slotID)
	if !ok {
		return Post{}, Slot{}, Application{}, ErrSlotNotFound
	}
	app, err := tx.Application(applicationID)
	if err != nil {
		return Post{}, Slot{}, Application{}, err
	}
	if app.PostID != post.ID || app.SlotID != slot.ID {
		return Post{}, Slot{}, Application{}, ErrApplicationNotFound
	}
	return post, slot, app, nil
}

// admit claims the slot for app, accepts it and rejects the slot's other pending
// applications. The slot claim is the serialization point between racing admissions.
func admit(tx Tx, post Post, slot Slot, app Application, actorID string, now time.Time) (Application, []Event, error) {
	claimed, err := tx.ClaimSlot(slot.ID, app.ID)
	if err != nil {
		return Application{}, nil, err
	}
	if !claimed {
		return Application{}, nil, ErrInvalidTransition.WithMessage("Slot is already filled")
	}
	moved, err := tx.TransitionApplication(app.ID, ApplicationPending, ApplicationAccepted, ReasonNone, now)
	if err != nil {
		return Application{}, nil, err
	}
	if !moved {
		return Application{}, nil, ErrInvalidTransition.WithMessage("Application is not pending")
	}
	app.Status = ApplicationAccepted
	app.DecidedAt = &now

	displaced, err := tx.RejectPending(post.ID, slot.ID, app.ID, ReasonSlotFilled, now)
	if err != nil {
		return Application{}, nil, err
	}

	current, err := tx.Post(post.ID)
	if err != nil {
		return Application{}, nil, err
	}
	if current.OpenSlots() == 0 {
		if _, err := tx.SetPostStatus(post.ID, []PostStatus{PostRecruiting}, PostFull); err != nil {
			return Application{}, nil, err
		}
	}

	events := []Event{applicationEvent(EventApplicationAccepted, post, app, actorID, now)}
	events = append(events, rejectionEvents(post, displaced, actorID, now)...)
	return app, events, nil
}

func closePost(tx Tx, post Post, actorID string, now time.Time) ([]Event, error) {
	ok, err := tx.SetPostStatus(post.ID, []PostStatus{PostRecruiting, PostFull}, PostClosed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition.WithMessage("Party post is already closed")
	}
	members, err := tx.LiveApplicants(post.ID)
	if err != nil {
		return nil, err
	}
	rejected, err := tx.RejectPending(post.ID, "", "", ReasonPostClosed, now)
	if err != nil {
		return nil, err
	}

	affected := make([]string, 0, len(rejected))
	for _, app := range rejected {
		affected = append(affected, app.ApplicantID)
	}
	events := []Event{{
		Type:       EventPostClosed,
		PostID:     post.ID,
		PostTitle:  post.Title,
		ActorID:    actorID,
		Recipients: recipients(post.OwnerID, append(members, affected...)),
		OccurredAt: now,
	}}
	events = append(events, rejectionEvents(post, rejected, actorID, now)...)
	if err := tx.AppendEvents(events...); err != nil {
		return nil, err
	}
	return events, nil
}

func (e *Engine) normalizeCreateInput(in CreatePostInput) (CreatePostInput, error) {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	if err := checkUserID(in.OwnerID, "owner id"); err != nil {
		return CreatePostInput{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return CreatePostInput{}, invalidInput("title is required")
	}
	in.Description = strings.TrimSpace(in.Description)
	in.DungeonType = strings.ToLower(strings.TrimSpace(in.DungeonType))
	if in.DungeonType == "" {
		return CreatePostInput{}, invalidInput("dungeon type is required")
	}
	in.DungeonID = strings.TrimSpace(in.DungeonID)
	in.DungeonName = strings.TrimSpace(in.DungeonName)

	if len(in.Slots) == 0 {
		return CreatePostInput{}, invalidInput("at least one slot is required")
	}
	if len(in.Slots) > e.opts.MaxSlots {
		return CreatePostInput{}, invalidInput(fmt.Sprintf("a party post has at most %d slots", e.opts.MaxSlots))
	}
	slots := make([]SlotInput, len(in.Slots))
	for i, slot := range in.Slots {
		slot.Role = strings.TrimSpace(slot.Role)
		if slot.Role == "" {
			return CreatePostInput{}, invalidInput(fmt.Sprintf("slot %d role is required", i+1))
		}
		slot.RequiredClass = strings.TrimSpace(slot.RequiredClass)
		slots[i] = slot
	}
	in.Slots = slots

	schedule, err := normalizeSchedule(in.Schedule)
	if err != nil {
		return CreatePostInput{}, err
	}
	in.Schedule = schedule

	if in.Leader != nil {
		leader := *in.Leader
		if leader.SlotNumber < 1 || leader.SlotNumber > len(in.Slots) {
			return CreatePostInput{}, invalidInput("leader slot number is out of range")
		}
		character, err := normalizeCharacter(leader.Character)
		if err != nil {
			return CreatePostInput{}, err
		}
		leader.Character = character
		in.Leader = &leader
	}
	return in, nil
}

func normalizeSchedule(s Schedule) (Schedule, error) {
	if s.RunCount <= 0 {
		s.RunCount = 1
	}
	if s.IsImmediate {
		s.StartsAt = nil
		s.EndsAt = nil
		return s, nil
	}
	if s.StartsAt == nil {
		return Schedule{}, invalidInput("scheduled posts need a start time")
	}
	if s.EndsAt != nil && !s.EndsAt.After(*s.StartsAt) {
		return Schedule{}, invalidInput("scheduled end must be after the start time")
	}
	return s, nil
}

func (e *Engine) expiresAt(createdAt time.Time, s Schedule) time.Time {
	switch {
	case s.IsImmediate:
		return createdAt.Add(e.opts.ImmediateTTL)
	case s.EndsAt != nil:
		return s.EndsAt.UTC()
	default:
		return s.StartsAt.UTC().Add(e.opts.ImmediateTTL)
	}
}

func partyNumber(slotNumber int) int {
	if slotNumber <= 4 {
		return 1
	}
	return 2
}

func recipients(ownerID string, others []string) []string {
	seen := map[string]struct{}{ownerID: {}}
	out := []string{ownerID}
	for _, id := range others {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
