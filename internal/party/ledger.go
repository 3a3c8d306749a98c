package party

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// SubmitInput identifies the slot and the presented character.
type SubmitInput struct {
	PostID      string
	SlotID      string
	ApplicantID string
	Character   Character
	Message     string
}

// Ledger records application attempts and serves them back in submission order.
type Ledger struct {
	store Store
	opts  Options
}

// NewLedger constructs a Ledger over store.
func NewLedger(store Store, opts Options) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("party ledger: store is required")
	}
	return &Ledger{store: store, opts: opts.withDefaults()}, nil
}

// Submit appends a pending application. On first-come posts the application is admitted in
// the same atomic step.
func (l *Ledger) Submit(ctx context.Context, in SubmitInput) (Application, error) {
	in, err := normalizeSubmitInput(in)
	if err != nil {
		return Application{}, err
	}

	now := l.opts.now()
	var (
		created Application
		events  []Event
	)
	err = l.store.Atomic(ctx, func(tx Tx) error {
		events = nil

		post, err := tx.Post(in.PostID)
		if err != nil {
			return err
		}
		slot, ok := post.Slot(in.SlotID)
		if !ok {
			return ErrSlotNotFound
		}
		switch post.Status {
		case PostClosed:
			return ErrInvalidTransition.WithMessage("Party post is closed")
		case PostFull:
			return ErrSlotFull
		}
		if slot.State() == SlotFilled {
			return ErrSlotFull
		}
		if err := CheckRequirements(post, slot, in.Character); err != nil {
			return err
		}
		if err := tx.LockOpenSlot(slot.ID); err != nil {
			return err
		}

		app := Application{
			PostID:      post.ID,
			SlotID:      slot.ID,
			ApplicantID: in.ApplicantID,
			Character:   in.Character,
			Message:     in.Message,
			Status:      ApplicationPending,
			SubmittedAt: now,
		}
		if err := tx.InsertApplication(&app); err != nil {
			return err
		}
		events = append(events, applicationEvent(EventApplicationSubmitted, post, app, in.ApplicantID, now))

		if post.JoinType == JoinFirstCome {
			admitted, more, err := admit(tx, post, slot, app, post.OwnerID, now)
			if errors.Is(err, ErrInvalidTransition) {
				return ErrSlotFull
			}
			if err != nil {
				return err
			}
			app = admitted
			events = append(events, more...)
		}

		created = app
		return tx.AppendEvents(events...)
	})
	if err != nil {
		return Application{}, err
	}

	l.opts.committed(ctx, events)
	return created, nil
}

// Withdraw cancels a pending application on behalf of its applicant.
func (l *Ledger) Withdraw(ctx context.Context, applicationID, requesterID string) (Application, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return Application{}, ErrApplicationNotFound
	}

	now := l.opts.now()
	var (
		withdrawn Application
		events    []Event
	)
	err := l.store.Atomic(ctx, func(tx Tx) error {
		app, err := tx.Application(applicationID)
		if err != nil {
			return err
		}
		if app.ApplicantID != requesterID {
			return ErrNotApplicant
		}
		if app.Status != ApplicationPending {
			return ErrInvalidTransition.WithMessage("Only pending applications can be withdrawn")
		}
		ok, err := tx.TransitionApplication(app.ID, ApplicationPending, ApplicationWithdrawn, ReasonNone, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		post, err := tx.Post(app.PostID)
		if err != nil {
			return err
		}

		app.Status = ApplicationWithdrawn
		app.DecidedAt = &now
		withdrawn = app
		events = []Event{applicationEvent(EventApplicationWithdrawn, post, app, requesterID, now)}
		return tx.AppendEvents(events...)
	})
	if err != nil {
		return Application{}, err
	}

	l.opts.committed(ctx, events)
	return withdrawn, nil
}

// Get returns a single application.
func (l *Ledger) Get(ctx context.Context, applicationID string) (Application, error) {
	return l.store.Application(ctx, applicationID)
}

// ListByPost yields the post's applications by submission time. Each range starts over.
func (l *Ledger) ListByPost(ctx context.Context, postID string) iter.Seq2[Application, error] {
	return l.pages(func(after Cursor, limit int) ([]Application, error) {
		return l.store.ApplicationsByPost(ctx, postID, after, limit)
	})
}

// ListByApplicant yields the user's applications by submission time. Each range starts over.
func (l *Ledger) ListByApplicant(ctx context.Context, userID string) iter.Seq2[Application, error] {
	return l.pages(func(after Cursor, limit int) ([]Application, error) {
		return l.store.ApplicationsByApplicant(ctx, userID, after, limit)
	})
}

func (l *Ledger) pages(fetch func(after Cursor, limit int) ([]Application, error)) iter.Seq2[Application, error] {
	size := l.opts.PageSize
	return func(yield func(Application, error) bool) {
		var cursor Cursor
		for {
			page, err := fetch(cursor, size)
			if err != nil {
				yield(Application{}, fmt.Errorf("party ledger: list applications: %w", err))
				return
			}
			for _, app := range page {
				if !yield(app, nil) {
					return
				}
			}
			if len(page) < size {
				return
			}
			cursor = After(page[len(page)-1])
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Application, error]) ([]Application, error) {
	var out []Application
	for app, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}

// CheckRequirements validates a character against the slot class and the post minimums.
func CheckRequirements(post Post, slot Slot, character Character) error {
	if slot.RequiredClass != "" && !strings.EqualFold(slot.RequiredClass, character.Class) {
		return ErrRequirementNotMet.WithMessage(fmt.Sprintf("Slot %d requires class %s", slot.Number, slot.RequiredClass))
	}
	req := post.Requirements
	if req.MinItemLevel > 0 && character.ItemLevel < req.MinItemLevel {
		return ErrRequirementNotMet.WithMessage(fmt.Sprintf("Item level %d or higher is required", req.MinItemLevel))
	}
	if req.MinBreakthrough > 0 && character.Breakthrough < req.MinBreakthrough {
		return ErrRequirementNotMet.WithMessage(fmt.Sprintf("Breakthrough %d or higher is required", req.MinBreakthrough))
	}
	if req.MinCombatPower > 0 && character.CombatPower < req.MinCombatPower {
		return ErrRequirementNotMet.WithMessage(fmt.Sprintf("Combat power %d or higher is required", req.MinCombatPower))
	}
	return nil
}

func normalizeSubmitInput(in SubmitInput) (SubmitInput, error) {
	in.PostID = strings.TrimSpace(in.PostID)
	if in.PostID == "" {
		return SubmitInput{}, ErrPostNotFound
	}
	in.SlotID = strings.TrimSpace(in.SlotID)
	if in.SlotID == "" {
		return SubmitInput{}, ErrSlotNotFound
	}
	in.ApplicantID = strings.TrimSpace(in.ApplicantID)
	if err := checkUserID(in.ApplicantID, "applicant id"); err != nil {
		return SubmitInput{}, err
	}
	character, err := normalizeCharacter(in.Character)
	if err != nil {
		return SubmitInput{}, err
	}
	in.Character = character
	in.Message = strings.TrimSpace(in.Message)
	return in, nil
}

func normalizeCharacter(c Character) (Character, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Character{}, invalidInput("character name is required")
	}
	c.Class = strings.TrimSpace(c.Class)
	if c.Class == "" {
		return Character{}, invalidInput("character class is required")
	}
	c.ServerID = strings.TrimSpace(c.ServerID)
	return c, nil
}
