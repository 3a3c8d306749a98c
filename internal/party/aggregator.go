package party

import (
	"context"
	"errors"
	"sort"
	"time"
)

// CreatedParty is a post owned by the user with the number of pending applications.
type CreatedParty struct {
	Post
	PendingCount int `json:"pending_count"`
}

// Membership describes the user's accepted application in a joined post.
type Membership struct {
	ApplicationID  string    `json:"id"`
	SlotID         string    `json:"slot_id"`
	SlotNumber     int       `json:"slot_number"`
	Role           string    `json:"role"`
	CharacterName  string    `json:"character_name"`
	CharacterClass string    `json:"character_class"`
	JoinedAt       time.Time `json:"joined_at"`
}

// JoinedParty is a post where the user holds an accepted application.
type JoinedParty struct {
	Post
	MyMember Membership `json:"my_member"`
}

// PendingApplication describes the user's pending application in a post.
type PendingApplication struct {
	ApplicationID  string    `json:"id"`
	SlotID         string    `json:"slot_id"`
	SlotNumber     int       `json:"slot_number"`
	Role           string    `json:"role"`
	CharacterName  string    `json:"character_name"`
	CharacterClass string    `json:"character_class"`
	AppliedAt      time.Time `json:"applied_at"`
}

// PendingParty is a post where the user holds a pending application.
type PendingParty struct {
	Post
	MyApplication PendingApplication `json:"my_application"`
}

// Counts summarises the three projections.
type Counts struct {
	Created int `json:"created"`
	Joined  int `json:"joined"`
	Pending int `json:"pending"`
	Total   int `json:"total"`
}

// MyParties bundles the projections of one user.
type MyParties struct {
	Created []CreatedParty `json:"created"`
	Joined  []JoinedParty  `json:"joined"`
	Pending []PendingParty `json:"pending"`
	Counts  Counts         `json:"counts"`
}

// Aggregator derives per-user projections from committed state. It holds no state of its own.
type Aggregator struct {
	reader Reader
}

func NewAggregator(reader Reader) (*Aggregator, error) {
	if reader == nil {
		return nil, errors.New("party aggregator: reader is required")
	}
	return &Aggregator{reader: reader}, nil
}

// MyParties computes all three projections from one consistent read.
func (a *Aggregator) MyParties(ctx context.Context, userID string) (MyParties, error) {
	snapshot, err := a.reader.UserSnapshot(ctx, userID)
	if err != nil {
		return MyParties{}, err
	}
	return BuildMyParties(snapshot), nil
}

func (a *Aggregator) Created(ctx context.Context, userID string) ([]CreatedParty, error) {
	view, err := a.MyParties(ctx, userID)
	return view.Created, err
}

func (a *Aggregator) Joined(ctx context.Context, userID string) ([]JoinedParty, error) {
	view, err := a.MyParties(ctx, userID)
	return view.Joined, err
}

func (a *Aggregator) Pending(ctx context.Context, userID string) ([]PendingParty, error) {
	view, err := a.MyParties(ctx, userID)
	return view.Pending, err
}

// BuildMyParties is the pure projection over a snapshot.
func BuildMyParties(snapshot UserSnapshot) MyParties {
	view := MyParties{
		Created: make([]CreatedParty, 0, len(snapshot.Owned)),
		Joined:  []JoinedParty{},
		Pending: []PendingParty{},
	}

	for _, post := range snapshot.Owned {
		view.Created = append(view.Created, CreatedParty{Post: post, PendingCount: snapshot.PendingByPost[post.ID]})
	}
	sort.SliceStable(view.Created, func(i, j int) bool {
		return view.Created[i].CreatedAt.After(view.Created[j].CreatedAt)
	})

	live := append([]Application(nil), snapshot.Live...)
	sort.SliceStable(live, func(i, j int) bool {
		return decisionTime(live[i]).Before(decisionTime(live[j]))
	})
	for _, app := range live {
		post, ok := snapshot.Posts[app.PostID]
		if !ok {
			continue
		}
		slot, _ := post.Slot(app.SlotID)
		switch app.Status {
		case ApplicationAccepted:
			view.Joined = append(view.Joined, JoinedParty{Post: post, MyMember: Membership{
				ApplicationID:  app.ID,
				SlotID:         app.SlotID,
				SlotNumber:     slot.Number,
				Role:           slot.Role,
				CharacterName:  app.Character.Name,
				CharacterClass: app.Character.Class,
				JoinedAt:       decisionTime(app),
			}})
		case ApplicationPending:
			view.Pending = append(view.Pending, PendingParty{Post: post, MyApplication: PendingApplication{
				ApplicationID:  app.ID,
				SlotID:         app.SlotID,
				SlotNumber:     slot.Number,
				Role:           slot.Role,
				CharacterName:  app.Character.Name,
				CharacterClass: app.Character.Class,
				AppliedAt:      app.SubmittedAt,
			}})
		}
	}

	view.Counts = Counts{
		Created: len(view.Created),
		Joined:  len(view.Joined),
		Pending: len(view.Pending),
	}
	view.Counts.Total = view.Counts.Created + view.Counts.Joined + view.Counts.Pending
	return view
}

func decisionTime(app Application) time.Time {
	if app.Status == ApplicationAccepted && app.DecidedAt != nil {
		return *app.DecidedAt
	}
	return app.SubmittedAt
}
