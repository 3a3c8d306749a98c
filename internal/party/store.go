package party

import (
	"context"
	"time"
)

// Store is the storage collaborator. Every mutation runs inside Atomic; a Tx must not be
// used after the callback returns.
type Store interface {
	Reader
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Reader serves committed state.
type Reader interface {
	Post(ctx context.Context, postID string) (Post, error)
	Application(ctx context.Context, applicationID string) (Application, error)
	// PendingCounts returns pending application counts keyed by slot id.
	PendingCounts(ctx context.Context, postID string) (map[string]int, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]Post, error)
	// ApplicationsByPost and ApplicationsByApplicant page by (submitted_at, id) ascending.
	ApplicationsByPost(ctx context.Context, postID string, after Cursor, limit int) ([]Application, error)
	ApplicationsByApplicant(ctx context.Context, applicantID string, after Cursor, limit int) ([]Application, error)
	// UserSnapshot reads everything the projections need for one user in a single consistent read.
	UserSnapshot(ctx context.Context, userID string) (UserSnapshot, error)
	// ExpiredPosts returns ids of recruiting or full posts whose expiry is at or before now.
	ExpiredPosts(ctx context.Context, now time.Time, limit int) ([]string, error)
	CountOpenSlots(ctx context.Context) (int64, error)
}

// Tx is a unit of work. Conditional operations report whether the row matched.
type Tx interface {
	Post(postID string) (Post, error)
	Application(applicationID string) (Application, error)

	// InsertPost assigns ids to the post and its slots.
	InsertPost(post *Post) error
	UpdatePostMetadata(post Post) error
	// SetPostStatus moves the post to `to` only if its status is one of `from`.
	SetPostStatus(postID string, from []PostStatus, to PostStatus) (bool, error)
	// DeletePost removes the post, its slots and its applications.
	DeletePost(postID string) error

	// LockOpenSlot takes the slot's row lock when it is open. Returns ErrSlotFull when
	// occupied and ErrSlotNotFound when missing.
	LockOpenSlot(slotID string) error
	// ClaimSlot sets the occupant only while the slot is empty.
	ClaimSlot(slotID, applicationID string) (bool, error)
	// ReleaseSlot clears the occupant only while it is applicationID.
	ReleaseSlot(slotID, applicationID string) (bool, error)

	// InsertApplication assigns an id. Returns ErrDuplicateApplication when the applicant
	// already holds a live application on the post.
	InsertApplication(app *Application) error
	// TransitionApplication moves the status from -> to and reports whether it matched.
	TransitionApplication(applicationID string, from, to ApplicationStatus, reason RejectReason, at time.Time) (bool, error)
	// RejectPending rejects pending applications of the post, limited to slotID when set,
	// excluding exceptID, and returns the rejected rows.
	RejectPending(postID, slotID, exceptID string, reason RejectReason, at time.Time) ([]Application, error)
	// LiveApplicants lists applicants holding pending or accepted applications on the post.
	LiveApplicants(postID string) ([]string, error)

	AppendEvents(events ...Event) error
}

// UserSnapshot is the raw material for the party projections of one user.
type UserSnapshot struct {
	Owned         []Post
	PendingByPost map[string]int
	// Live holds the user's pending and accepted applications.
	Live  []Application
	Posts map[string]Post
}
