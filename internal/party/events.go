package party

import "time"

// EventType names a domain event written to the outbox.
type EventType string

const (
	EventApplicationSubmitted EventType = "application.submitted"
	EventApplicationAccepted  EventType = "application.accepted"
	EventApplicationRejected  EventType = "application.rejected"
	EventApplicationWithdrawn EventType = "application.withdrawn"
	EventPostClosed           EventType = "post.closed"
	EventPostDeleted          EventType = "post.deleted"
)

// Event describes a committed state change. Recipients are the users whose
// projections or inboxes are affected.
type Event struct {
	ID            string       `json:"id"`
	Type          EventType    `json:"type"`
	PostID        string       `json:"post_id"`
	PostTitle     string       `json:"post_title,omitempty"`
	SlotID        string       `json:"slot_id,omitempty"`
	ApplicationID string       `json:"application_id,omitempty"`
	ActorID       string       `json:"actor_id"`
	SubjectID     string       `json:"subject_id,omitempty"`
	Recipients    []string     `json:"recipients"`
	Reason        RejectReason `json:"reason,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

func applicationEvent(typ EventType, post Post, app Application, actorID string, at time.Time) Event {
	recipients := []string{app.ApplicantID}
	if post.OwnerID != app.ApplicantID {
		recipients = append(recipients, post.OwnerID)
	}
	return Event{
		Type:          typ,
		PostID:        post.ID,
		PostTitle:     post.Title,
		SlotID:        app.SlotID,
		ApplicationID: app.ID,
		ActorID:       actorID,
		SubjectID:     app.ApplicantID,
		Recipients:    recipients,
		Reason:        app.Reason,
		OccurredAt:    at,
	}
}

func rejectionEvents(post Post, rejected []Application, actorID string, at time.Time) []Event {
	events := make([]Event, 0, len(rejected))
	for _, app := range rejected {
		events = append(events, applicationEvent(EventApplicationRejected, post, app, actorID, at))
	}
	return events
}

// AffectedUsers returns the distinct recipients of events.
func AffectedUsers(events []Event) []string {
	seen := make(map[string]struct{})
	users := make([]string, 0)
	for _, evt := range events {
		for _, id := range evt.Recipients {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			users = append(users, id)
		}
	}
	return users
}
