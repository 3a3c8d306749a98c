package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/charlesng35/partyfinder/internal/party"
)

// PartyNotifier turns relayed party events into per-user notifications.
// It implements events.Publisher.
type PartyNotifier struct {
	notifications *NotificationService
}

func NewPartyNotifier(notifications *NotificationService) (*PartyNotifier, error) {
	if notifications == nil {
		return nil, errors.New("party notifier: notification service is required")
	}
	return &PartyNotifier{notifications: notifications}, nil
}

func (n *PartyNotifier) Publish(ctx context.Context, events []party.Event) error {
	var errs error
	for _, evt := range events {
		for _, input := range notificationsFor(evt) {
			if _, err := n.notifications.Create(ctx, input); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

// notificationsFor addresses every recipient except the actor.
func notificationsFor(evt party.Event) []CreateNotificationInput {
	title, severity := describeEvent(evt)
	if title == "" {
		return nil
	}

	metadata := map[string]any{"event_id": evt.ID}
	if evt.ApplicationID != "" {
		metadata["application_id"] = evt.ApplicationID
	}
	if evt.SlotID != "" {
		metadata["slot_id"] = evt.SlotID
	}
	if evt.Reason != party.ReasonNone {
		metadata["reason"] = string(evt.Reason)
	}

	out := make([]CreateNotificationInput, 0, len(evt.Recipients))
	for _, userID := range evt.Recipients {
		if userID == "" || userID == evt.ActorID {
			continue
		}
		out = append(out, CreateNotificationInput{
			UserID:    userID,
			PostID:    evt.PostID,
			Type:      string(evt.Type),
			Title:     title,
			Message:   messageFor(evt, userID),
			Severity:  severity,
			ActionURL: "/parties/" + evt.PostID,
			Metadata:  metadata,
			DedupKey:  dedupKey(evt.ID, userID),
		})
	}
	return out
}

// dedupKey is empty for events that never went through the outbox.
func dedupKey(eventID, userID string) string {
	if eventID == "" {
		return ""
	}
	return eventID + ":" + userID
}

func describeEvent(evt party.Event) (string, string) {
	switch evt.Type {
	case party.EventApplicationSubmitted:
		return "New application", "info"
	case party.EventApplicationAccepted:
		return "Application accepted", "success"
	case party.EventApplicationRejected:
		if evt.Reason == party.ReasonPostClosed {
			// post.closed already tells these applicants.
			return "", ""
		}
		return "Application rejected", "warning"
	case party.EventApplicationWithdrawn:
		return "Application withdrawn", "info"
	case party.EventPostClosed:
		return "Party closed", "info"
	case party.EventPostDeleted:
		return "Party deleted", "warning"
	default:
		return "", ""
	}
}

func messageFor(evt party.Event, userID string) string {
	title := evt.PostTitle
	if title == "" {
		title = "your party"
	}
	switch evt.Type {
	case party.EventApplicationSubmitted:
		return fmt.Sprintf("A new application was submitted to %q.", title)
	case party.EventApplicationAccepted:
		if userID == evt.SubjectID {
			return fmt.Sprintf("You joined %q.", title)
		}
		return fmt.Sprintf("An applicant joined %q.", title)
	case party.EventApplicationRejected:
		switch evt.Reason {
		case party.ReasonSlotFilled:
			return fmt.Sprintf("The slot you applied for in %q was filled by another applicant.", title)
		case party.ReasonRevoked:
			return fmt.Sprintf("You were removed from %q.", title)
		default:
			return fmt.Sprintf("Your application to %q was declined.", title)
		}
	case party.EventApplicationWithdrawn:
		return fmt.Sprintf("An applicant withdrew from %q.", title)
	case party.EventPostClosed:
		return fmt.Sprintf("%q was closed by its owner or expired.", title)
	case party.EventPostDeleted:
		return fmt.Sprintf("%q was deleted.", title)
	}
	return ""
}
