package events

import (
	"context"

	"github.com/charlesng35/partyfinder/internal/party"
	"github.com/charlesng35/partyfinder/internal/realtime"
)

// RealtimePublisher pushes each event to its recipients on the party.applications stream.
type RealtimePublisher struct {
	hub realtime.Broadcaster
}

func NewRealtimePublisher(hub realtime.Broadcaster) *RealtimePublisher {
	return &RealtimePublisher{hub: hub}
}

func (p *RealtimePublisher) Publish(_ context.Context, events []party.Event) error {
	if p.hub == nil {
		return nil
	}
	for _, evt := range events {
		p.hub.BroadcastToUsers(realtime.StreamPartyApplications, evt.Recipients, realtime.Message{
			Event:  string(evt.Type),
			Data:   evt,
			SentAt: evt.OccurredAt,
		})
	}
	return nil
}
