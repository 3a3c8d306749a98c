package realtime

// Streams clients may subscribe to.
const (
	StreamNotifications     = "notifications"
	StreamPartyApplications = "party.applications"
)

// KnownStreams lists every stream the hub accepts subscriptions for.
var KnownStreams = map[string]struct{}{
	StreamNotifications:     {},
	StreamPartyApplications: {},
}
