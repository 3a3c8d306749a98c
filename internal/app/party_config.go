package app

import (
	"github.com/charlesng35/partyfinder/internal/events"
	"github.com/charlesng35/partyfinder/internal/party"
	"github.com/charlesng35/partyfinder/internal/services"
)

// PartyServiceConfig converts the party section into service options.
func (c PartyConfig) PartyServiceConfig() services.PartyServiceConfig {
	return services.PartyServiceConfig{
		Options: party.Options{
			MaxSlots:     c.MaxSlots,
			ImmediateTTL: c.ImmediateTTL,
		},
		ProjectionCacheTTL: c.ProjectionCacheTTL,
	}
}

// RelayOptions converts the events section into relay options.
func (c EventsConfig) RelayOptions() []events.RelayOption {
	return []events.RelayOption{
		events.WithBatchSize(c.BatchSize),
		events.WithMaxAttempts(c.MaxAttempts),
	}
}

// KafkaPublisherConfig returns the Kafka sink settings.
func (c EventsConfig) KafkaPublisherConfig() events.KafkaConfig {
	return events.KafkaConfig{Brokers: c.Kafka.Brokers, Topic: c.Kafka.Topic}
}
