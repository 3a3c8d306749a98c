package app

import "github.com/charlesng35/partyfinder/internal/app/maintenance"

// SchedulerOptions combines the events and maintenance sections into scheduler options.
func (c *Config) SchedulerOptions() []maintenance.Option {
	return []maintenance.Option{
		maintenance.WithRelaySchedule(c.Events.RelaySchedule),
		maintenance.WithExpireSchedule(c.Maintenance.ExpireSchedule),
		maintenance.WithAuditSchedule(c.Maintenance.AuditSchedule),
		maintenance.WithPurgeSchedule(c.Maintenance.PurgeSchedule),
		maintenance.WithAuditRetentionDays(c.Maintenance.AuditRetentionDays),
		maintenance.WithOutboxRetention(c.Events.SentRetention),
	}
}
