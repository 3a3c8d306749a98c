package checks

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/charlesng35/partyfinder/internal/app/maintenance"
	"github.com/charlesng35/partyfinder/internal/monitoring"
)

const defaultMaintenanceGrace = 5 * time.Minute

// JobReporter is satisfied by maintenance.Scheduler.
type JobReporter interface {
	Jobs() []maintenance.JobStatus
}

// Maintenance reports down while a job keeps failing and degraded when a job
// missed its next scheduled run by more than grace.
func Maintenance(reporter JobReporter, grace time.Duration) monitoring.Check {
	if grace <= 0 {
		grace = defaultMaintenanceGrace
	}
	return monitoring.Check{Name: "maintenance", Probe: func(ctx context.Context) monitoring.ProbeResult {
		now := time.Now()
		status := monitoring.StatusUp
		var problems []string

		for _, job := range reporter.Jobs() {
			switch {
			case job.ConsecutiveFailures > 1:
				status = monitoring.StatusDown
				problems = append(problems, job.Job+": "+job.LastError)
			case overdue(job, now, grace):
				if status == monitoring.StatusUp {
					status = monitoring.StatusDegraded
				}
				problems = append(problems, job.Job+": last run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}
		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	}}
}

func overdue(job maintenance.JobStatus, now time.Time, grace time.Duration) bool {
	schedule, err := cron.ParseStandard(job.Schedule)
	if err != nil || job.LastRunAt.IsZero() {
		return false
	}
	return now.After(schedule.Next(job.LastRunAt).Add(grace))
}
