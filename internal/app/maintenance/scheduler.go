package maintenance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/partyfinder/internal/events"
	"github.com/charlesng35/partyfinder/pkg/logger"
	"github.com/charlesng35/partyfinder/pkg/metrics"
)

const (
	defaultRelaySpec          = "@every 5s"
	defaultExpireSpec         = "@every 1m"
	defaultAuditSpec          = "@daily"
	defaultPurgeSpec          = "@hourly"
	defaultAuditRetentionDays = 90
	defaultOutboxRetention    = 7 * 24 * time.Hour
	defaultExpireBatch        = 100
)

// Relayer drains the event outbox.
type Relayer interface {
	RunOnce(ctx context.Context) (events.RelayStats, error)
}

// Expirer closes posts whose expiry has passed.
type Expirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// SlotAccounting repairs derived post status and reports open slots.
type SlotAccounting interface {
	ReconcileStatuses(ctx context.Context) (int64, error)
	CountOpenSlots(ctx context.Context) (int64, error)
}

// AuditPruner removes audit rows past retention.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// OutboxPurger removes delivered outbox rows.
type OutboxPurger interface {
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

// CachePurger removes expired cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Dependencies lists the collaborators driven by the scheduler. Nil members
// disable their job.
type Dependencies struct {
	Relay  Relayer
	Expiry Expirer
	Slots  SlotAccounting
	Audit  AuditPruner
	Outbox OutboxPurger
	Cache  CachePurger
}

const jobOutboxRelay = "outbox_relay"

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

// JobStatus is the run history of one job since start-up.
type JobStatus struct {
	Job                 string    `json:"job"`
	Schedule            string    `json:"schedule"`
	TotalRuns           int       `json:"total_runs"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastError           string    `json:"last_error,omitempty"`
}

// Scheduler runs the party background jobs on cron schedules.
type Scheduler struct {
	deps Dependencies
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	mu     sync.Mutex
	status map[string]*JobStatus

	relaySchedule   string
	expireSchedule  string
	auditSchedule   string
	purgeSchedule   string
	retentionDays   int
	outboxRetention time.Duration
	expireBatch     int
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for retention cut-offs.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRelaySchedule overrides the outbox relay cron specification.
func WithRelaySchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.relaySchedule = spec
		}
	}
}

// WithExpireSchedule overrides the cron specification for expiry and slot accounting.
func WithExpireSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.expireSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the audit retention cron specification.
func WithAuditSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.auditSchedule = spec
		}
	}
}

// WithPurgeSchedule overrides the cron specification for outbox and cache purges.
func WithPurgeSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.purgeSchedule = spec
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are kept.
func WithAuditRetentionDays(days int) Option {
	return func(s *Scheduler) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithOutboxRetention adjusts how long sent outbox rows are kept.
func WithOutboxRetention(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.outboxRetention = d
		}
	}
}

// WithExpireBatch bounds how many posts one expiry run closes.
func WithExpireBatch(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.expireBatch = n
		}
	}
}

// NewScheduler constructs a Scheduler with default schedules.
func NewScheduler(deps Dependencies, opts ...Option) *Scheduler {
	s := &Scheduler{
		deps:            deps,
		now:             time.Now,
		status:          make(map[string]*JobStatus),
		log:             logger.WithModule("maintenance"),
		relaySchedule:   defaultRelaySpec,
		expireSchedule:  defaultExpireSpec,
		auditSchedule:   defaultAuditSpec,
		purgeSchedule:   defaultPurgeSpec,
		retentionDays:   defaultAuditRetentionDays,
		outboxRetention: defaultOutboxRetention,
		expireBatch:     defaultExpireBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return s
}

// Start registers every enabled job and launches the cron loop.
func (s *Scheduler) Start() error {
	jobs := s.jobs()
	if len(jobs) == 0 {
		return nil
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			if err := s.execute(context.Background(), j); err != nil {
				s.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.log.Info("maintenance scheduler started", zap.Int("jobs", len(jobs)))
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every enabled job sequentially. Used in tests and on
// graceful shutdown to flush the outbox.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs error
	for _, j := range s.jobs() {
		if err := s.execute(ctx, j); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Jobs returns the run history of every job that has run, ordered by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

func (s *Scheduler) execute(ctx context.Context, j job) error {
	err := j.run(ctx)

	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(j.name, result).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[j.name]
	if !ok {
		st = &JobStatus{Job: j.name, Schedule: j.spec}
		s.status[j.name] = st
	}
	st.TotalRuns++
	st.LastRunAt = s.now()
	if err != nil {
		st.ConsecutiveFailures++
		st.LastError = err.Error()
	} else {
		st.ConsecutiveFailures = 0
		st.LastError = ""
	}
	return err
}

// FlushOutbox runs the relay once if one is configured.
func (s *Scheduler) FlushOutbox(ctx context.Context) error {
	if s.deps.Relay == nil {
		return nil
	}
	return s.execute(ctx, job{name: jobOutboxRelay, spec: s.relaySchedule, run: s.relay})
}

func (s *Scheduler) jobs() []job {
	var jobs []job
	if s.deps.Relay != nil {
		jobs = append(jobs, job{name: jobOutboxRelay, spec: s.relaySchedule, run: s.relay})
	}
	if s.deps.Expiry != nil {
		jobs = append(jobs, job{name: "expire_posts", spec: s.expireSchedule, run: s.expire})
	}
	if s.deps.Slots != nil {
		jobs = append(jobs, job{name: "slot_accounting", spec: s.expireSchedule, run: s.accountSlots})
	}
	if s.deps.Audit != nil && s.retentionDays > 0 {
		jobs = append(jobs, job{name: "audit_retention", spec: s.auditSchedule, run: s.pruneAudit})
	}
	if s.deps.Outbox != nil || s.deps.Cache != nil {
		jobs = append(jobs, job{name: "purge", spec: s.purgeSchedule, run: s.purge})
	}
	return jobs
}

func (s *Scheduler) relay(ctx context.Context) error {
	stats, err := s.deps.Relay.RunOnce(ctx)
	if stats.Sent+stats.Failed+stats.Dead > 0 {
		s.log.Debug("outbox relayed",
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed),
			zap.Int("dead", stats.Dead),
		)
	}
	return err
}

func (s *Scheduler) expire(ctx context.Context) error {
	closed, err := s.deps.Expiry.ExpireDue(ctx, s.expireBatch)
	if closed > 0 {
		s.log.Info("expired party posts closed", zap.Int("count", closed))
	}
	return err
}

func (s *Scheduler) accountSlots(ctx context.Context) error {
	var errs error
	fixed, err := s.deps.Slots.ReconcileStatuses(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if fixed > 0 {
		s.log.Warn("post statuses reconciled", zap.Int64("count", fixed))
	}

	open, err := s.deps.Slots.CountOpenSlots(ctx)
	if err != nil {
		return multierr.Append(errs, err)
	}
	metrics.OpenSlots.Set(float64(open))
	return errs
}

func (s *Scheduler) pruneAudit(ctx context.Context) error {
	removed, err := s.deps.Audit.CleanupOlderThan(ctx, s.retentionDays)
	if removed > 0 {
		s.log.Info("audit logs pruned", zap.Int64("count", removed))
	}
	return err
}

func (s *Scheduler) purge(ctx context.Context) error {
	var errs error
	if s.deps.Outbox != nil {
		if _, err := s.deps.Outbox.PurgeSent(ctx, s.now().Add(-s.outboxRetention)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if s.deps.Cache != nil {
		if _, err := s.deps.Cache.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
