package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// ProbeStatus is the outcome of one probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// severity orders statuses so reports can keep the worst one.
func (s ProbeStatus) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// ProbeResult is the outcome of a single dependency check.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results. Status is the worst probe status.
type HealthReport struct {
	Success   bool          `json:"success"`
	Status    ProbeStatus   `json:"status"`
	Checks    []ProbeResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Probe runs one dependency check. A returned error marks the component down,
// or degraded when the probe timed out.
type Probe func(ctx context.Context) ProbeResult

// Check names a probe.
type Check struct {
	Name  string
	Probe Probe
}

// NewCheck builds a check from a plain error-returning function.
func NewCheck(name string, fn func(ctx context.Context) error) Check {
	return Check{Name: name, Probe: func(ctx context.Context) ProbeResult {
		start := time.Now()
		return ResultFromError(name, fn(ctx), time.Since(start))
	}}
}

// HealthManager runs liveness and readiness checks.
type HealthManager struct {
	mu        sync.RWMutex
	liveness  []Check
	readiness []Check
	timeout   time.Duration
	now       func() time.Time
}

// NewHealthManager returns a manager whose probes each get timeout; zero uses a default.
func NewHealthManager(timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &HealthManager{timeout: timeout, now: time.Now}
}

// RegisterLiveness adds a probe that decides whether the process should be restarted.
func (m *HealthManager) RegisterLiveness(check Check) {
	if check.Name == "" || check.Probe == nil {
		return
	}
	m.mu.Lock()
	m.liveness = append(m.liveness, check)
	m.mu.Unlock()
}

// RegisterReadiness adds a probe that decides whether traffic should be routed here.
func (m *HealthManager) RegisterReadiness(check Check) {
	if check.Name == "" || check.Probe == nil {
		return
	}
	m.mu.Lock()
	m.readiness = append(m.readiness, check)
	m.mu.Unlock()
}

func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	m.mu.RLock()
	checks := append([]Check(nil), m.liveness...)
	m.mu.RUnlock()
	return m.evaluate(ctx, checks)
}

func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	m.mu.RLock()
	checks := append([]Check(nil), m.readiness...)
	m.mu.RUnlock()
	return m.evaluate(ctx, checks)
}

// evaluate runs checks concurrently; results keep registration order.
func (m *HealthManager) evaluate(ctx context.Context, checks []Check) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]ProbeResult, len(checks))

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			results[i] = runCheck(probeCtx, check)
		}()
	}
	wg.Wait()

	report := HealthReport{Status: StatusUp, Checks: results, CheckedAt: m.now().UTC()}
	for _, r := range results {
		if r.Status.severity() > report.Status.severity() {
			report.Status = r.Status
		}
	}
	report.Success = report.Status == StatusUp
	return report
}

func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
		result.Component = check.Name
	}()
	return check.Probe(ctx)
}

// ResultFromError maps err to a probe result. Deadline and cancellation errors degrade rather than fail.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	}
	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}
	return ProbeResult{Component: component, Status: status, Details: err.Error(), Duration: duration}
}
