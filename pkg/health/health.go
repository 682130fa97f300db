// Package health runs liveness and readiness checks for the ops server.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// Check is a single named health check. Check returns nil when healthy.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Check.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a new CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

// Name returns the name of this check.
func (c *CheckFunc) Name() string { return c.name }

// Check executes the check function.
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult is the outcome of one check run.
type CheckResult struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// HealthStatus aggregates the results of one check run. Checks are sorted by name.
type HealthStatus struct {
	Healthy bool
	Checks  []CheckResult
}

// HealthChecker runs liveness and readiness checks. A failing check only
// turns unhealthy after failureThreshold consecutive failures.
type HealthChecker struct {
	livenessChecks   []Check
	readinessChecks  []Check
	timeout          time.Duration
	failureCount     map[string]int
	failureThreshold int
	logger           logger.Logger
	mu               sync.RWMutex
}

// Option is a functional option for configuring HealthChecker.
type Option func(*HealthChecker)

// WithTimeout bounds each check. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(h *HealthChecker) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the logger for health check operations.
func WithLogger(l logger.Logger) Option {
	return func(h *HealthChecker) { h.logger = l }
}

// WithFailureThreshold sets how many consecutive failures make a check
// unhealthy. Default is 3.
func WithFailureThreshold(threshold int) Option {
	return func(h *HealthChecker) {
		if threshold > 0 {
			h.failureThreshold = threshold
		}
	}
}

// New creates a new HealthChecker with the given options.
func New(opts ...Option) *HealthChecker {
	h := &HealthChecker{
		timeout:          5 * time.Second,
		failureThreshold: 3,
		failureCount:     make(map[string]int),
		logger:           logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddLivenessCheck adds checks deciding whether the process should be restarted.
func (h *HealthChecker) AddLivenessCheck(checks ...Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.livenessChecks = append(h.livenessChecks, checks...)
}

// AddReadinessCheck adds checks deciding whether the service takes traffic.
func (h *HealthChecker) AddReadinessCheck(checks ...Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readinessChecks = append(h.readinessChecks, checks...)
}

// CheckLiveness runs every liveness check.
func (h *HealthChecker) CheckLiveness(ctx context.Context) (*HealthStatus, error) {
	h.mu.RLock()
	checks := h.livenessChecks
	h.mu.RUnlock()
	return h.executeChecks(ctx, checks)
}

// CheckReadiness runs every readiness check.
func (h *HealthChecker) CheckReadiness(ctx context.Context) (*HealthStatus, error) {
	h.mu.RLock()
	checks := h.readinessChecks
	h.mu.RUnlock()
	return h.executeChecks(ctx, checks)
}

// executeChecks runs checks concurrently. The error lists every unhealthy check.
func (h *HealthChecker) executeChecks(ctx context.Context, checks []Check) (*HealthStatus, error) {
	status := &HealthStatus{Healthy: true, Checks: make([]CheckResult, len(checks))}
	if len(checks) == 0 {
		return status, nil
	}

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status.Checks[i] = h.executeCheck(ctx, check)
		}()
	}
	wg.Wait()

	sort.Slice(status.Checks, func(i, j int) bool {
		return status.Checks[i].Name < status.Checks[j].Name
	})

	var failed *multierror.Error
	for _, result := range status.Checks {
		if !result.Healthy {
			status.Healthy = false
			failed = multierror.Append(failed, fmt.Errorf("%s: %s", result.Name, result.Error))
		}
	}
	return status, failed.ErrorOrNil()
}

func (h *HealthChecker) executeCheck(parent context.Context, check Check) CheckResult {
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	result := CheckResult{Name: check.Name(), Latency: time.Since(start), Healthy: true}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err == nil {
		h.failureCount[result.Name] = 0
		h.logger.Debug("Health check passed",
			logger.StringField("check", result.Name),
			logger.DurationField("latency", result.Latency))
		return result
	}

	h.failureCount[result.Name]++
	failures := h.failureCount[result.Name]
	if failures < h.failureThreshold {
		h.logger.Debug("Health check failed but below threshold",
			logger.StringField("check", result.Name),
			logger.ErrorField(err),
			logger.IntField("failures", failures),
			logger.IntField("threshold", h.failureThreshold))
		return result
	}

	result.Healthy = false
	result.Error = err.Error()
	h.logger.Warn("Health check failed",
		logger.StringField("check", result.Name),
		logger.ErrorField(err),
		logger.IntField("failures", failures),
		logger.DurationField("latency", result.Latency))
	return result
}
