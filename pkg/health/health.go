// Package health provides Kubernetes-style liveness and readiness probes.
// Registered checks run periodically in the background; a check must fail
// several times in a row before it is reported unhealthy, so a single slow
// probe does not flip the service state.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// failureThreshold is the number of consecutive failures before a check is
// marked unhealthy.
const failureThreshold = 3

// CheckFunc reports the health of one component. Nil means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]
	fails   int
}

func (c *check) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.fails++
		if c.fails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.healthy.Store(true)
}

func (c *check) failure() (string, bool) {
	if c.healthy.Load() {
		return "", false
	}
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error(), true
	}
	return "check is unhealthy", true
}

// Health runs liveness and readiness checks and serves probe endpoints.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New returns a Health in the not-ready state. Call SetReady(true) once
// initialization completes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process is
// alive, for example a goroutine leak detector.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn))
}

// AddReadinessCheck registers a check that decides whether the service can
// accept traffic, for example database connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn))
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)
	return c
}

// Start runs every registered check in its own goroutine at the given
// interval, until Stop is called or ctx is cancelled.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := append(append([]*check(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		go func(c *check) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}(c)
	}
}

// SetReady flips the manual readiness gate. Set false during graceful
// shutdown to drain traffic before the listener closes.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and all readiness checks
// pass.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	checks := h.readiness
	h.mu.RUnlock()

	for _, c := range checks {
		if _, failed := c.failure(); failed {
			return false
		}
	}
	return true
}

// Stop cancels the background check goroutines. Safe to call repeatedly.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the /livez probe: 200 when all liveness checks pass,
// 503 with failure details otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := append([]*check(nil), h.liveness...)
	h.mu.RUnlock()

	writeStatus(w, collectFailures(checks))
}

// ReadyEndpoint serves the /readyz probe: 200 when the service is marked
// ready and all readiness checks pass.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := append([]*check(nil), h.readiness...)
	h.mu.RUnlock()

	failures := collectFailures(checks)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func collectFailures(checks []*check) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		if msg, failed := c.failure(); failed {
			failures[c.name] = msg
		}
	}
	return failures
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
