package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/resilience"
)

// Dependency states, worst last.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Probe reports an error when a dependency is unreachable
type Probe func(ctx context.Context) error

// DependencyStatus is the outcome of one probe
type DependencyStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Critical  bool      `json:"critical"`
	LatencyMs int64     `json:"latency_ms"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// BreakerStatus reports whether a circuit breaker lets calls through
type BreakerStatus struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Allows bool   `json:"allows_requests"`
}

// Report is the deep health view of the gateway
type Report struct {
	Status        string                      `json:"status"`
	Version       string                      `json:"version,omitempty"`
	UptimeSeconds int64                       `json:"uptime_seconds"`
	Dependencies  map[string]DependencyStatus `json:"dependencies"`
	Breakers      map[string]BreakerStatus    `json:"circuit_breakers,omitempty"`
	CheckedAt     time.Time                   `json:"checked_at"`
}

// Config tunes the checker
type Config struct {
	Version  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Version:  "unknown",
		Timeout:  3 * time.Second,
		CacheTTL: 10 * time.Second,
	}
}

type probe struct {
	fn       Probe
	critical bool
}

// Checker probes dependencies concurrently and caches the report briefly so
// the endpoint cannot be used to hammer upstreams.
type Checker struct {
	mu       sync.RWMutex
	probes   map[string]probe
	breakers map[string]*resilience.CircuitBreaker
	version  string
	started  time.Time
	timeout  time.Duration
	cacheTTL time.Duration

	last   *Report
	lastAt time.Time
	now    func() time.Time
}

// NewChecker creates a checker with no dependencies
func NewChecker(cfg Config) *Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Checker{
		probes:   make(map[string]probe),
		breakers: make(map[string]*resilience.CircuitBreaker),
		version:  cfg.Version,
		started:  time.Now(),
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
		now:      time.Now,
	}
}

// AddProbe registers a dependency. A failing critical probe makes the whole
// report unhealthy; any other failure only degrades it.
func (c *Checker) AddProbe(name string, critical bool, fn Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe{fn: fn, critical: critical}
	c.last = nil
}

// AddCircuitBreaker reports the state of breaker under name
func (c *Checker) AddCircuitBreaker(name string, breaker *resilience.CircuitBreaker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakers[name] = breaker
	c.last = nil
}

// Check runs every probe, or returns the cached report while it is fresh
func (c *Checker) Check(ctx context.Context) *Report {
	c.mu.RLock()
	if c.last != nil && c.now().Sub(c.lastAt) < c.cacheTTL {
		report := c.last
		c.mu.RUnlock()
		return report
	}
	probes := make(map[string]probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(c.breakers))
	for name, b := range c.breakers {
		breakers[name] = b
	}
	c.mu.RUnlock()

	checkedAt := c.now()
	report := &Report{
		Status:        StatusHealthy,
		Version:       c.version,
		UptimeSeconds: int64(checkedAt.Sub(c.started).Seconds()),
		Dependencies:  make(map[string]DependencyStatus, len(probes)),
		Breakers:      make(map[string]BreakerStatus, len(breakers)),
		CheckedAt:     checkedAt,
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, p := range probes {
		wg.Add(1)
		go func(name string, p probe) {
			defer wg.Done()
			dep := c.run(ctx, name, p)
			mu.Lock()
			report.Dependencies[name] = dep
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	for _, dep := range report.Dependencies {
		switch {
		case dep.Status == StatusHealthy:
		case dep.Critical:
			report.Status = StatusUnhealthy
		case report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}

	for name, b := range breakers {
		allows := b.Allow()
		state := "closed"
		if !allows {
			state = "open"
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
		report.Breakers[name] = BreakerStatus{Name: name, State: state, Allows: allows}
	}

	c.mu.Lock()
	c.last = report
	c.lastAt = checkedAt
	c.mu.Unlock()

	return report
}

func (c *Checker) run(ctx context.Context, name string, p probe) DependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := p.fn(ctx)
	dep := DependencyStatus{
		Name:      name,
		Status:    StatusHealthy,
		Critical:  p.critical,
		LatencyMs: time.Since(start).Milliseconds(),
		CheckedAt: start,
	}
	if err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
	}
	return dep
}

// Ready returns an error naming every failing critical dependency
func (c *Checker) Ready(ctx context.Context) error {
	report := c.Check(ctx)

	var failing []string
	for name, dep := range report.Dependencies {
		if dep.Critical && dep.Status != StatusHealthy {
			failing = append(failing, name)
		}
	}
	if len(failing) == 0 {
		return nil
	}
	sort.Strings(failing)
	return fmt.Errorf("critical dependencies unavailable: %v", failing)
}

// Handler serves the report. Degraded is still 200 so load balancers keep
// routing while optional upstreams recover.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		report := c.Check(ctx.Request.Context())

		status := http.StatusOK
		if report.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, report)
	}
}
