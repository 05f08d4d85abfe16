package observability

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Checks holds named dependency checks, such as artifact sinks.
type Checks struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewChecks creates an empty check set.
func NewChecks() *Checks {
	return &Checks{checks: make(map[string]Check)}
}

// Register adds or replaces a check.
func (p *Checks) Register(name string, check Check) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[name] = check
}

// Len returns the number of registered checks.
func (p *Checks) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.checks)
}

// Run executes every check concurrently, each bounded by timeout, and
// returns the results sorted by name.
func (p *Checks) Run(ctx context.Context, timeout time.Duration) []CheckResult {
	p.mu.RLock()
	names := make([]string, 0, len(p.checks))
	for name := range p.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(p.checks))
	for k, v := range p.checks {
		checks[k] = v
	}
	p.mu.RUnlock()
	sort.Strings(names)

	results := make([]CheckResult, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			pctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			start := time.Now()
			err := checks[name](pctx)
			results[i] = CheckResult{Name: name, OK: err == nil, Duration: time.Since(start)}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// AllOK reports whether every result succeeded.
func AllOK(results []CheckResult) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
