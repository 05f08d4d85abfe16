package sdk

import "sync"

// HealthStatus is the traffic-light health of an engine.
type HealthStatus string

const (
	HealthGreen  HealthStatus = "GREEN"
	HealthYellow HealthStatus = "YELLOW"
	HealthRed    HealthStatus = "RED"
)

// String returns the string representation of the status.
func (s HealthStatus) String() string {
	return string(s)
}

const (
	// HealthWindowCapacity is the number of outcomes an engine remembers.
	HealthWindowCapacity = 10

	// DegradedThreshold is the lowest success rate still reported as YELLOW.
	DegradedThreshold = 0.7
)

// DeriveHealth maps a sequence of outcomes to a status.
// GREEN needs a full window of successes; an empty window is YELLOW.
func DeriveHealth(outcomes []bool, capacity int) HealthStatus {
	if len(outcomes) == 0 {
		return HealthYellow
	}

	successes := 0
	for _, ok := range outcomes {
		if ok {
			successes++
		}
	}

	rate := float64(successes) / float64(len(outcomes))
	switch {
	case successes == len(outcomes) && len(outcomes) == capacity:
		return HealthGreen
	case rate >= DegradedThreshold:
		return HealthYellow
	default:
		return HealthRed
	}
}

// HealthWindow is a fixed-capacity ring of stage outcomes.
// The oldest outcome is evicted once the window is full.
type HealthWindow struct {
	mu    sync.RWMutex
	buf   []bool
	head  int
	count int
}

// NewHealthWindow creates a window holding up to capacity outcomes.
func NewHealthWindow(capacity int) *HealthWindow {
	if capacity <= 0 {
		capacity = HealthWindowCapacity
	}
	return &HealthWindow{buf: make([]bool, capacity)}
}

// Record appends an outcome.
func (w *HealthWindow) Record(ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := (w.head + w.count) % len(w.buf)
	w.buf[idx] = ok
	if w.count < len(w.buf) {
		w.count++
		return
	}
	w.head = (w.head + 1) % len(w.buf)
}

// Outcomes returns the retained outcomes, oldest first.
func (w *HealthWindow) Outcomes() []bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.outcomesLocked()
}

func (w *HealthWindow) outcomesLocked() []bool {
	out := make([]bool, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Len returns the number of retained outcomes.
func (w *HealthWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Capacity returns the maximum number of retained outcomes.
func (w *HealthWindow) Capacity() int {
	return len(w.buf)
}

// Status derives the current health.
func (w *HealthWindow) Status() HealthStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return DeriveHealth(w.outcomesLocked(), len(w.buf))
}

// Rate returns the success rate of the retained outcomes, or 0 when empty.
func (w *HealthWindow) Rate() float64 {
	outcomes := w.Outcomes()
	if len(outcomes) == 0 {
		return 0
	}
	successes := 0
	for _, ok := range outcomes {
		if ok {
			successes++
		}
	}
	return float64(successes) / float64(len(outcomes))
}
