package metrics

import (
	"sync"
	"time"
)

type Latency struct {
	// EWMA of inference time in milliseconds.
	EWMAms float64 `json:"ewma_ms"`

	OK    uint64 `json:"ok"`
	Error uint64 `json:"error"`

	LastDuration time.Duration `json:"-"`
	LastAt       time.Time     `json:"-"`
}

// LatencyTracker keeps per-route inference latency and outcome counters.
type LatencyTracker struct {
	mu     sync.RWMutex
	alpha  float64
	routes map[string]*Latency
}

// NewLatencyTracker creates a tracker with EWMA smoothing factor alpha.
// Typical alpha: 0.1..0.3 (higher reacts faster).
func NewLatencyTracker(alpha float64) *LatencyTracker {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.2
	}
	return &LatencyTracker{
		alpha:  alpha,
		routes: map[string]*Latency{},
	}
}

func (t *LatencyTracker) ObserveOK(route string, d time.Duration) {
	t.observe(route, d, true)
}

func (t *LatencyTracker) ObserveError(route string, d time.Duration) {
	t.observe(route, d, false)
}

func (t *LatencyTracker) observe(route string, d time.Duration, ok bool) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.routes[route]
	if l == nil {
		l = &Latency{}
		t.routes[route] = l
	}

	ms := float64(d.Microseconds()) / 1000
	if ms < 0 {
		ms = 0
	}

	if l.OK+l.Error == 0 {
		l.EWMAms = ms
	} else {
		l.EWMAms = (t.alpha * ms) + ((1.0 - t.alpha) * l.EWMAms)
	}

	l.LastDuration = d
	l.LastAt = now
	if ok {
		l.OK++
	} else {
		l.Error++
	}
}

func (t *LatencyTracker) Get(route string) (Latency, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	l := t.routes[route]
	if l == nil {
		return Latency{}, false
	}
	return *l, true
}

func (t *LatencyTracker) Snapshot() map[string]Latency {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Latency, len(t.routes))
	for k, v := range t.routes {
		out[k] = *v
	}
	return out
}
