// Package speedtrack computes a per-task sliding-window transfer rate
// and ETA (component C5).
package speedtrack

import (
	"sync"
	"time"
)

const (
	defaultWindow = 3 * time.Second
	cacheFor      = 100 * time.Millisecond
)

type sample struct {
	at    time.Time
	bytes int64
}

// Tracker accumulates byte-write samples and reports a smoothed rate
// over the trailing window.
type Tracker struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample

	cachedRate float64
	cachedAt   time.Time
}

// New returns a Tracker using the default 3 second window.
func New() *Tracker {
	return &Tracker{window: defaultWindow}
}

// NewWithWindow returns a Tracker using a custom window, for tests or
// alternate smoothing needs.
func NewWithWindow(window time.Duration) *Tracker {
	return &Tracker{window: window}
}

// Add records that n bytes were written just now.
func (t *Tracker) Add(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, sample{at: time.Now(), bytes: n})
	t.cleanupLocked()
}

// Rate returns the average bytes/s over the trailing window. The
// result is cached for up to 100ms to bound recomputation cost on hot
// progress loops.
func (t *Tracker) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if !t.cachedAt.IsZero() && now.Sub(t.cachedAt) < cacheFor {
		return t.cachedRate
	}

	t.cleanupLocked()
	if len(t.samples) == 0 {
		t.cachedRate = 0
		t.cachedAt = now
		return 0
	}

	var total int64
	for _, s := range t.samples {
		total += s.bytes
	}
	elapsed := now.Sub(t.samples[0].at).Seconds()
	if elapsed <= 0 {
		elapsed = t.window.Seconds()
	}

	t.cachedRate = float64(total) / elapsed
	t.cachedAt = now
	return t.cachedRate
}

// ETA divides remaining bytes by the current rate. Returns nil if the
// rate is zero or negative (no estimate possible).
func (t *Tracker) ETA(remaining int64) *int64 {
	rate := t.Rate()
	if rate <= 0 {
		return nil
	}
	seconds := int64(float64(remaining) / rate)
	return &seconds
}

// Reset discards all samples and the cached rate.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = nil
	t.cachedRate = 0
	t.cachedAt = time.Time{}
}

func (t *Tracker) cleanupLocked() {
	cutoff := time.Now().Add(-t.window)
	i := 0
	for i < len(t.samples) && t.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.samples = t.samples[i:]
	}
}

// GlobalTracker aggregates per-task trackers so the engine can report
// overall throughput and active-transfer counts.
type GlobalTracker struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
}

// NewGlobal returns an empty GlobalTracker.
func NewGlobal() *GlobalTracker {
	return &GlobalTracker{trackers: make(map[string]*Tracker)}
}

// For returns (creating if necessary) the Tracker for taskID.
func (g *GlobalTracker) For(taskID string) *Tracker {
	g.mu.Lock()
	defer g.mu.Unlock()
	tr, ok := g.trackers[taskID]
	if !ok {
		tr = New()
		g.trackers[taskID] = tr
	}
	return tr
}

// Remove drops the tracker for taskID, e.g. once the task reaches a
// terminal state.
func (g *GlobalTracker) Remove(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.trackers, taskID)
}

// TotalRate sums the current rate across every tracked task.
func (g *GlobalTracker) TotalRate() float64 {
	g.mu.Lock()
	trackers := make([]*Tracker, 0, len(g.trackers))
	for _, tr := range g.trackers {
		trackers = append(trackers, tr)
	}
	g.mu.Unlock()

	var total float64
	for _, tr := range trackers {
		total += tr.Rate()
	}
	return total
}

// ActiveCount returns the number of tasks currently tracked.
func (g *GlobalTracker) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.trackers)
}
