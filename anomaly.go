package engram

import (
	"math"
	"sync"
)

// BaselineTracker keeps a bounded ring buffer of samples per metric name
// and computes the mean and sample variance over that window (a two-pass
// computation on each query), implementing the predictive-coding-style
// anomaly check: a value is anomalous if it falls more than sigma
// standard deviations from the running mean, once enough samples have
// accumulated.
type BaselineTracker struct {
	mu         sync.Mutex
	windowSize int
	metrics    map[string]*metricWindow
}

type metricWindow struct {
	samples []float64
	next    int
	full    bool
}

// NewBaselineTracker creates a tracker with the given per-metric window
// size. A non-positive windowSize defaults to 100.
func NewBaselineTracker(windowSize int) *BaselineTracker {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &BaselineTracker{
		windowSize: windowSize,
		metrics:    make(map[string]*metricWindow),
	}
}

// Observe records a new sample for metric.
func (t *BaselineTracker) Observe(metric string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.metrics[metric]
	if !ok {
		w = &metricWindow{samples: make([]float64, t.windowSize)}
		t.metrics[metric] = w
	}
	w.samples[w.next] = value
	w.next = (w.next + 1) % t.windowSize
	if w.next == 0 {
		w.full = true
	}
}

// count, mean, and stddev compute the current sample statistics for a
// metric window. Unexported: called with the lock already held.
func (w *metricWindow) stats() (n int, mean float64, stddev float64) {
	n = w.next
	if w.full {
		n = len(w.samples)
	}
	if n == 0 {
		return 0, 0, 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += w.samples[i]
	}
	mean = sum / float64(n)

	if n == 1 {
		return 1, mean, 0
	}

	var sumSq float64
	for i := 0; i < n; i++ {
		d := w.samples[i] - mean
		sumSq += d * d
	}
	variance := sumSq / float64(n-1)
	return n, mean, math.Sqrt(variance)
}

// IsAnomaly reports whether value is an anomaly for metric, given the
// tracker's accumulated history: true iff at least minSamples have been
// observed and |value-mean|/sigma exceeds the sigma threshold. A
// zero-variance baseline (every sample identical) reports true for any
// value that differs from the mean at all.
func (t *BaselineTracker) IsAnomaly(metric string, value float64, sigmaThreshold float64, minSamples int) bool {
	if sigmaThreshold <= 0 {
		sigmaThreshold = 2.0
	}
	if minSamples <= 0 {
		minSamples = 5
	}

	t.mu.Lock()
	w, ok := t.metrics[metric]
	var n int
	var mean, stddev float64
	if ok {
		n, mean, stddev = w.stats()
	}
	t.mu.Unlock()
	if !ok {
		return false
	}

	if n < minSamples {
		return false
	}

	if stddev == 0 {
		return value != mean
	}

	z := math.Abs(value-mean) / stddev
	return z > sigmaThreshold
}

// Reset clears all tracked metrics.
func (t *BaselineTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = make(map[string]*metricWindow)
}
