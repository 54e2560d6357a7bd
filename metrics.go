package taskloop

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// pollSampleSize is the number of poll-duration samples retained in the
// rolling window used for percentile computation.
const pollSampleSize = 512

// Metrics tracks runtime statistics for sessions. Attach an instance with
// [WithMetrics]; the same instance may be shared by several sessions to
// aggregate across them.
//
// Thread safety: all methods are safe for concurrent use, and every method
// is a no-op on a nil receiver, so instrumentation sites need no guards.
type Metrics struct {
	primarySpawned atomic.Uint64
	daemonSpawned  atomic.Uint64
	completed      atomic.Uint64
	discarded      atomic.Uint64
	polls          atomic.Uint64
	sleeps         atomic.Uint64
	inconsistent   atomic.Uint64
	panics         atomic.Uint64

	mu          sync.Mutex
	sampleIdx   int
	sampleCount int
	samples     [pollSampleSize]time.Duration
}

// MetricsSnapshot is a point-in-time copy of a [Metrics] instance, with
// poll-duration percentiles computed over the rolling sample window.
type MetricsSnapshot struct {
	// PrimarySpawned counts primary task submissions.
	PrimarySpawned uint64
	// DaemonSpawned counts daemon task submissions.
	DaemonSpawned uint64
	// TasksCompleted counts tasks that finished under the drive loop.
	TasksCompleted uint64
	// TasksDiscarded counts tasks dropped unfinished at session teardown.
	TasksDiscarded uint64
	// Polls counts individual task polls, finished or not.
	Polls uint64
	// Sleeps counts loop suspensions on an empty ready queue.
	Sleeps uint64
	// InconsistentRetries counts yield-and-retry rounds taken when the
	// ready queue was observed mid-push.
	InconsistentRetries uint64
	// TaskPanics counts panics recovered from task polls.
	TaskPanics uint64

	// Poll duration percentiles over the rolling window.
	PollP50 time.Duration
	PollP90 time.Duration
	PollP99 time.Duration
	PollMax time.Duration
}

// Snapshot returns a point-in-time copy of the metrics. Percentile
// computation sorts the sample window, so prefer calling it outside hot
// paths.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	s := MetricsSnapshot{
		PrimarySpawned:      m.primarySpawned.Load(),
		DaemonSpawned:       m.daemonSpawned.Load(),
		TasksCompleted:      m.completed.Load(),
		TasksDiscarded:      m.discarded.Load(),
		Polls:               m.polls.Load(),
		Sleeps:              m.sleeps.Load(),
		InconsistentRetries: m.inconsistent.Load(),
		TaskPanics:          m.panics.Load(),
	}
	m.mu.Lock()
	count := m.sampleCount
	sorted := make([]time.Duration, count)
	copy(sorted, m.samples[:count])
	m.mu.Unlock()
	if count > 0 {
		slices.Sort(sorted)
		s.PollP50 = sorted[percentileIndex(count, 50)]
		s.PollP90 = sorted[percentileIndex(count, 90)]
		s.PollP99 = sorted[percentileIndex(count, 99)]
		s.PollMax = sorted[count-1]
	}
	return s
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

func (m *Metrics) taskSpawned(k kind) {
	if m == nil {
		return
	}
	if k == kindDaemon {
		m.daemonSpawned.Add(1)
	} else {
		m.primarySpawned.Add(1)
	}
}

func (m *Metrics) taskCompleted() {
	if m == nil {
		return
	}
	m.completed.Add(1)
}

func (m *Metrics) tasksDiscarded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.discarded.Add(uint64(n))
}

func (m *Metrics) sleepObserved() {
	if m == nil {
		return
	}
	m.sleeps.Add(1)
}

func (m *Metrics) inconsistentObserved() {
	if m == nil {
		return
	}
	m.inconsistent.Add(1)
}

func (m *Metrics) taskPanicked() {
	if m == nil {
		return
	}
	m.panics.Add(1)
}

func (m *Metrics) pollObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.polls.Add(1)
	m.mu.Lock()
	m.samples[m.sampleIdx] = d
	m.sampleIdx++
	if m.sampleIdx >= pollSampleSize {
		m.sampleIdx = 0
	}
	if m.sampleCount < pollSampleSize {
		m.sampleCount++
	}
	m.mu.Unlock()
}
