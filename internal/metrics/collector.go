// Package metrics provides in-memory timing statistics for client operations.
package metrics

import (
	"math"
	"slices"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Op          string  `json:"op" yaml:"op"`
	Count       int64   `json:"count" yaml:"count"`
	Failures    int64   `json:"failures" yaml:"failures"`
	TotalTimeMs int64   `json:"totalTimeMs" yaml:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs" yaml:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs" yaml:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs" yaml:"maxTimeMs"`
}

// Snapshot represents all statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64             `json:"uptimeSeconds" yaml:"uptimeSeconds"`
	Operations    []OperationSnapshot `json:"operations" yaml:"operations"`
}

// Operation names for the collector.
const (
	OpChannelConnect = "channel_connect"
	OpJobSubmit      = "job_submit"
	OpResultFetch    = "result_fetch"
	OpTreeBuild      = "tree_build"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe. A nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.record(op, duration, false)
}

// RecordFailure records timing for a failed operation.
func (c *Collector) RecordFailure(op string, duration time.Duration) {
	c.record(op, duration, true)
}

// Observe records the time elapsed since start, as a failure when err is set.
//
//	start := time.Now()
//	err := doWork()
//	collector.Observe(metrics.OpJobSubmit, start, err)
func (c *Collector) Observe(op string, start time.Time, err error) {
	c.record(op, time.Since(start), err != nil)
}

func (c *Collector) record(op string, duration time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	if failed {
		m.Failures++
	}
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(op string, m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Op:          op,
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics, ordered by
// operation name.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{UptimeSeconds: time.Since(c.startTime).Seconds()}
	names := make([]string, 0, len(c.ops))
	for op := range c.ops {
		names = append(names, op)
	}
	slices.Sort(names)
	for _, op := range names {
		if s := snapshotOp(op, c.ops[op]); s != nil {
			snap.Operations = append(snap.Operations, *s)
		}
	}
	return snap
}
