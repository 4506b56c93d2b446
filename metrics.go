package lrugo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    hitCounter    prometheus.Counter
//	    loadHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordHit() {
//	    p.hitCounter.Inc()
//	}
type MetricsCollector interface {
	// RecordHit is called when a lookup finds a live entry.
	RecordHit()

	// RecordMiss is called when a lookup finds no entry (or an expired one).
	RecordMiss()

	// RecordEviction is called once per evicted entry.
	// reason distinguishes capacity pressure, resizes, expiry and purges.
	RecordEviction(reason EvictReason)

	// RecordLoad is called after each read-through load.
	// duration is the total time taken, err is nil if successful.
	RecordLoad(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot save or restore.
	RecordSnapshot(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordHit()                          {}
func (NoopMetricsCollector) RecordMiss()                         {}
func (NoopMetricsCollector) RecordEviction(EvictReason)          {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)     {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	HitCount           atomic.Int64
	MissCount          atomic.Int64
	EvictedCapacity    atomic.Int64
	EvictedResize      atomic.Int64
	EvictedExpired     atomic.Int64
	EvictedPurged      atomic.Int64
	LoadCount          atomic.Int64
	LoadErrors         atomic.Int64
	LoadTotalNanos     atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
	SnapshotTotalNanos atomic.Int64
}

// RecordHit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordHit() {
	b.HitCount.Add(1)
}

// RecordMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMiss() {
	b.MissCount.Add(1)
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(reason EvictReason) {
	switch reason {
	case ReasonCapacity:
		b.EvictedCapacity.Add(1)
	case ReasonResize:
		b.EvictedResize.Add(1)
	case ReasonExpired:
		b.EvictedExpired.Add(1)
	case ReasonPurged:
		b.EvictedPurged.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() Stats {
	return Stats{
		Hits:            b.HitCount.Load(),
		Misses:          b.MissCount.Load(),
		EvictedCapacity: b.EvictedCapacity.Load(),
		EvictedResize:   b.EvictedResize.Load(),
		EvictedExpired:  b.EvictedExpired.Load(),
		EvictedPurged:   b.EvictedPurged.Load(),
		Loads:           b.LoadCount.Load(),
		LoadErrors:      b.LoadErrors.Load(),
		LoadAvgNanos:    b.getAvgLoadNanos(),
		Snapshots:       b.SnapshotCount.Load(),
		SnapshotErrors:  b.SnapshotErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgLoadNanos() int64 {
	count := b.LoadCount.Load()
	if count == 0 {
		return 0
	}
	return b.LoadTotalNanos.Load() / count
}

// Stats is a snapshot of BasicMetricsCollector state.
type Stats struct {
	Hits            int64
	Misses          int64
	EvictedCapacity int64
	EvictedResize   int64
	EvictedExpired  int64
	EvictedPurged   int64
	Loads           int64
	LoadErrors      int64
	LoadAvgNanos    int64
	Snapshots       int64
	SnapshotErrors  int64
}

// Evictions returns the total number of evicted entries across all reasons.
func (s Stats) Evictions() int64 {
	return s.EvictedCapacity + s.EvictedResize + s.EvictedExpired + s.EvictedPurged
}

// HitRatio returns hits / (hits + misses), or 0 when no lookups were recorded.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
