// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics provides observability for a decentralized epoch
// manager.
//
// This package implements thread-safe metrics collection using a
// buffered channel and a background processing goroutine, the same
// architecture used to keep hot-path epoch Enter/Exit calls free of
// lock contention. It tracks driver ticks, enter attempts and their
// retry rate, exits, thread registration churn, and the latency and
// value of GlobalTailEpoch computations.
//
// # Key Features
//
//   - Thread-safe metrics collection using buffered channels and background processing
//   - Driver tick and epoch-advance tracking
//   - Enter/retry/exit counters split by read-write and read-only path
//   - Registration/deregistration churn counters
//   - GlobalTailEpoch latency ring buffer and last-observed watermark
//   - Bounded memory usage with ring buffers
//
// # Usage Examples
//
// Creating and using metrics:
//
//	m := metrics.NewMetrics()
//	defer m.Close()
//
//	start := time.Now()
//	cid := epochMgr.Enter(tid)
//	m.RecordEnter(time.Since(start))
//
//	tail := epochMgr.GlobalTailEpoch()
//	m.RecordGlobalTailEpoch(tail, time.Since(start))
//
//	stats := m.GetStats()
//	fmt.Printf("enters: %d, avg latency: %s\n", stats.Enters, stats.EnterLatency.Mean)
//
// # Performance Characteristics
//
//   - **Fast Operation Recording**: Non-blocking channel sends for minimal overhead
//   - **Background Processing**: Metrics processed asynchronously to avoid blocking operations
//   - **Bounded Memory**: Ring buffers prevent unbounded memory growth
//   - **Event Loss Protection**: Non-blocking sends prevent operation blocking
//
// # Dangers and Warnings
//
//   - **Background Goroutine**: Requires proper cleanup with Close() method
//   - **Event Loss**: If buffer is full, events may be dropped (non-blocking behavior)
//   - **Stats Latency**: Stats may be slightly delayed due to background processing
//
// # Thread Safety
//
// All metrics operations are thread-safe and can be called concurrently
// from multiple goroutines. Background processing ensures consistency
// without blocking the epoch manager's hot path.
//
// # See Also
//
// For the manager these metrics observe, see the epoch package.
package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// LatencyStats provides comprehensive latency statistics.
type LatencyStats struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// DurationRingBuffer implements a thread-safe bounded ring buffer for time.Duration.
type DurationRingBuffer struct {
	buffer []time.Duration
	head   int
	tail   int
	size   int
	count  int
	mu     sync.RWMutex
}

// NewDurationRingBuffer creates a new ring buffer with the given capacity.
func NewDurationRingBuffer(capacity int) *DurationRingBuffer {
	return &DurationRingBuffer{
		buffer: make([]time.Duration, capacity),
		size:   capacity,
	}
}

// Push adds an item to the ring buffer.
func (rb *DurationRingBuffer) Push(item time.Duration) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buffer[rb.tail] = item
	rb.tail = (rb.tail + 1) % rb.size

	if rb.count < rb.size {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % rb.size
	}
}

// GetStats calculates comprehensive latency statistics over the buffer's contents.
func (rb *DurationRingBuffer) GetStats() LatencyStats {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return LatencyStats{}
	}

	values := make([]time.Duration, rb.count)
	for i := 0; i < rb.count; i++ {
		idx := (rb.head + i) % rb.size
		values[i] = rb.buffer[idx]
	}

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	stats := LatencyStats{
		Count: uint64(rb.count),
		Min:   values[0],
		Max:   values[rb.count-1],
	}

	var total time.Duration
	for _, v := range values {
		total += v
	}
	stats.Mean = total / time.Duration(rb.count)

	stats.P50 = rb.percentile(values, 0.50)
	stats.P95 = rb.percentile(values, 0.95)
	stats.P99 = rb.percentile(values, 0.99)

	return stats
}

func (rb *DurationRingBuffer) percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	index := int(float64(len(values)-1) * p)
	if index >= len(values) {
		index = len(values) - 1
	}
	return values[index]
}

// MetricsConfig provides configuration options for metrics collection.
type MetricsConfig struct {
	BufferSize           int // Size of the event buffer
	EnterLatencyBuffer   int // Enter() latency ring buffer size
	ReducerLatencyBuffer int // GlobalTailEpoch() latency ring buffer size
}

// DefaultMetricsConfig returns a default configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		BufferSize:           10000,
		EnterLatencyBuffer:   1000,
		ReducerLatencyBuffer: 1000,
	}
}

// MetricEvent represents a single metric event.
type MetricEvent struct {
	Type      string
	Duration  time.Duration
	Value     uint64
	Timestamp time.Time
}

// MetricsSnapshot provides a complete snapshot of all epoch metrics.
type MetricsSnapshot struct {
	Ticks               uint64       `json:"ticks"`
	Enters              uint64       `json:"enters"`
	EnterRetries        uint64       `json:"enter_retries"`
	Exits               uint64       `json:"exits"`
	ReadOnlyEnters      uint64       `json:"read_only_enters"`
	ReadOnlyExits       uint64       `json:"read_only_exits"`
	Registrations       uint64       `json:"registrations"`
	Deregistrations     uint64       `json:"deregistrations"`
	ResetRejections     uint64       `json:"reset_rejections"`
	LastGlobalTailEpoch uint64       `json:"last_global_tail_epoch"`
	EnterLatency        LatencyStats `json:"enter_latency"`
	ReducerLatency      LatencyStats `json:"reducer_latency"`
}

// Metrics tracks epoch manager activity using a buffered channel and a
// background processing goroutine.
type Metrics struct {
	config MetricsConfig

	eventChan chan MetricEvent
	done      chan struct{}
	wg        sync.WaitGroup

	mu sync.RWMutex

	ticks               uint64
	enters              uint64
	enterRetries        uint64
	exits               uint64
	readOnlyEnters      uint64
	readOnlyExits       uint64
	registrations       uint64
	deregistrations     uint64
	resetRejections     uint64
	lastGlobalTailEpoch uint64

	enterLatency   *DurationRingBuffer
	reducerLatency *DurationRingBuffer
}

// NewMetrics creates a new metrics instance with default configuration.
func NewMetrics() *Metrics {
	return NewMetricsWithConfig(DefaultMetricsConfig())
}

// NewMetricsWithConfig creates a new metrics instance with custom configuration.
func NewMetricsWithConfig(config MetricsConfig) *Metrics {
	m := &Metrics{
		config:         config,
		eventChan:      make(chan MetricEvent, config.BufferSize),
		done:           make(chan struct{}),
		enterLatency:   NewDurationRingBuffer(config.EnterLatencyBuffer),
		reducerLatency: NewDurationRingBuffer(config.ReducerLatencyBuffer),
	}

	m.wg.Add(1)
	go m.processEvents()

	return m
}

func (m *Metrics) processEvents() {
	defer m.wg.Done()

	for {
		select {
		case event := <-m.eventChan:
			m.processEvent(event)
		case <-m.done:
			return
		}
	}
}

func (m *Metrics) processEvent(event MetricEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.Type {
	case "tick":
		m.ticks++
	case "enter":
		m.enters++
		m.enterLatency.Push(event.Duration)
	case "enter_retry":
		m.enterRetries++
	case "exit":
		m.exits++
	case "read_only_enter":
		m.readOnlyEnters++
	case "read_only_exit":
		m.readOnlyExits++
	case "register":
		m.registrations++
	case "deregister":
		m.deregistrations++
	case "reset_rejected":
		m.resetRejections++
	case "global_tail_epoch":
		m.lastGlobalTailEpoch = event.Value
		m.reducerLatency.Push(event.Duration)
	}
}

func (m *Metrics) send(event MetricEvent) {
	select {
	case m.eventChan <- event:
	default:
		// Channel full, drop the event to avoid blocking the epoch manager.
	}
}

// RecordTick records one driver tick (one global epoch advance).
func (m *Metrics) RecordTick() {
	m.send(MetricEvent{Type: "tick", Timestamp: time.Now()})
}

// RecordEnter records a successful Enter call and its latency, measured
// from the caller's first global-epoch sample to the successful attempt.
func (m *Metrics) RecordEnter(duration time.Duration) {
	m.send(MetricEvent{Type: "enter", Duration: duration, Timestamp: time.Now()})
}

// RecordEnterRetry records one retry iteration inside Enter, caused by
// the reducer advancing the local head between the sample and the local
// enter attempt.
func (m *Metrics) RecordEnterRetry() {
	m.send(MetricEvent{Type: "enter_retry", Timestamp: time.Now()})
}

// RecordExit records a completed Exit call.
func (m *Metrics) RecordExit() {
	m.send(MetricEvent{Type: "exit", Timestamp: time.Now()})
}

// RecordReadOnlyEnter records a successful EnterReadOnly call.
func (m *Metrics) RecordReadOnlyEnter() {
	m.send(MetricEvent{Type: "read_only_enter", Timestamp: time.Now()})
}

// RecordReadOnlyExit records a completed ExitReadOnly call.
func (m *Metrics) RecordReadOnlyExit() {
	m.send(MetricEvent{Type: "read_only_exit", Timestamp: time.Now()})
}

// RecordRegister records a thread registering a LocalEpochContext.
func (m *Metrics) RecordRegister() {
	m.send(MetricEvent{Type: "register", Timestamp: time.Now()})
}

// RecordDeregister records a thread tearing down its LocalEpochContext.
func (m *Metrics) RecordDeregister() {
	m.send(MetricEvent{Type: "deregister", Timestamp: time.Now()})
}

// RecordResetRejected records a Reset call rejected because the driver
// was running or a thread was still registered.
func (m *Metrics) RecordResetRejected() {
	m.send(MetricEvent{Type: "reset_rejected", Timestamp: time.Now()})
}

// RecordGlobalTailEpoch records the watermark a GlobalTailEpoch call
// returned and how long the reduction took.
func (m *Metrics) RecordGlobalTailEpoch(tail uint64, duration time.Duration) {
	m.send(MetricEvent{Type: "global_tail_epoch", Value: tail, Duration: duration, Timestamp: time.Now()})
}

// GetStats returns a snapshot of current metrics.
func (m *Metrics) GetStats() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		Ticks:               m.ticks,
		Enters:              m.enters,
		EnterRetries:        m.enterRetries,
		Exits:               m.exits,
		ReadOnlyEnters:      m.readOnlyEnters,
		ReadOnlyExits:       m.readOnlyExits,
		Registrations:       m.registrations,
		Deregistrations:     m.deregistrations,
		ResetRejections:     m.resetRejections,
		LastGlobalTailEpoch: m.lastGlobalTailEpoch,
		EnterLatency:        m.enterLatency.GetStats(),
		ReducerLatency:      m.reducerLatency.GetStats(),
	}
}

// ExportPrometheus exports metrics in Prometheus text exposition format.
func (m *Metrics) ExportPrometheus() string {
	stats := m.GetStats()
	var result string

	result += "# HELP dem_driver_ticks_total Total number of global epoch advances\n"
	result += "# TYPE dem_driver_ticks_total counter\n"
	result += fmt.Sprintf("dem_driver_ticks_total %d\n", stats.Ticks)

	result += "# HELP dem_enters_total Total number of successful Enter calls\n"
	result += "# TYPE dem_enters_total counter\n"
	result += fmt.Sprintf("dem_enters_total %d\n", stats.Enters)

	result += "# HELP dem_enter_retries_total Total number of Enter retry iterations\n"
	result += "# TYPE dem_enter_retries_total counter\n"
	result += fmt.Sprintf("dem_enter_retries_total %d\n", stats.EnterRetries)

	result += "# HELP dem_exits_total Total number of Exit calls\n"
	result += "# TYPE dem_exits_total counter\n"
	result += fmt.Sprintf("dem_exits_total %d\n", stats.Exits)

	result += "# HELP dem_registrations_total Total number of RegisterThread calls\n"
	result += "# TYPE dem_registrations_total counter\n"
	result += fmt.Sprintf("dem_registrations_total %d\n", stats.Registrations)

	result += "# HELP dem_deregistrations_total Total number of DeregisterThread calls\n"
	result += "# TYPE dem_deregistrations_total counter\n"
	result += fmt.Sprintf("dem_deregistrations_total %d\n", stats.Deregistrations)

	result += "# HELP dem_global_tail_epoch Last value returned by GlobalTailEpoch\n"
	result += "# TYPE dem_global_tail_epoch gauge\n"
	result += fmt.Sprintf("dem_global_tail_epoch %d\n", stats.LastGlobalTailEpoch)

	result += "# HELP dem_enter_latency_nanoseconds Mean latency of Enter calls\n"
	result += "# TYPE dem_enter_latency_nanoseconds gauge\n"
	result += fmt.Sprintf("dem_enter_latency_nanoseconds %d\n", int64(stats.EnterLatency.Mean.Nanoseconds()))

	result += "# HELP dem_reducer_latency_nanoseconds Mean latency of GlobalTailEpoch calls\n"
	result += "# TYPE dem_reducer_latency_nanoseconds gauge\n"
	result += fmt.Sprintf("dem_reducer_latency_nanoseconds %d\n", int64(stats.ReducerLatency.Mean.Nanoseconds()))

	return result
}

// ExportJSON exports metrics as JSON.
func (m *Metrics) ExportJSON() []byte {
	stats := m.GetStats()
	data, _ := json.MarshalIndent(stats, "", "  ")
	return data
}

// Close shuts down the metrics processor. It must be called exactly
// once, after which no further Record* call is safe.
func (m *Metrics) Close() {
	close(m.done)
	m.wg.Wait()
}
