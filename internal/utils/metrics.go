// internal/utils/metrics.go
package utils

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects counters and latency histograms
type MetricsCollector struct {
	counters   map[string]*int64
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Histogram tracks count, sum, min and max of recorded values
type Histogram struct {
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

// NewMetricsCollector creates an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*int64),
		histograms: make(map[string]*Histogram),
	}
}

// AddCounter adds a value to a counter metric
func (m *MetricsCollector) AddCounter(name string, value int64) {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Double-check after acquiring write lock
		counter, exists = m.counters[name]
		if !exists {
			counter = new(int64)
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	atomic.AddInt64(counter, value)
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	m.AddCounter(name, 1)
}

// GetCounterValue gets the current value of a counter
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// RecordHistogram records a value in a histogram
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		histogram, exists = m.histograms[name]
		if !exists {
			histogram = &Histogram{min: value, max: value}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.mu.Lock()
	defer histogram.mu.Unlock()

	histogram.count++
	histogram.sum += value
	if value < histogram.min {
		histogram.min = value
	}
	if value > histogram.max {
		histogram.max = value
	}
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, counter := range m.counters {
		counters[name] = atomic.LoadInt64(counter)
	}

	histograms := make(map[string]map[string]int64, len(m.histograms))
	for name, histogram := range m.histograms {
		histogram.mu.Lock()
		histograms[name] = map[string]int64{
			"count": histogram.count,
			"sum":   histogram.sum,
			"min":   histogram.min,
			"max":   histogram.max,
		}
		histogram.mu.Unlock()
	}

	return map[string]interface{}{
		"counters":   counters,
		"histograms": histograms,
	}
}

// GenerationMetrics records generation attempts per provider
type GenerationMetrics struct {
	metrics *MetricsCollector
	logger  *Logger
}

// NewGenerationMetrics wraps a collector for generation bookkeeping
func NewGenerationMetrics(metrics *MetricsCollector, logger *Logger) *GenerationMetrics {
	if metrics == nil {
		metrics = NewMetricsCollector()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &GenerationMetrics{metrics: metrics, logger: logger}
}

// Collector returns the underlying collector
func (gm *GenerationMetrics) Collector() *MetricsCollector {
	return gm.metrics
}

// RecordGeneration records one finished attempt; outcome is "ok" or an error kind
func (gm *GenerationMetrics) RecordGeneration(kind, provider, outcome string, duration time.Duration) {
	gm.metrics.IncrementCounter("generation_attempts_total")
	gm.metrics.IncrementCounter(fmt.Sprintf("generation_%s_%s_%s", kind, provider, outcome))
	gm.metrics.RecordHistogram("generation_latency_ms_"+provider, duration.Milliseconds())

	fields := map[string]interface{}{
		"kind":        kind,
		"provider":    provider,
		"outcome":     outcome,
		"duration_ms": duration.Milliseconds(),
	}
	if outcome == "ok" {
		gm.logger.Info("generation completed", fields)
	} else {
		gm.metrics.IncrementCounter("generation_failures_total")
		gm.logger.Warn("generation failed", fields)
	}
}

// RecordAPIRequest records metrics for an API request
func (gm *GenerationMetrics) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	gm.metrics.IncrementCounter("api_requests_total")
	gm.metrics.IncrementCounter(fmt.Sprintf("api_responses_%dxx", statusCode/100))
	gm.metrics.RecordHistogram("api_response_time_ms", duration.Milliseconds())

	gm.logger.Debug("API request completed", map[string]interface{}{
		"route":    route,
		"method":   method,
		"status":   statusCode,
		"duration": duration.Milliseconds(),
	})
}
