// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpLLMStream   = "llm_stream"
	OpLLMGenerate = "llm_generate"
	OpQuizParse   = "quiz_parse"
	OpDBQuery     = "db_query"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for LLM operations)
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count             int64   `json:"count"`
	TotalTimeMs       int64   `json:"total_time_ms"`
	AvgTimeMs         float64 `json:"avg_time_ms"`
	MinTimeMs         int64   `json:"min_time_ms"`
	MaxTimeMs         int64   `json:"max_time_ms"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Operations    map[string]OperationSnapshot `json:"operations"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
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

func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{}
		c.ops[op] = m
	}
	return m
}

// Record adds one timed occurrence of an operation.
func (c *Collector) Record(op string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += d
	if m.MinTime == 0 || d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
}

// RecordTokens adds token counts to an LLM operation.
func (c *Collector) RecordTokens(op string, input, output int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.TotalInputTokens += int64(input)
	m.TotalOutputTokens += int64(output)
}

// Start begins timing an operation; the returned func records the duration.
func (c *Collector) Start(op string) func() {
	begin := time.Now()
	return func() {
		c.Record(op, time.Since(begin))
	}
}

// Snapshot returns computed statistics for all recorded operations.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    make(map[string]OperationSnapshot, len(c.ops)),
	}
	for op, m := range c.ops {
		s := OperationSnapshot{
			Count:             m.Count,
			TotalTimeMs:       m.TotalTime.Milliseconds(),
			MinTimeMs:         m.MinTime.Milliseconds(),
			MaxTimeMs:         m.MaxTime.Milliseconds(),
			TotalInputTokens:  m.TotalInputTokens,
			TotalOutputTokens: m.TotalOutputTokens,
		}
		if m.Count > 0 {
			s.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
		}
		snap.Operations[op] = s
	}
	return snap
}
