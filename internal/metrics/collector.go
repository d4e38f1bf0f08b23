// Package metrics keeps in-memory runtime statistics for the chat and render pipelines.
package metrics

import (
	"sync"
	"time"
)

const (
	OpChatStream   = "chat_stream"
	OpTitleUpdate  = "title_update"
	OpRender       = "render"
	OpDocumentSave = "document_save"
)

type operation struct {
	count    int64
	failures int64
	total    time.Duration
	min      time.Duration
	max      time.Duration
	tokens   int64
}

// OperationSnapshot holds computed stats for one operation.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures"`
	TotalTimeMs int64   `json:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs"`
	Tokens      int64   `json:"tokens,omitempty"`
}

type Snapshot struct {
	UptimeSeconds float64                      `json:"uptimeSeconds"`
	ActiveStreams int64                        `json:"activeStreams"`
	Operations    map[string]OperationSnapshot `json:"operations"`
}

// Collector is safe for concurrent use. A nil *Collector discards everything.
type Collector struct {
	mu            sync.RWMutex
	startTime     time.Time
	activeStreams int64
	ops           map[string]*operation
}

func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*operation),
	}
}

// Record adds one timed operation. tokens only matters for streams.
func (c *Collector) Record(op string, d time.Duration, tokens int64, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.ops[op]
	if !ok {
		m = &operation{min: d}
		c.ops[op] = m
	}
	m.count++
	m.total += d
	m.tokens += tokens
	if failed {
		m.failures++
	}
	if d < m.min {
		m.min = d
	}
	if d > m.max {
		m.max = d
	}
}

// StreamStarted marks a stream as in flight; call the returned func when it ends.
func (c *Collector) StreamStarted() func() {
	if c == nil {
		return func() {}
	}
	c.mu.Lock()
	c.activeStreams++
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.activeStreams--
			c.mu.Unlock()
		})
	}
}

func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Operations: map[string]OperationSnapshot{}}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		ActiveStreams: c.activeStreams,
		Operations:    make(map[string]OperationSnapshot, len(c.ops)),
	}
	for name, m := range c.ops {
		snap.Operations[name] = OperationSnapshot{
			Count:       m.count,
			Failures:    m.failures,
			TotalTimeMs: m.total.Milliseconds(),
			AvgTimeMs:   float64(m.total.Milliseconds()) / float64(m.count),
			MinTimeMs:   m.min.Milliseconds(),
			MaxTimeMs:   m.max.Milliseconds(),
			Tokens:      m.tokens,
		}
	}
	return snap
}
