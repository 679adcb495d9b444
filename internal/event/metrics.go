package event

import (
	"sort"
	"sync"
	"time"

	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// latencySamples is the per-topic latency ring buffer size. Percentiles
// are computed over the most recent samples only.
const latencySamples = 512

// TopicMetrics is a snapshot of one topic's counters and latency
// distribution. Latency is measured from enqueue to delivery completion,
// so it includes queue wait, debounce coalescing and handler time.
type TopicMetrics struct {
	Published   uint64
	Delivered   uint64
	Dropped     uint64
	Failed      uint64
	MeanLatency time.Duration
	P50Latency  time.Duration
	P95Latency  time.Duration
}

// MetricsSnapshot is a point-in-time view of bus health.
type MetricsSnapshot struct {
	Topics     map[topic.Topic]TopicMetrics
	QueueDepth int
}

// topicCounters holds the live counters for one topic.
type topicCounters struct {
	published uint64
	delivered uint64
	dropped   uint64
	failed    uint64

	latencies []time.Duration
	next      int
	filled    bool
}

func (c *topicCounters) observe(d time.Duration) {
	if c.latencies == nil {
		c.latencies = make([]time.Duration, latencySamples)
	}
	c.latencies[c.next] = d
	c.next++
	if c.next == len(c.latencies) {
		c.next = 0
		c.filled = true
	}
}

func (c *topicCounters) snapshot() TopicMetrics {
	m := TopicMetrics{
		Published: c.published,
		Delivered: c.delivered,
		Dropped:   c.dropped,
		Failed:    c.failed,
	}

	n := c.next
	if c.filled {
		n = len(c.latencies)
	}
	if n == 0 {
		return m
	}

	samples := make([]time.Duration, n)
	copy(samples, c.latencies[:n])
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	m.MeanLatency = sum / time.Duration(n)
	m.P50Latency = samples[percentileIndex(n, 50)]
	m.P95Latency = samples[percentileIndex(n, 95)]
	return m
}

func percentileIndex(n, pct int) int {
	idx := n * pct / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// collector aggregates per-topic delivery metrics. All methods are safe
// for concurrent use; the hot path takes one mutex per update.
type collector struct {
	mu     sync.Mutex
	topics map[topic.Topic]*topicCounters
}

func newCollector() *collector {
	return &collector{
		topics: make(map[topic.Topic]*topicCounters),
	}
}

func (c *collector) counters(t topic.Topic) *topicCounters {
	tc, ok := c.topics[t]
	if !ok {
		tc = &topicCounters{}
		c.topics[t] = tc
	}
	return tc
}

func (c *collector) published(t topic.Topic) {
	c.mu.Lock()
	c.counters(t).published++
	c.mu.Unlock()
}

func (c *collector) delivered(t topic.Topic, latency time.Duration) {
	c.mu.Lock()
	tc := c.counters(t)
	tc.delivered++
	tc.observe(latency)
	c.mu.Unlock()
}

func (c *collector) dropped(t topic.Topic) {
	c.mu.Lock()
	c.counters(t).dropped++
	c.mu.Unlock()
}

func (c *collector) failed(t topic.Topic) {
	c.mu.Lock()
	c.counters(t).failed++
	c.mu.Unlock()
}

// snapshot returns a copy of all counters. queueDepth is supplied by the
// caller since the collector does not own the queue.
func (c *collector) snapshot(queueDepth int) MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := MetricsSnapshot{
		Topics:     make(map[topic.Topic]TopicMetrics, len(c.topics)),
		QueueDepth: queueDepth,
	}
	for t, tc := range c.topics {
		out.Topics[t] = tc.snapshot()
	}
	return out
}
