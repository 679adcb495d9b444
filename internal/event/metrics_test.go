package event

import (
	"testing"
	"time"

	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

func TestCollector_Counters(t *testing.T) {
	c := newCollector()

	c.published(topic.StatusChanged)
	c.published(topic.StatusChanged)
	c.delivered(topic.StatusChanged, time.Millisecond)
	c.dropped(topic.StatusChanged)
	c.failed(topic.StatusChanged)
	c.published(topic.SummaryReady)

	snap := c.snapshot(7)
	if snap.QueueDepth != 7 {
		t.Errorf("QueueDepth = %d, want 7", snap.QueueDepth)
	}

	sc := snap.Topics[topic.StatusChanged]
	if sc.Published != 2 || sc.Delivered != 1 || sc.Dropped != 1 || sc.Failed != 1 {
		t.Errorf("unexpected counters: %+v", sc)
	}

	sr := snap.Topics[topic.SummaryReady]
	if sr.Published != 1 || sr.Delivered != 0 {
		t.Errorf("unexpected counters: %+v", sr)
	}
}

func TestCollector_LatencyPercentiles(t *testing.T) {
	c := newCollector()

	// 1ms..100ms, uniformly.
	for i := 1; i <= 100; i++ {
		c.delivered(topic.StatusChanged, time.Duration(i)*time.Millisecond)
	}

	m := c.snapshot(0).Topics[topic.StatusChanged]
	if m.P50Latency < 45*time.Millisecond || m.P50Latency > 55*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms", m.P50Latency)
	}
	if m.P95Latency < 90*time.Millisecond || m.P95Latency > 100*time.Millisecond {
		t.Errorf("P95 = %v, want ~95ms", m.P95Latency)
	}
	if m.MeanLatency < 45*time.Millisecond || m.MeanLatency > 55*time.Millisecond {
		t.Errorf("Mean = %v, want ~50.5ms", m.MeanLatency)
	}
}

func TestCollector_LatencyRingWraps(t *testing.T) {
	c := newCollector()

	// Fill past the ring size; old slow samples must age out.
	for i := 0; i < latencySamples; i++ {
		c.delivered(topic.StatusChanged, time.Second)
	}
	for i := 0; i < latencySamples; i++ {
		c.delivered(topic.StatusChanged, time.Millisecond)
	}

	m := c.snapshot(0).Topics[topic.StatusChanged]
	if m.Delivered != 2*latencySamples {
		t.Errorf("Delivered = %d, want %d", m.Delivered, 2*latencySamples)
	}
	if m.P95Latency != time.Millisecond {
		t.Errorf("P95 = %v, want 1ms after ring wrapped", m.P95Latency)
	}
}

func TestCollector_EmptySnapshot(t *testing.T) {
	c := newCollector()
	snap := c.snapshot(0)
	if len(snap.Topics) != 0 {
		t.Errorf("expected no topics, got %d", len(snap.Topics))
	}
}

func TestCollector_NoLatencySamples(t *testing.T) {
	c := newCollector()
	c.published(topic.StatusChanged)

	m := c.snapshot(0).Topics[topic.StatusChanged]
	if m.P50Latency != 0 || m.P95Latency != 0 || m.MeanLatency != 0 {
		t.Errorf("expected zero latencies without samples: %+v", m)
	}
}

func TestPercentileIndex(t *testing.T) {
	tests := []struct {
		n, pct, want int
	}{
		{1, 50, 0},
		{1, 95, 0},
		{100, 50, 50},
		{100, 95, 95},
		{100, 100, 99},
		{10, 95, 9},
	}
	for _, tt := range tests {
		if got := percentileIndex(tt.n, tt.pct); got != tt.want {
			t.Errorf("percentileIndex(%d, %d) = %d, want %d", tt.n, tt.pct, got, tt.want)
		}
	}
}
