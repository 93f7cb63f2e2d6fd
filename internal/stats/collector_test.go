package stats

import (
	"testing"
	"time"

	"github.com/promptroute/promptroute/types"
)

func TestRecordAndGlobal(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	c.Record(Snapshot{Timestamp: now, PromptID: "greeting", ProviderID: "openai-main", LatencyMs: 100, Success: true})
	c.Record(Snapshot{Timestamp: now, PromptID: "summary", ProviderID: "anthropic-main", LatencyMs: 200, Success: true})

	global := c.Global()
	if len(global) == 0 {
		t.Fatal("expected global aggregates")
	}
	for _, a := range global {
		if a.RequestCount != 2 {
			t.Errorf("window %s: request_count = %d", a.Window, a.RequestCount)
		}
		if a.AvgLatencyMs != 150 {
			t.Errorf("window %s: avg_latency = %v", a.Window, a.AvgLatencyMs)
		}
		if a.ErrorCount != 0 || a.ErrorRate != 0 {
			t.Errorf("window %s: errors = %d rate %v", a.Window, a.ErrorCount, a.ErrorRate)
		}
	}
}

func TestRecordEventProjection(t *testing.T) {
	c := NewCollector()
	c.RecordEvent(types.ObservabilityEvent{
		Timestamp:     time.Now(),
		PromptID:      "greeting",
		VariantID:     "v_default",
		Provider:      "openai-main",
		RoutingReason: "weight-distribution",
		Timings:       types.Timings{Total: 250},
		TokenUsage:    &types.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		FallbackUsed:  true,
		Success:       true,
	})

	global := c.Global()
	if len(global) == 0 {
		t.Fatal("expected aggregates")
	}
	a := global[0]
	if a.AvgLatencyMs != 250 {
		t.Errorf("latency = %v", a.AvgLatencyMs)
	}
	if a.PromptTokens != 10 || a.CompletionTokens != 5 || a.TotalTokens != 15 {
		t.Errorf("tokens: %+v", a)
	}
	if a.FallbackCount != 1 {
		t.Errorf("fallback_count = %d", a.FallbackCount)
	}
}

func TestSummaryGroupsByPrompt(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	c.Record(Snapshot{Timestamp: now, PromptID: "greeting", LatencyMs: 100, Success: true})
	c.Record(Snapshot{Timestamp: now, PromptID: "greeting", LatencyMs: 300, Success: false})
	c.Record(Snapshot{Timestamp: now, PromptID: "summary", LatencyMs: 50, Success: true})

	summary := c.Summary()
	aggs, ok := summary["1m"]
	if !ok {
		t.Fatal("missing 1m window")
	}
	byPrompt := make(map[string]Aggregate)
	for _, a := range aggs {
		byPrompt[a.PromptID] = a
	}
	g := byPrompt["greeting"]
	if g.RequestCount != 2 || g.ErrorCount != 1 || g.ErrorRate != 0.5 {
		t.Errorf("greeting: %+v", g)
	}
	if g.AvgLatencyMs != 200 {
		t.Errorf("greeting latency: %v", g.AvgLatencyMs)
	}
	if byPrompt["summary"].RequestCount != 1 {
		t.Errorf("summary: %+v", byPrompt["summary"])
	}
}

func TestSummaryByProvider(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	c.Record(Snapshot{Timestamp: now, PromptID: "greeting", ProviderID: "openai-main", LatencyMs: 100, Success: true})
	c.Record(Snapshot{Timestamp: now, PromptID: "greeting", ProviderID: "anthropic-main", LatencyMs: 200, Success: true})

	summary := c.SummaryByProvider()
	aggs := summary["1h"]
	if len(aggs) != 2 {
		t.Fatalf("expected 2 provider aggregates, got %d", len(aggs))
	}
	for _, a := range aggs {
		if a.ProviderID == "" || a.PromptID != "" {
			t.Errorf("aggregate: %+v", a)
		}
	}
}

func TestWindowFiltering(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	// Inside 1h but outside 1m and 5m.
	c.Record(Snapshot{Timestamp: now.Add(-30 * time.Minute), PromptID: "greeting", LatencyMs: 100, Success: true})

	summary := c.Summary()
	if len(summary["1m"]) != 0 {
		t.Errorf("1m should be empty: %+v", summary["1m"])
	}
	if len(summary["5m"]) != 0 {
		t.Errorf("5m should be empty: %+v", summary["5m"])
	}
	if len(summary["1h"]) != 1 {
		t.Errorf("1h: %+v", summary["1h"])
	}
}

func TestPruneDropsExpired(t *testing.T) {
	c := NewCollector()
	c.Record(Snapshot{Timestamp: time.Now().Add(-48 * time.Hour), PromptID: "old"})
	c.Record(Snapshot{Timestamp: time.Now(), PromptID: "fresh"})

	c.Prune()
	if got := c.SnapshotCount(); got != 1 {
		t.Errorf("snapshot count after prune = %d", got)
	}
}

func TestSeed(t *testing.T) {
	c := NewCollector()
	c.Seed([]Snapshot{
		{Timestamp: time.Now(), PromptID: "greeting", LatencyMs: 10, Success: true},
		{Timestamp: time.Now(), PromptID: "greeting", LatencyMs: 20, Success: true},
	})
	if got := c.SnapshotCount(); got != 2 {
		t.Errorf("snapshot count = %d", got)
	}
}

func TestSeedNewestFirstStillPrunes(t *testing.T) {
	// Event stores list newest-first; pruning scans oldest-first.
	c := NewCollector()
	c.Seed([]Snapshot{
		{Timestamp: time.Now(), PromptID: "fresh"},
		{Timestamp: time.Now().Add(-48 * time.Hour), PromptID: "stale"},
	})

	c.Prune()
	if got := c.SnapshotCount(); got != 1 {
		t.Fatalf("snapshot count after prune = %d", got)
	}
	global := c.Global()
	if len(global) == 0 {
		t.Fatal("fresh snapshot lost")
	}
}

func TestP95Latency(t *testing.T) {
	c := NewCollector()
	now := time.Now()
	for i := 1; i <= 100; i++ {
		c.Record(Snapshot{Timestamp: now, PromptID: "greeting", LatencyMs: float64(i), Success: true})
	}

	global := c.Global()
	if len(global) == 0 {
		t.Fatal("expected aggregates")
	}
	if p95 := global[0].P95LatencyMs; p95 < 95 || p95 > 97 {
		t.Errorf("p95 = %v", p95)
	}
}

func TestZeroTimestampDefaultsToNow(t *testing.T) {
	c := NewCollector()
	c.Record(Snapshot{PromptID: "greeting", Success: true})

	summary := c.Summary()
	if len(summary["1m"]) != 1 {
		t.Errorf("1m: %+v", summary["1m"])
	}
}
