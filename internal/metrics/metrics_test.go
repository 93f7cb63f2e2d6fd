package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/promptroute/promptroute/types"
)

func TestNew(t *testing.T) {
	r := New()
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	if r.reg == nil {
		t.Fatal("expected non-nil prometheus registry")
	}
	if r.RequestsTotal == nil || r.RequestLatency == nil || r.FallbacksTotal == nil {
		t.Fatal("collectors not initialized")
	}
}

func TestHandlerNonNil(t *testing.T) {
	r := New()
	if r.Handler() == nil {
		t.Fatal("expected non-nil http.Handler from Handler()")
	}
}

func TestObserve(t *testing.T) {
	r := New()
	r.Observe(types.ObservabilityEvent{
		PromptID:      "greeting",
		VariantID:     "v_main",
		Provider:      "openai-main",
		RoutingReason: "weight-distribution",
		Timings:       types.Timings{Total: 120},
		TokenUsage:    &types.Usage{PromptTokens: 10, CompletionTokens: 5},
		Fallbacks: []types.FallbackAttempt{
			{Provider: "openai-main", Model: "gpt-4o", Reason: types.ReasonRateLimit},
		},
		FallbackUsed: true,
		Success:      true,
	})

	if got := testutil.ToFloat64(r.RequestsTotal.WithLabelValues("greeting", "v_main", "openai-main", "success")); got != 1 {
		t.Errorf("requests_total = %v", got)
	}
	if got := testutil.ToFloat64(r.FallbacksTotal.WithLabelValues("openai-main", "rate-limit")); got != 1 {
		t.Errorf("fallback_attempts_total = %v", got)
	}
	if got := testutil.ToFloat64(r.TokensTotal.WithLabelValues("greeting", "openai-main", "prompt")); got != 10 {
		t.Errorf("tokens_total prompt = %v", got)
	}
	if got := testutil.ToFloat64(r.RoutingDecisions.WithLabelValues("greeting", "v_main", "weight-distribution")); got != 1 {
		t.Errorf("routing_decisions_total = %v", got)
	}
}

func TestObserveError(t *testing.T) {
	r := New()
	r.Observe(types.ObservabilityEvent{
		PromptID:  "greeting",
		VariantID: "v_main",
		Provider:  "openai-main",
		Success:   false,
	})
	if got := testutil.ToFloat64(r.RequestsTotal.WithLabelValues("greeting", "v_main", "openai-main", "error")); got != 1 {
		t.Errorf("requests_total error = %v", got)
	}
}
