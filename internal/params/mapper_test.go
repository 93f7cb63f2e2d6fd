package params

import (
	"reflect"
	"testing"
)

func TestMapAnthropic(t *testing.T) {
	got := Map("anthropic", map[string]any{
		"temperature":       0.5,
		"max_tokens":        100,
		"frequency_penalty": 0.1,
	})
	want := map[string]any{
		"temperature": 0.5,
		"max_tokens":  float64(100),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestMapOpenAI(t *testing.T) {
	got := Map("openai", map[string]any{
		"temperature":       0.5,
		"max_tokens":        100,
		"frequency_penalty": 0.1,
	})
	want := map[string]any{
		"temperature":           1.0,
		"max_completion_tokens": float64(100),
		"frequency_penalty":     0.1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestMapGoogle(t *testing.T) {
	got := Map("google", map[string]any{
		"temperature":       0.5,
		"max_tokens":        100,
		"frequency_penalty": 0.1,
	})
	want := map[string]any{
		"temperature":      1.0,
		"maxOutputTokens":  float64(100),
		"frequencyPenalty": 0.1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestMapClampsAfterScale(t *testing.T) {
	got := Map("openai", map[string]any{"temperature": 1.0})
	if got["temperature"] != 2.0 {
		t.Errorf("scaled temperature: got %v", got["temperature"])
	}
	got = Map("anthropic", map[string]any{"temperature": 1.5})
	if got["temperature"] != 1.0 {
		t.Errorf("clamped temperature: got %v", got["temperature"])
	}
	got = Map("openai", map[string]any{"frequency_penalty": -3.0})
	if got["frequency_penalty"] != -2.0 {
		t.Errorf("clamped penalty: got %v", got["frequency_penalty"])
	}
}

func TestMapRenamesStop(t *testing.T) {
	stop := []string{"END"}
	cases := map[string]string{
		"openai":    "stop",
		"anthropic": "stop_sequences",
		"google":    "stopSequences",
	}
	for providerType, key := range cases {
		got := Map(providerType, map[string]any{"stop": stop})
		v, ok := got[key]
		if !ok {
			t.Errorf("%s: missing %q in %v", providerType, key, got)
			continue
		}
		if !reflect.DeepEqual(v, stop) {
			t.Errorf("%s: got %v", providerType, v)
		}
	}
}

func TestMapDropsUnknownAndUnsupported(t *testing.T) {
	got := Map("anthropic", map[string]any{
		"logit_bias":  map[string]any{"50256": -100},
		"made_up_key": 1,
	})
	if len(got) != 0 {
		t.Errorf("expected empty bag, got %v", got)
	}
}

func TestMapUnknownProviderType(t *testing.T) {
	got := Map("mistral", map[string]any{"temperature": 0.5})
	if len(got) != 0 {
		t.Errorf("expected empty bag, got %v", got)
	}
}
