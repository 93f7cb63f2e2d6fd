package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/promptroute/promptroute/internal/providers"
	"github.com/promptroute/promptroute/types"
)

func TestChatCompletionFoldsSystemMessages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("version = %q", r.Header.Get("anthropic-version"))
		}

		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["system"] != "Be brief.\n\nBe kind." {
			t.Errorf("system = %q", payload["system"])
		}
		msgs := payload["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("messages = %v", msgs)
		}
		first := msgs[0].(map[string]any)
		if first["role"] != "user" || first["content"] != "hi" {
			t.Errorf("first message = %v", first)
		}
		if payload["max_tokens"] != float64(300) {
			t.Errorf("max_tokens = %v", payload["max_tokens"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg-1",
			"model":       "claude-sonnet-4",
			"content":     []map[string]any{{"type": "text", "text": "Hello!"}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 12, "output_tokens": 3},
		})
	}))
	defer ts.Close()

	a := New("anthropic-main", "test-key", WithBaseURL(ts.URL))
	resp, err := a.ChatCompletion(context.Background(), providers.Options{
		Model: "claude-sonnet-4",
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "Be brief."},
			{Role: types.RoleSystem, Content: "Be kind."},
			{Role: types.RoleUser, Content: "hi"},
			{Role: types.RoleAssistant, Content: "hey"},
		},
		Params: map[string]any{"max_tokens": float64(300)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID != "msg-1" || resp.Content() != "Hello!" {
		t.Errorf("resp: %+v", resp)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason: %q", resp.Choices[0].FinishReason)
	}
	if resp.Usage == nil || resp.Usage.PromptTokens != 12 || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage: %+v", resp.Usage)
	}
}

func TestChatCompletionDefaultsMaxTokens(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["max_tokens"] != float64(4096) {
			t.Errorf("max_tokens = %v", payload["max_tokens"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "msg-2",
			"content": []map[string]any{{"type": "text", "text": "ok"}},
		})
	}))
	defer ts.Close()

	a := New("anthropic-main", "k", WithBaseURL(ts.URL))
	_, err := a.ChatCompletion(context.Background(), providers.Options{
		Model:    "claude-sonnet-4",
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestChatCompletionStructuredOutputViaTool(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"label":{"type":"string"}}}`)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		tools := payload["tools"].([]any)
		tool := tools[0].(map[string]any)
		if tool["name"] != "sentiment" {
			t.Errorf("tool name = %v", tool["name"])
		}
		if tool["input_schema"] == nil {
			t.Error("missing input_schema")
		}
		tc := payload["tool_choice"].(map[string]any)
		if tc["type"] != "tool" || tc["name"] != "sentiment" {
			t.Errorf("tool_choice = %v", tc)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "msg-3",
			"content": []map[string]any{{
				"type":  "tool_use",
				"input": map[string]string{"label": "pos"},
			}},
			"stop_reason": "tool_use",
		})
	}))
	defer ts.Close()

	a := New("anthropic-main", "k", WithBaseURL(ts.URL))
	resp, err := a.ChatCompletion(context.Background(), providers.Options{
		Model:      "claude-sonnet-4",
		Messages:   []types.Message{{Role: types.RoleUser, Content: "classify"}},
		Format:     providers.FormatJSONSchema,
		SchemaName: "sentiment",
		Schema:     schema,
	})
	if err != nil {
		t.Fatal(err)
	}

	var out map[string]string
	if err := json.Unmarshal([]byte(resp.Content()), &out); err != nil {
		t.Fatalf("content not JSON: %v", err)
	}
	if out["label"] != "pos" {
		t.Errorf("content: %q", resp.Content())
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason: %q", resp.Choices[0].FinishReason)
	}
}

func TestChatCompletionStructuredOutputMissingTool(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "msg-4",
			"content": []map[string]any{{"type": "text", "text": "refused"}},
		})
	}))
	defer ts.Close()

	a := New("anthropic-main", "k", WithBaseURL(ts.URL))
	_, err := a.ChatCompletion(context.Background(), providers.Options{
		Model:    "claude-sonnet-4",
		Messages: []types.Message{{Role: types.RoleUser, Content: "classify"}},
		Format:   providers.FormatJSONSchema,
		Schema:   json.RawMessage(`{"type":"object"}`),
	})
	if err == nil {
		t.Fatal("expected error when tool_use block is absent")
	}
}

func TestChatCompletionMaxTokensFinishReason(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg-5",
			"content":     []map[string]any{{"type": "text", "text": "trunca"}},
			"stop_reason": "max_tokens",
		})
	}))
	defer ts.Close()

	a := New("anthropic-main", "k", WithBaseURL(ts.URL))
	resp, err := a.ChatCompletion(context.Background(), providers.Options{
		Model:    "claude-sonnet-4",
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Choices[0].FinishReason != "length" {
		t.Errorf("finish_reason: %q", resp.Choices[0].FinishReason)
	}
}

func TestChatCompletionRateLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer ts.Close()

	a := New("anthropic-main", "k", WithBaseURL(ts.URL))
	_, err := a.ChatCompletion(context.Background(), providers.Options{
		Model:    "claude-sonnet-4",
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	var pe *types.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Reason != types.ReasonRateLimit || !pe.Retryable || pe.Provider != "anthropic-main" {
		t.Errorf("got %+v", pe)
	}
}
