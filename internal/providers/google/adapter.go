// Package google adapts the Gemini generateContent API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/promptroute/promptroute/internal/providers"
	"github.com/promptroute/promptroute/types"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Adapter implements providers.Caller for Google-shaped APIs.
type Adapter struct {
	id      string
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a Google adapter. A zero timeout defaults to 30s.
func New(id, apiKey string, opts ...Option) *Adapter {
	a := &Adapter{
		id:      id,
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API endpoint, e.g. for proxies or tests.
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.baseURL = url }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) ChatCompletion(ctx context.Context, opts providers.Options) (*types.ChatResponse, error) {
	// System messages become the system instruction; the rest serialize
	// into a single prompt with speaker prefixes.
	var system []string
	var turns []string
	for _, msg := range opts.Messages {
		switch msg.Role {
		case types.RoleSystem:
			system = append(system, msg.Content)
		case types.RoleAssistant:
			turns = append(turns, "Assistant: "+msg.Content)
		default:
			turns = append(turns, "User: "+msg.Content)
		}
	}

	generationConfig := make(map[string]any, len(opts.Params)+2)
	for k, v := range opts.Params {
		generationConfig[k] = v
	}
	if opts.Format == providers.FormatJSONSchema {
		generationConfig["responseMimeType"] = "application/json"
		generationConfig["responseSchema"] = opts.Schema
	}

	payload := map[string]any{
		"contents": []map[string]any{{
			"role":  "user",
			"parts": []map[string]string{{"text": strings.Join(turns, "\n\n")}},
		}},
	}
	if len(system) > 0 {
		payload["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": strings.Join(system, "\n\n")}},
		}
	}
	if len(generationConfig) > 0 {
		payload["generationConfig"] = generationConfig
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, opts.Model)
	body, err := providers.DoRequest(ctx, a.client, url, payload, a.authHeaders())
	if err != nil {
		return nil, providers.Classify(a.id, err)
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providers.Classify(a.id, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(resp.Candidates) == 0 {
		return nil, providers.Classify(a.id, fmt.Errorf("response contained no candidates"))
	}
	return normalize(opts.Model, &resp), nil
}

func (a *Adapter) authHeaders() map[string]string {
	return map[string]string{
		"x-goog-api-key": a.apiKey,
	}
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func normalize(model string, resp *generateResponse) *types.ChatResponse {
	out := &types.ChatResponse{Model: model}
	for i, cand := range resp.Candidates {
		var parts []string
		for _, p := range cand.Content.Parts {
			parts = append(parts, p.Text)
		}
		out.Choices = append(out.Choices, types.Choice{
			Index: i,
			Message: types.Message{
				Role:    types.RoleAssistant,
				Content: strings.Join(parts, ""),
			},
			FinishReason: finishReason(cand.FinishReason),
		})
	}
	if um := resp.UsageMetadata; um != nil {
		out.Usage = &types.Usage{
			PromptTokens:     um.PromptTokenCount,
			CompletionTokens: um.CandidatesTokenCount,
			TotalTokens:      um.TotalTokenCount,
		}
	}
	return out
}

func finishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	default:
		return strings.ToLower(reason)
	}
}
