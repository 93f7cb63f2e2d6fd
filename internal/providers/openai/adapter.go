// Package openai adapts the OpenAI chat-completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/promptroute/promptroute/internal/providers"
	"github.com/promptroute/promptroute/types"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Adapter implements providers.Caller for OpenAI-shaped APIs.
type Adapter struct {
	id      string
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates an OpenAI adapter. A zero timeout defaults to 30s.
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
	messages := make([]map[string]string, len(opts.Messages))
	for i, msg := range opts.Messages {
		messages[i] = map[string]string{
			"role":    string(msg.Role),
			"content": msg.Content,
		}
	}

	payload := map[string]any{
		"model":    opts.Model,
		"messages": messages,
	}
	if opts.UserID != "" {
		payload["user"] = opts.UserID
	}
	for k, v := range opts.Params {
		if k != "model" && k != "messages" {
			payload[k] = v
		}
	}
	if opts.Format == providers.FormatJSONSchema {
		name := opts.SchemaName
		if name == "" {
			name = "response"
		}
		payload["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   name,
				"schema": opts.Schema,
				"strict": true,
			},
		}
	}

	body, err := providers.DoRequest(ctx, a.client, a.baseURL+"/chat/completions", payload, a.authHeaders())
	if err != nil {
		return nil, providers.Classify(a.id, err)
	}

	var resp types.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providers.Classify(a.id, fmt.Errorf("failed to parse response: %w", err))
	}
	return &resp, nil
}

func (a *Adapter) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + a.apiKey,
	}
}
