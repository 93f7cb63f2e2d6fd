// Package anthropic adapts the Anthropic messages API.
package anthropic

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

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

// Adapter implements providers.Caller for Anthropic-shaped APIs.
type Adapter struct {
	id      string
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates an Anthropic adapter. A zero timeout defaults to 30s.
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
	// System messages fold into a single prefix; the rest form the
	// conversation.
	var system []string
	var messages []map[string]string
	for _, msg := range opts.Messages {
		if msg.Role == types.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		messages = append(messages, map[string]string{
			"role":    string(msg.Role),
			"content": msg.Content,
		})
	}

	payload := map[string]any{
		"model":    opts.Model,
		"messages": messages,
	}
	if len(system) > 0 {
		payload["system"] = strings.Join(system, "\n\n")
	}
	for k, v := range opts.Params {
		if k != "model" && k != "messages" && k != "system" {
			payload[k] = v
		}
	}
	// Anthropic requires max_tokens.
	if _, ok := payload["max_tokens"]; !ok {
		payload["max_tokens"] = 4096
	}

	structured := opts.Format == providers.FormatJSONSchema
	toolName := opts.SchemaName
	if toolName == "" {
		toolName = "structured_output"
	}
	if structured {
		payload["tools"] = []map[string]any{{
			"name":         toolName,
			"description":  "Produce the structured response.",
			"input_schema": opts.Schema,
		}}
		payload["tool_choice"] = map[string]any{"type": "tool", "name": toolName}
	}

	body, err := providers.DoRequest(ctx, a.client, a.baseURL+"/v1/messages", payload, a.authHeaders())
	if err != nil {
		return nil, providers.Classify(a.id, err)
	}

	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providers.Classify(a.id, fmt.Errorf("failed to parse response: %w", err))
	}
	return normalize(a.id, &resp, structured)
}

func (a *Adapter) authHeaders() map[string]string {
	return map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": apiVersion,
	}
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// normalize flattens the content blocks into the common response shape.
// For structured output the forced tool's input is the content.
func normalize(providerID string, resp *messagesResponse, structured bool) (*types.ChatResponse, error) {
	var content string
	if structured {
		found := false
		for _, block := range resp.Content {
			if block.Type == "tool_use" {
				content = string(block.Input)
				found = true
				break
			}
		}
		if !found {
			return nil, providers.Classify(providerID,
				fmt.Errorf("structured output requested but no tool_use block returned"))
		}
	} else {
		var parts []string
		for _, block := range resp.Content {
			if block.Type == "text" {
				parts = append(parts, block.Text)
			}
		}
		content = strings.Join(parts, "")
	}

	return &types.ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Choices: []types.Choice{{
			Index: 0,
			Message: types.Message{
				Role:    types.RoleAssistant,
				Content: content,
			},
			FinishReason: finishReason(resp.StopReason),
		}},
		Usage: &types.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func finishReason(stop string) string {
	switch stop {
	case "end_turn", "stop_sequence", "tool_use":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return stop
	}
}
