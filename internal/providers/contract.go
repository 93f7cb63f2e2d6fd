// Package providers holds the shared contract for LLM vendor adapters:
// the call options, the HTTP transport helper, and the error classifier
// that decides whether the fallback executor may try the next target.
package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/promptroute/promptroute/types"
)

// Caller is the adapter contract. Implementations send one chat
// completion and normalize the vendor response.
type Caller interface {
	ChatCompletion(ctx context.Context, opts Options) (*types.ChatResponse, error)
}

// Output format values carried in Options.Format.
const (
	FormatRawText    = "raw_text"
	FormatJSONSchema = "json_schema"
)

// Options is the provider-agnostic request. Params is the provider-native
// parameter bag, already mapped and clamped for this provider type.
type Options struct {
	Model      string
	Messages   []types.Message
	UserID     string
	Format     string
	SchemaName string
	Schema     json.RawMessage
	Params     map[string]any
}

// StatusError captures a non-2xx provider response so Classify can map the
// status code to a failure reason.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}
