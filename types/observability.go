package types

import "time"

// Timings holds stage durations in milliseconds, measured on the monotonic
// clock from request start.
type Timings struct {
	Total    int64  `json:"total"`
	Template *int64 `json:"template,omitempty"`
	Provider *int64 `json:"provider,omitempty"`
	Retries  *int64 `json:"retries,omitempty"`
}

// FallbackAttempt records one non-terminal provider failure.
type FallbackAttempt struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Reason   FailureReason `json:"reason"`
}

// ErrorInfo is the error payload carried by a failed observability event.
type ErrorInfo struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	Retryable  bool   `json:"retryable"`
	Provider   string `json:"provider,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Stack      string `json:"stack,omitempty"`
}

// ExperimentContext captures the weighted-selection inputs that produced a
// routing decision, for offline experiment analysis.
type ExperimentContext struct {
	Tags              []string `json:"tags,omitempty"`
	WeightedSelection bool     `json:"weighted_selection"`
	SelectedWeight    float64  `json:"selected_weight,omitempty"`
}

// ObservabilityEvent is the single structured record emitted per
// chat-completion call.
type ObservabilityEvent struct {
	RequestID         string             `json:"request_id"`
	UserID            string             `json:"user_id,omitempty"`
	Timestamp         time.Time          `json:"timestamp"`
	SDKVersion        string             `json:"sdk_version"`
	Environment       string             `json:"environment,omitempty"`
	PromptID          string             `json:"prompt_id"`
	VariantID         string             `json:"variant_id"`
	RoutingReason     string             `json:"routing_reason"`
	RoutingTags       []string           `json:"routing_tags,omitempty"`
	Timings           Timings            `json:"timings"`
	TokenUsage        *Usage             `json:"token_usage,omitempty"`
	Provider          string             `json:"provider,omitempty"`
	Model             string             `json:"model,omitempty"`
	ProviderRequestID string             `json:"provider_request_id,omitempty"`
	FallbackUsed      bool               `json:"fallback_used"`
	Fallbacks         []FallbackAttempt  `json:"fallbacks,omitempty"`
	Success           bool               `json:"success"`
	Error             *ErrorInfo         `json:"error,omitempty"`
	Experiment        *ExperimentContext `json:"experiment_context,omitempty"`
	Custom            map[string]any     `json:"custom,omitempty"`
}

// ObservabilitySink receives completed events. Sinks run inline with the
// request; the builder isolates panics so a misbehaving sink cannot affect
// the primary result.
type ObservabilitySink func(ObservabilityEvent)
