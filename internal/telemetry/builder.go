// Package telemetry assembles one observability event per request and
// delivers it to an optional sink. Emission is fire-and-forget: a
// panicking sink never affects the request outcome.
package telemetry

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/promptroute/promptroute/types"
)

// Builder accumulates one event. It is request-scoped and not safe for
// concurrent use; each chat-completion call owns exactly one Builder.
type Builder struct {
	event   types.ObservabilityEvent
	start   time.Time
	sink    types.ObservabilitySink
	emitted bool
}

// New starts a builder. Construction captures the request identity and a
// monotonic start point; variantId begins as "unknown" so an error before
// routing still produces a well-formed event.
func New(sdkVersion, environment, promptID, userID string, sink types.ObservabilitySink) *Builder {
	return &Builder{
		event: types.ObservabilityEvent{
			RequestID:     uuid.NewString(),
			UserID:        userID,
			Timestamp:     time.Now().UTC(),
			SDKVersion:    sdkVersion,
			Environment:   environment,
			PromptID:      promptID,
			VariantID:     "unknown",
			RoutingReason: "default",
		},
		start: time.Now(),
		sink:  sink,
	}
}

// RequestID returns the identifier assigned at construction.
func (b *Builder) RequestID() string { return b.event.RequestID }

func (b *Builder) SetVariantID(id string) { b.event.VariantID = id }

func (b *Builder) SetRouting(reason string, tags []string) {
	b.event.RoutingReason = reason
	b.event.RoutingTags = tags
}

func (b *Builder) SetExperiment(tags []string, weighted bool, weight float64) {
	b.event.Experiment = &types.ExperimentContext{
		Tags:              tags,
		WeightedSelection: weighted,
		SelectedWeight:    weight,
	}
}

// MarkTemplate records the time from construction to now as the template
// stage duration.
func (b *Builder) MarkTemplate() {
	b.event.Timings.Template = b.sinceStart()
}

// MarkProvider records the time from construction to now as the provider
// stage duration.
func (b *Builder) MarkProvider() {
	b.event.Timings.Provider = b.sinceStart()
}

func (b *Builder) SetProvider(providerID, model string) {
	b.event.Provider = providerID
	b.event.Model = model
}

func (b *Builder) SetProviderRequestID(id string) {
	b.event.ProviderRequestID = id
}

func (b *Builder) SetTokenUsage(usage *types.Usage) {
	b.event.TokenUsage = usage
}

// AddFallbackAttempt appends one non-terminal failure and flips
// fallbackUsed, since a later attempt will run.
func (b *Builder) AddFallbackAttempt(provider, model string, reason types.FailureReason) {
	b.event.FallbackUsed = true
	b.event.Fallbacks = append(b.event.Fallbacks, types.FallbackAttempt{
		Provider: provider,
		Model:    model,
		Reason:   reason,
	})
	retries := int64(len(b.event.Fallbacks))
	b.event.Timings.Retries = &retries
}

func (b *Builder) SetCustom(key string, value any) {
	if b.event.Custom == nil {
		b.event.Custom = make(map[string]any)
	}
	b.event.Custom[key] = value
}

// BuildSuccess finalizes and emits a success event.
func (b *Builder) BuildSuccess() types.ObservabilityEvent {
	b.event.Success = true
	b.event.Error = nil
	return b.finish()
}

// BuildError finalizes and emits a failure event carrying err.
func (b *Builder) BuildError(err error) types.ObservabilityEvent {
	b.event.Success = false
	b.event.Error = errorInfo(err)
	return b.finish()
}

func (b *Builder) finish() types.ObservabilityEvent {
	b.event.Timings.Total = time.Since(b.start).Milliseconds()
	b.emit()
	return b.event
}

// emit delivers the event at most once. Sink panics are swallowed.
func (b *Builder) emit() {
	if b.emitted || b.sink == nil {
		return
	}
	b.emitted = true
	defer func() { _ = recover() }()
	b.sink(b.event)
}

func (b *Builder) sinceStart() *int64 {
	ms := time.Since(b.start).Milliseconds()
	return &ms
}

func errorInfo(err error) *types.ErrorInfo {
	var pe *types.ProviderError
	if errors.As(err, &pe) {
		return &types.ErrorInfo{
			Type:       string(pe.Reason),
			Message:    pe.Message,
			Code:       pe.Code,
			Retryable:  pe.Retryable,
			Provider:   pe.Provider,
			HTTPStatus: pe.HTTPStatus,
		}
	}
	var te *types.Error
	if errors.As(err, &te) {
		return &types.ErrorInfo{
			Type:    string(te.Kind),
			Message: te.Message,
			Code:    te.Code,
		}
	}
	return &types.ErrorInfo{
		Type:    string(types.KindExecution),
		Message: err.Error(),
	}
}
