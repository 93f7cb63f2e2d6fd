package promptroute

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/promptroute/promptroute/config"
	"github.com/promptroute/promptroute/internal/fallback"
	"github.com/promptroute/promptroute/internal/params"
	"github.com/promptroute/promptroute/internal/providers"
	"github.com/promptroute/promptroute/internal/telemetry"
	"github.com/promptroute/promptroute/internal/tracing"
	"github.com/promptroute/promptroute/types"
)

// ChatRequest is one chat-completion call.
type ChatRequest struct {
	PromptID       string          `json:"promptId"`
	Variables      map[string]any  `json:"variables,omitempty"`
	MessageHistory []types.Message `json:"messageHistory,omitempty"`
	UserID         string          `json:"userId,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	// UnixTime pins the routing clock (epoch seconds). Zero means now.
	UnixTime int64 `json:"unixTime,omitempty"`
}

// ChatCompletion routes the request to a variant, renders its messages,
// and executes the provider call with fallback. Exactly one observability
// event is emitted per call, success or failure.
func (e *Engine) ChatCompletion(ctx context.Context, req ChatRequest) (*types.ChatResponse, error) {
	tb := telemetry.New(Version, e.environment, req.PromptID, req.UserID, e.sink)
	ctx = providers.WithRequestID(ctx, tb.RequestID())
	log := e.logger.With("request_id", tb.RequestID(), "prompt", req.PromptID)

	resp, err := e.chatCompletion(ctx, log, tb, req)
	if err != nil {
		tb.BuildError(err)
		log.Warn("chat completion failed", "error", err)
		return nil, err
	}
	tb.BuildSuccess()
	return resp, nil
}

func (e *Engine) chatCompletion(ctx context.Context, log *slog.Logger, tb *telemetry.Builder, req ChatRequest) (*types.ChatResponse, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}

	prompt, ok := cfg.Prompts[req.PromptID]
	if !ok {
		return nil, types.NewError(types.KindExecution, "unknown-prompt",
			fmt.Sprintf("prompt %q is not defined", req.PromptID)).
			WithDetail("prompt", req.PromptID)
	}

	now := req.UnixTime
	if now == 0 {
		now = time.Now().Unix()
	}

	sel, err := e.router.Select(&prompt, req.PromptID, req.UserID, req.Tags, now)
	if err != nil {
		return nil, err
	}
	tb.SetVariantID(sel.VariantID)
	tb.SetRouting(sel.Reason, sel.Tags)
	if sel.Weighted {
		tb.SetExperiment(sel.Tags, true, sel.Weight)
	}
	log.Debug("routed", "variant", sel.VariantID, "reason", sel.Reason)
	tracing.Route(ctx, req.PromptID, sel.VariantID, sel.Reason)

	rendered, err := e.renderMessages(sel.Variant.Messages, req.Variables)
	if err != nil {
		return nil, err
	}
	tb.MarkTemplate()

	// History goes ahead of the rendered messages.
	messages := make([]types.Message, 0, len(req.MessageHistory)+len(rendered))
	messages = append(messages, req.MessageHistory...)
	messages = append(messages, rendered...)

	format, schemaName, schema, err := resolveSchema(cfg, sel.Variant)
	if err != nil {
		return nil, err
	}

	targets := buildTargets(cfg, sel.Variant)

	var served fallback.Target
	failedAttempts := 0
	resp, err := fallback.Execute(ctx, targets,
		func(t fallback.Target) (providers.Caller, error) {
			return e.provider(cfg, t.ProviderID)
		},
		func(ctx context.Context, caller providers.Caller, t fallback.Target) (*types.ChatResponse, error) {
			return caller.ChatCompletion(ctx, providers.Options{
				Model:      t.Model,
				Messages:   messages,
				UserID:     req.UserID,
				Format:     format,
				SchemaName: schemaName,
				Schema:     schema,
				Params:     params.Map(t.ProviderType, sel.Variant.Parameters),
			})
		},
		func(t fallback.Target, perr *types.ProviderError) {
			if perr == nil {
				served = t
				return
			}
			failedAttempts++
			tb.AddFallbackAttempt(t.ProviderID, t.Model, perr.Reason)
			log.Warn("provider attempt failed",
				"provider", t.ProviderID, "model", t.Model,
				"reason", perr.Reason, "retryable", perr.Retryable)
		})
	tb.MarkProvider()
	if err != nil {
		return nil, wrapExecution(err)
	}

	tb.SetProvider(served.ProviderID, served.Model)
	tracing.Served(ctx, served.ProviderID, served.Model, failedAttempts > 0)
	tb.SetProviderRequestID(resp.ID)
	tb.SetTokenUsage(resp.Usage)
	return resp, nil
}

// buildTargets maps the primary variant plus its fallback chain to
// concrete provider types. The validator guarantees every provider
// reference resolves.
func buildTargets(cfg *config.Config, v config.Variant) []fallback.Target {
	targets := make([]fallback.Target, 0, 1+len(v.Fallback))
	targets = append(targets, fallback.Target{
		ProviderID:   v.Provider,
		ProviderType: string(cfg.Providers[v.Provider].Type),
		Model:        v.Model,
	})
	for _, fb := range v.Fallback {
		targets = append(targets, fallback.Target{
			ProviderID:   fb.Provider,
			ProviderType: string(cfg.Providers[fb.Provider].Type),
			Model:        fb.Model,
		})
	}
	return targets
}

// resolveSchema looks up the response schema referenced by the variant.
func resolveSchema(cfg *config.Config, v config.Variant) (format, name string, schema json.RawMessage, err error) {
	rf := v.ResponseFormat
	if rf == nil || rf.Type != config.FormatJSONSchema {
		return "", "", nil, nil
	}
	schema, ok := cfg.ResponseSchemas[rf.SchemaRef]
	if !ok {
		return "", "", nil, types.NewError(types.KindExecution, "unknown-schema",
			fmt.Sprintf("response schema %q is not defined", rf.SchemaRef)).
			WithDetail("schemaRef", rf.SchemaRef)
	}
	return providers.FormatJSONSchema, rf.SchemaRef, schema, nil
}

// wrapExecution surfaces a provider failure as an execution error while
// keeping the cause reachable through errors.As.
func wrapExecution(err error) error {
	if _, ok := err.(*types.Error); ok {
		return err
	}
	msg := "all provider attempts failed"
	if pe, ok := err.(*types.ProviderError); ok {
		msg = fmt.Sprintf("provider %s failed: %s", pe.Provider, pe.Message)
	}
	return types.NewError(types.KindExecution, "provider-attempts-exhausted", msg).WithCause(err)
}
