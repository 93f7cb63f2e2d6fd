package promptroute

import (
	"errors"
	"fmt"

	"github.com/promptroute/promptroute/config"
	"github.com/promptroute/promptroute/internal/template"
	"github.com/promptroute/promptroute/types"
)

// TemplateRequest renders one variant's messages without routing,
// providers, or telemetry.
type TemplateRequest struct {
	PromptID string `json:"promptId"`
	// VariantID selects a specific variant; empty means the default.
	VariantID string         `json:"variantId,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GetTemplate resolves the prompt and variant and returns the rendered
// message list.
func (e *Engine) GetTemplate(req TemplateRequest) ([]types.Message, error) {
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

	variantID := req.VariantID
	if variantID == "" {
		variantID = prompt.DefaultVariantID()
	}
	variant, ok := prompt.Variants[variantID]
	if !ok {
		return nil, types.NewError(types.KindExecution, "unknown-variant",
			fmt.Sprintf("variant %q is not defined for prompt %q", variantID, req.PromptID)).
			WithDetail("prompt", req.PromptID).
			WithDetail("variant", variantID)
	}

	return e.renderMessages(variant.Messages, req.Variables)
}

// renderMessages renders every message template against the variables.
func (e *Engine) renderMessages(msgs []config.Message, vars map[string]any) ([]types.Message, error) {
	out := make([]types.Message, len(msgs))
	for i, msg := range msgs {
		content, err := e.templates.Render(msg.Content.Template, vars)
		if err != nil {
			terr := types.NewError(types.KindTemplate, "template-render",
				fmt.Sprintf("message %d failed to render: %v", i, err)).
				WithDetail("message", i).WithCause(err)
			var te *template.Error
			if errors.As(err, &te) && te.Suggestion != "" {
				terr.WithDetail("suggestion", te.Suggestion)
			}
			return nil, terr
		}
		out[i] = types.Message{Role: msg.Role, Content: content}
	}
	return out, nil
}
