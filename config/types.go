// Package config defines the declarative configuration model for the
// prompt routing engine and its two-stage validator: a structural pass
// against an embedded JSON Schema followed by ordered semantic
// cross-reference checks. Every lookup performed by downstream code is
// guaranteed total once a Config has been produced here.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/promptroute/promptroute/types"
)

// ProviderType is a supported LLM vendor shape.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGoogle    ProviderType = "google"
)

// Config is the root configuration entity. It is immutable after loading.
type Config struct {
	Version         string                     `json:"version"`
	Providers       map[string]Provider        `json:"providers"`
	ResponseSchemas map[string]json.RawMessage `json:"responseSchemas,omitempty"`
	Prompts         map[string]Prompt          `json:"prompts"`
}

// Provider declares one provider alias. Extra vendor-specific properties
// are accepted and preserved.
type Provider struct {
	Type   ProviderType   `json:"type"`
	Extras map[string]any `json:"-"`
}

// UnmarshalJSON keeps unknown provider properties in Extras, since provider
// entries are the one place the schema admits free-form keys.
func (p *Provider) UnmarshalJSON(data []byte) error {
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	if t, ok := all["type"].(string); ok {
		p.Type = ProviderType(t)
	}
	delete(all, "type")
	if len(all) > 0 {
		p.Extras = all
	}
	return nil
}

// Prompt binds variants to routing policy.
type Prompt struct {
	Description string             `json:"description,omitempty"`
	Variants    map[string]Variant `json:"variants"`
	Routing     Routing            `json:"routing"`
	Chains      []ChainStep        `json:"chains,omitempty"`
}

// DefaultVariantID returns the id of the variant marked default. The
// validator guarantees exactly one exists.
func (p *Prompt) DefaultVariantID() string {
	for id, v := range p.Variants {
		if v.Default {
			return id
		}
	}
	return ""
}

// Variant is a concrete (provider, model, parameters, messages) binding.
type Variant struct {
	Provider       string           `json:"provider"`
	Model          string           `json:"model"`
	Default        bool             `json:"default,omitempty"`
	Parameters     map[string]any   `json:"parameters,omitempty"`
	Messages       []Message        `json:"messages"`
	ResponseFormat *ResponseFormat  `json:"responseFormat,omitempty"`
	Fallback       []FallbackTarget `json:"fallback,omitempty"`
}

// Message is a templated chat message.
type Message struct {
	Role    types.Role     `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent carries the message template source.
type MessageContent struct {
	Template string `json:"template"`
}

// ResponseFormat selects raw text or schema-constrained JSON output.
type ResponseFormat struct {
	Type      string `json:"type"` // raw_text | json_schema
	SchemaRef string `json:"schemaRef,omitempty"`
}

const (
	FormatRawText    = "raw_text"
	FormatJSONSchema = "json_schema"
)

// FallbackTarget is one (provider, model) pair in a fallback chain.
type FallbackTarget struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ChainStep references another prompt. Chains are validated for reference
// integrity only; the engine never executes them.
type ChainStep struct {
	Prompt      string `json:"prompt"`
	MapOutputTo string `json:"mapOutputTo,omitempty"`
}

// Routing holds the ordered rule list and optional phased rollouts.
type Routing struct {
	Rules  []Rule       `json:"rules"`
	Phased []PhasedRule `json:"phased,omitempty"`
}

// Rule routes to a target variant, optionally gated on tags. A nil weight
// means the default of 100.
type Rule struct {
	Target string   `json:"target"`
	Weight *float64 `json:"weight,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// EffectiveWeight returns the rule weight, defaulting to 100.
func (r Rule) EffectiveWeight() float64 {
	if r.Weight == nil {
		return 100
	}
	return *r.Weight
}

// PhasedRule is a time-bounded weighted distribution. A nil End means the
// window never closes.
type PhasedRule struct {
	Start   int64     `json:"start"`
	End     *int64    `json:"end,omitempty"`
	Weights WeightMap `json:"weights"`
}

// Active reports whether now (epoch seconds) falls inside the window.
func (p PhasedRule) Active(now int64) bool {
	if now < p.Start {
		return false
	}
	return p.End == nil || now <= *p.End
}

// WeightMap is a variant-id → weight mapping that preserves the JSON
// declaration order of its keys, so that weighted selection iterates
// entries deterministically.
type WeightMap struct {
	keys    []string
	weights map[string]float64
}

// NewWeightMap builds a WeightMap from ordered (key, weight) pairs.
// Primarily for tests.
func NewWeightMap(keys []string, weights map[string]float64) WeightMap {
	return WeightMap{keys: keys, weights: weights}
}

// Keys returns variant ids in declaration order.
func (w WeightMap) Keys() []string { return w.keys }

// Get returns the weight for a key (0 when absent).
func (w WeightMap) Get(key string) float64 { return w.weights[key] }

// Len returns the number of entries.
func (w WeightMap) Len() int { return len(w.keys) }

// UnmarshalJSON decodes the object while recording key order, which
// encoding/json's map decoding would discard.
func (w *WeightMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("weights: expected object, got %v", tok)
	}

	w.weights = make(map[string]float64)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var num json.Number
		if err := dec.Decode(&num); err != nil {
			return fmt.Errorf("weights[%s]: %w", key, err)
		}
		f, err := num.Float64()
		if err != nil {
			return fmt.Errorf("weights[%s]: %w", key, err)
		}
		w.keys = append(w.keys, key)
		w.weights[key] = f
	}
	_, err = dec.Token() // closing brace
	return err
}

// MarshalJSON emits entries in declaration order.
func (w WeightMap) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range w.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')
		vb, _ := json.Marshal(w.weights[k])
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
