// Package params converts canonical model parameters into provider-native
// option bags using a static capability table.
package params

// rule describes how one provider accepts one canonical parameter.
type rule struct {
	name     string // provider-native parameter name
	scale    float64
	min, max *float64
	clamp    bool
}

func bounded(name string, scale, min, max float64) rule {
	return rule{name: name, scale: scale, min: &min, max: &max, clamp: true}
}

func renamed(name string) rule { return rule{name: name, scale: 1} }

// capability maps canonical parameter name -> provider type -> rule.
// A missing provider entry means the parameter is dropped for that provider.
var capability = map[string]map[string]rule{
	"temperature": {
		"openai":    bounded("temperature", 2, 0, 2),
		"anthropic": bounded("temperature", 1, 0, 1),
		"google":    bounded("temperature", 2, 0, 2),
	},
	"max_tokens": {
		"openai":    renamed("max_completion_tokens"),
		"anthropic": renamed("max_tokens"),
		"google":    renamed("maxOutputTokens"),
	},
	"top_p": {
		"openai":    renamed("top_p"),
		"anthropic": renamed("top_p"),
		"google":    renamed("topP"),
	},
	"frequency_penalty": {
		"openai": bounded("frequency_penalty", 1, -2, 2),
		"google": bounded("frequencyPenalty", 1, -2, 2),
	},
	"presence_penalty": {
		"openai": bounded("presence_penalty", 1, -2, 2),
		"google": bounded("presencePenalty", 1, -2, 2),
	},
	"stop": {
		"openai":    renamed("stop"),
		"anthropic": renamed("stop_sequences"),
		"google":    renamed("stopSequences"),
	},
	"logit_bias": {
		"openai": renamed("logit_bias"),
	},
}

// Map converts canonical parameters into the provider-native bag for the
// given provider type. Unknown canonical keys are dropped silently. For
// each accepted key the scale is applied first, then the clamp, then the
// value is written under the mapped name. Scaling and clamping apply only
// to numeric values.
func Map(providerType string, canonical map[string]any) map[string]any {
	out := make(map[string]any, len(canonical))
	for key, value := range canonical {
		providerRules, ok := capability[key]
		if !ok {
			continue
		}
		r, ok := providerRules[providerType]
		if !ok {
			continue
		}
		if f, numeric := toFloat(value); numeric {
			f *= r.scale
			if r.clamp {
				if f < *r.min {
					f = *r.min
				}
				if f > *r.max {
					f = *r.max
				}
			}
			out[r.name] = f
		} else {
			out[r.name] = value
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
