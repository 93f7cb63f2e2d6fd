package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/promptroute/promptroute/internal/template"
	"github.com/promptroute/promptroute/types"
)

//go:embed schema.json
var structuralSchema []byte

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// supportedMajor is the only configuration major version this engine reads.
const supportedMajor = "1"

// requiredParameters lists canonical parameters a provider type cannot run
// without. Providers absent from the table have no required parameters.
var requiredParameters = map[ProviderType][]string{
	ProviderAnthropic: {"max_tokens"},
}

// ValidationError aggregates every error found in the first failing
// semantic class (or the structural pass).
type ValidationError struct {
	Errors []*types.Error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Message
	}
	return fmt.Sprintf("configuration invalid: %s", strings.Join(msgs, "; "))
}

// Unwrap exposes the first underlying error for errors.As inspection.
func (e *ValidationError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ValidationError{Errors: []*types.Error{
			types.NewError(types.KindConfiguration, "config-read-failed",
				fmt.Sprintf("cannot read config file: %v", err)).
				WithDetail("path", path).WithCause(err),
		}}
	}
	return Validate(raw)
}

// Validate runs the structural pass followed by the semantic passes in
// their fixed order, failing on the first class with at least one error.
func Validate(raw []byte) (*Config, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, singleError("invalid-json", fmt.Sprintf("config is not valid JSON: %v", err))
	}

	if err := validateStructure(instance); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, singleError("invalid-config-structure", fmt.Sprintf("config decode failed: %v", err))
	}

	passes := []func(*Config) []*types.Error{
		checkVersion,
		checkDefaultVariants,
		checkResponseSchemas,
		checkRouting,
		checkFallbacks,
		checkRequiredParameters,
		checkTemplates,
	}
	for _, pass := range passes {
		if errs := pass(&cfg); len(errs) > 0 {
			return nil, &ValidationError{Errors: errs}
		}
	}
	return &cfg, nil
}

func singleError(code, msg string) *ValidationError {
	return &ValidationError{Errors: []*types.Error{
		types.NewError(types.KindConfiguration, code, msg),
	}}
}

// validateStructure checks the raw document against the embedded JSON
// Schema: field presence, types, enumerations, identifier patterns, and
// rejection of unknown properties.
func validateStructure(instance any) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(structuralSchema))
	if err != nil {
		return singleError("internal", fmt.Sprintf("embedded schema unreadable: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", schemaDoc); err != nil {
		return singleError("internal", fmt.Sprintf("embedded schema rejected: %v", err))
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return singleError("internal", fmt.Sprintf("embedded schema compile failed: %v", err))
	}

	if err := schema.Validate(instance); err != nil {
		verr := types.NewError(types.KindConfiguration, "invalid-config-structure",
			fmt.Sprintf("config does not match the expected structure: %v", err))
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			verr.WithDetail("path", "/"+strings.Join(instanceLocation(ve), "/"))
		}
		return &ValidationError{Errors: []*types.Error{verr.WithCause(err)}}
	}
	return nil
}

// instanceLocation walks to the deepest single cause for a usable path.
func instanceLocation(ve *jsonschema.ValidationError) []string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve.InstanceLocation
}

// Pass 1: version format and supported major.
func checkVersion(cfg *Config) []*types.Error {
	if !versionPattern.MatchString(cfg.Version) {
		return []*types.Error{
			types.NewError(types.KindConfiguration, "invalid-version",
				fmt.Sprintf("version %q is not a semantic version", cfg.Version)).
				WithDetail("path", "/version").WithDetail("version", cfg.Version),
		}
	}
	major, _, _ := strings.Cut(cfg.Version, ".")
	if major != supportedMajor {
		return []*types.Error{
			types.NewError(types.KindConfiguration, "unsupported-version",
				fmt.Sprintf("config version %s has unsupported major version (supported: %s)", cfg.Version, supportedMajor)).
				WithDetail("path", "/version").WithDetail("version", cfg.Version),
		}
	}
	return nil
}

// Pass 2: exactly one default variant per prompt.
func checkDefaultVariants(cfg *Config) []*types.Error {
	var errs []*types.Error
	for _, promptID := range sortedKeys(cfg.Prompts) {
		prompt := cfg.Prompts[promptID]
		var defaults []string
		for _, variantID := range sortedKeys(prompt.Variants) {
			if prompt.Variants[variantID].Default {
				defaults = append(defaults, variantID)
			}
		}
		if len(defaults) != 1 {
			errs = append(errs, types.NewError(types.KindConfiguration, "default-variant",
				fmt.Sprintf("prompt %q must have exactly one default variant, found %d", promptID, len(defaults))).
				WithDetail("path", "/prompts/"+promptID+"/variants").
				WithDetail("prompt", promptID).
				WithDetail("defaults", defaults))
		}
	}
	return errs
}

// Pass 3: schemaRef resolution and response-schema fragment validity.
func checkResponseSchemas(cfg *Config) []*types.Error {
	var errs []*types.Error

	for _, schemaID := range sortedKeys(cfg.ResponseSchemas) {
		fragment := cfg.ResponseSchemas[schemaID]
		if err := compileFragment(schemaID, fragment); err != nil {
			errs = append(errs, types.NewError(types.KindConfiguration, "invalid-response-schema",
				fmt.Sprintf("response schema %q is not a valid JSON Schema: %v", schemaID, err)).
				WithDetail("path", "/responseSchemas/"+schemaID).
				WithDetail("schema", schemaID).WithCause(err))
		}
	}

	forEachVariant(cfg, func(promptID, variantID string, v Variant) {
		rf := v.ResponseFormat
		if rf == nil || rf.Type != FormatJSONSchema {
			return
		}
		path := fmt.Sprintf("/prompts/%s/variants/%s/responseFormat", promptID, variantID)
		if rf.SchemaRef == "" {
			errs = append(errs, types.NewError(types.KindConfiguration, "schema-ref",
				fmt.Sprintf("variant %q of prompt %q uses json_schema output but declares no schemaRef", variantID, promptID)).
				WithDetail("path", path).WithDetail("prompt", promptID).WithDetail("variant", variantID))
			return
		}
		if _, ok := cfg.ResponseSchemas[rf.SchemaRef]; !ok {
			errs = append(errs, types.NewError(types.KindConfiguration, "schema-ref",
				fmt.Sprintf("variant %q of prompt %q references unknown response schema %q", variantID, promptID, rf.SchemaRef)).
				WithDetail("path", path+"/schemaRef").
				WithDetail("prompt", promptID).WithDetail("variant", variantID).
				WithDetail("schemaRef", rf.SchemaRef))
		}
	})
	return errs
}

// compileFragment checks that a responseSchemas entry is itself a valid
// JSON Schema by compiling it.
func compileFragment(id string, fragment json.RawMessage) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(fragment))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	url := "fragment://" + id + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return err
	}
	_, err = compiler.Compile(url)
	return err
}

// Pass 4: routing references and non-degeneracy.
func checkRouting(cfg *Config) []*types.Error {
	var errs []*types.Error
	for _, promptID := range sortedKeys(cfg.Prompts) {
		prompt := cfg.Prompts[promptID]
		base := "/prompts/" + promptID + "/routing"

		anyPositive := false
		for i, rule := range prompt.Routing.Rules {
			if _, ok := prompt.Variants[rule.Target]; !ok {
				errs = append(errs, types.NewError(types.KindConfiguration, "routing-reference",
					fmt.Sprintf("routing rule %d of prompt %q targets unknown variant %q", i, promptID, rule.Target)).
					WithDetail("path", fmt.Sprintf("%s/rules/%d/target", base, i)).
					WithDetail("prompt", promptID).WithDetail("target", rule.Target))
			}
			if rule.EffectiveWeight() > 0 {
				anyPositive = true
			}
		}
		if !anyPositive {
			errs = append(errs, types.NewError(types.KindConfiguration, "degenerate-weights",
				fmt.Sprintf("prompt %q has no routing rule with weight > 0", promptID)).
				WithDetail("path", base+"/rules").WithDetail("prompt", promptID))
		}

		for i, phased := range prompt.Routing.Phased {
			phasedPositive := false
			for _, variantID := range phased.Weights.Keys() {
				if _, ok := prompt.Variants[variantID]; !ok {
					errs = append(errs, types.NewError(types.KindConfiguration, "routing-reference",
						fmt.Sprintf("phased rule %d of prompt %q weights unknown variant %q", i, promptID, variantID)).
						WithDetail("path", fmt.Sprintf("%s/phased/%d/weights/%s", base, i, variantID)).
						WithDetail("prompt", promptID).WithDetail("target", variantID))
				}
				if phased.Weights.Get(variantID) > 0 {
					phasedPositive = true
				}
			}
			if !phasedPositive {
				errs = append(errs, types.NewError(types.KindConfiguration, "degenerate-weights",
					fmt.Sprintf("phased rule %d of prompt %q has no weight > 0", i, promptID)).
					WithDetail("path", fmt.Sprintf("%s/phased/%d/weights", base, i)).
					WithDetail("prompt", promptID))
			}
		}

		// Chain steps share the reference-integrity pass.
		for i, step := range prompt.Chains {
			if _, ok := cfg.Prompts[step.Prompt]; !ok {
				errs = append(errs, types.NewError(types.KindConfiguration, "routing-reference",
					fmt.Sprintf("chain step %d of prompt %q references unknown prompt %q", i, promptID, step.Prompt)).
					WithDetail("path", fmt.Sprintf("/prompts/%s/chains/%d/prompt", promptID, i)).
					WithDetail("prompt", promptID).WithDetail("target", step.Prompt))
			}
		}
	}
	return errs
}

// Pass 5: fallback provider references.
func checkFallbacks(cfg *Config) []*types.Error {
	var errs []*types.Error
	forEachVariant(cfg, func(promptID, variantID string, v Variant) {
		if _, ok := cfg.Providers[v.Provider]; !ok {
			errs = append(errs, types.NewError(types.KindConfiguration, "fallback-reference",
				fmt.Sprintf("variant %q of prompt %q uses unknown provider %q", variantID, promptID, v.Provider)).
				WithDetail("path", fmt.Sprintf("/prompts/%s/variants/%s/provider", promptID, variantID)).
				WithDetail("prompt", promptID).WithDetail("variant", variantID).
				WithDetail("provider", v.Provider))
		}
		for i, fb := range v.Fallback {
			if _, ok := cfg.Providers[fb.Provider]; !ok {
				errs = append(errs, types.NewError(types.KindConfiguration, "fallback-reference",
					fmt.Sprintf("fallback %d of variant %q (prompt %q) references unknown provider %q", i, variantID, promptID, fb.Provider)).
					WithDetail("path", fmt.Sprintf("/prompts/%s/variants/%s/fallback/%d/provider", promptID, variantID, i)).
					WithDetail("prompt", promptID).WithDetail("variant", variantID).
					WithDetail("provider", fb.Provider))
			}
		}
	})
	return errs
}

// Pass 6: required provider parameters.
func checkRequiredParameters(cfg *Config) []*types.Error {
	var errs []*types.Error
	forEachVariant(cfg, func(promptID, variantID string, v Variant) {
		provider, ok := cfg.Providers[v.Provider]
		if !ok {
			return // already reported by the fallback-reference pass
		}
		for _, param := range requiredParameters[provider.Type] {
			if _, ok := v.Parameters[param]; !ok {
				errs = append(errs, types.NewError(types.KindConfiguration, "missing-required-parameter",
					fmt.Sprintf("variant %q of prompt %q targets %s and must declare %q", variantID, promptID, provider.Type, param)).
					WithDetail("path", fmt.Sprintf("/prompts/%s/variants/%s/parameters", promptID, variantID)).
					WithDetail("prompt", promptID).WithDetail("variant", variantID).
					WithDetail("parameter", param))
			}
		}
	})
	return errs
}

// Pass 7: template syntax under strict filters.
func checkTemplates(cfg *Config) []*types.Error {
	var errs []*types.Error
	engine := template.New()
	forEachVariant(cfg, func(promptID, variantID string, v Variant) {
		for i, msg := range v.Messages {
			if err := engine.Parse(msg.Content.Template); err == nil {
				continue
			} else {
				verr := types.NewError(types.KindTemplate, "template-syntax",
					fmt.Sprintf("message %d of variant %q (prompt %q) has an invalid template: %v", i, variantID, promptID, err)).
					WithDetail("path", fmt.Sprintf("/prompts/%s/variants/%s/messages/%d/content/template", promptID, variantID, i)).
					WithDetail("prompt", promptID).WithDetail("variant", variantID).
					WithDetail("template", msg.Content.Template).
					WithCause(err)
				if terr, ok := err.(*template.Error); ok && terr.Suggestion != "" {
					verr.WithDetail("suggestion", terr.Suggestion)
				}
				errs = append(errs, verr)
			}
		}
	})
	return errs
}

func forEachVariant(cfg *Config, fn func(promptID, variantID string, v Variant)) {
	for _, promptID := range sortedKeys(cfg.Prompts) {
		prompt := cfg.Prompts[promptID]
		for _, variantID := range sortedKeys(prompt.Variants) {
			fn(promptID, variantID, prompt.Variants[variantID])
		}
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
