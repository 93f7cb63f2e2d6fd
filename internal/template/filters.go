package template

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// filterFunc transforms a value; args are the evaluated filter arguments.
type filterFunc func(v any, args []any) any

var builtinFilters = map[string]filterFunc{
	"join":       filterJoin,
	"numbered":   filterNumbered,
	"default":    filterDefault,
	"capitalize": filterCapitalize,
	"upcase":     filterUpcase,
	"downcase":   filterDowncase,
	"size":       filterSize,
}

// join concatenates a sequence with a separator (default ", ").
// Non-sequences pass through.
func filterJoin(v any, args []any) any {
	seq := asSlice(v)
	if seq == nil {
		return v
	}
	sep := ", "
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			sep = s
		}
	}
	parts := make([]string, len(seq))
	for i, e := range seq {
		parts[i] = stringify(e)
	}
	return strings.Join(parts, sep)
}

// numbered turns element i (1-indexed) into "{prefix}{i}. {element}".
// The default prefix is two spaces. Non-sequences pass through.
func filterNumbered(v any, args []any) any {
	seq := asSlice(v)
	if seq == nil {
		return v
	}
	prefix := "  "
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			prefix = s
		}
	}
	out := make([]any, len(seq))
	for i, e := range seq {
		out[i] = fmt.Sprintf("%s%d. %s", prefix, i+1, stringify(e))
	}
	return out
}

// default substitutes the fallback for nil, missing, or empty-string
// values. Zero and false are preserved.
func filterDefault(v any, args []any) any {
	var fallback any
	if len(args) > 0 {
		fallback = args[0]
	}
	if v == nil {
		return fallback
	}
	if s, ok := v.(string); ok && s == "" {
		return fallback
	}
	return v
}

func filterCapitalize(v any, _ []any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func filterUpcase(v any, _ []any) any {
	if s, ok := v.(string); ok {
		return strings.ToUpper(s)
	}
	return v
}

func filterDowncase(v any, _ []any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

// size returns the length of a string or sequence, the key count of a
// mapping, and 0 for anything else.
func filterSize(v any, _ []any) any {
	switch v := v.(type) {
	case string:
		return float64(utf8.RuneCountInString(v))
	case map[string]any:
		return float64(len(v))
	}
	if seq := asSlice(v); seq != nil {
		return float64(len(seq))
	}
	return float64(0)
}
