// Package template implements the Liquid-subset used by prompt messages:
// dotted variable access, if/else, for loops, and a fixed filter set.
// Variables are non-strict (missing resolves to empty), filters are strict
// at parse time when requested and lenient at render time.
package template

import (
	"fmt"
	"strings"
	"sync"
)

// Error is a template parse or render failure. It carries the offending
// source and a suggestion hint keyed on common mistakes.
type Error struct {
	Template   string
	Message    string
	Suggestion string
}

func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("template error: %s (%s)", e.Message, e.Suggestion)
	}
	return fmt.Sprintf("template error: %s", e.Message)
}

func newError(src, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Template: src, Message: msg, Suggestion: suggestionFor(msg)}
}

// suggestionFor maps common error substrings to actionable hints.
func suggestionFor(msg string) string {
	switch {
	case strings.Contains(msg, "Unknown filter"):
		return "supported filters: join, numbered, default, capitalize, upcase, downcase, size"
	case strings.Contains(msg, "unexpected token"):
		return "check tag syntax: {{ variable }}, {% if cond %}, {% for item in list %}"
	case strings.Contains(msg, "unexpected EOF"):
		return "an {% if %} or {% for %} tag may be missing its {% endif %} / {% endfor %}"
	default:
		return ""
	}
}

// Engine parses and renders templates. Parsed forms are memoized by source
// string for the lifetime of the engine; entries are set once and never
// evicted, so a racing duplicate parse is harmless.
type Engine struct {
	cache sync.Map // source -> *tmpl
}

// New returns an empty template engine.
func New() *Engine { return &Engine{} }

// Parse checks the template under strict-filter rules: syntax errors and
// unknown filters are both rejected. Used by config validation.
func (e *Engine) Parse(src string) error {
	t, err := e.parsed(src)
	if err != nil {
		return err
	}
	for _, name := range t.filters {
		if _, ok := builtinFilters[name]; !ok {
			return newError(src, "Unknown filter %q", name)
		}
	}
	return nil
}

// Render executes the template against vars. Missing variables resolve to
// empty strings and unknown filters pass values through unchanged.
func (e *Engine) Render(src string, vars map[string]any) (string, error) {
	t, err := e.parsed(src)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := execNodes(&b, t.nodes, newScope(vars)); err != nil {
		return "", newError(src, "%s", err.Error())
	}
	return b.String(), nil
}

func (e *Engine) parsed(src string) (*tmpl, error) {
	if v, ok := e.cache.Load(src); ok {
		return v.(*tmpl), nil
	}
	t, err := parse(src)
	if err != nil {
		return nil, err
	}
	actual, _ := e.cache.LoadOrStore(src, t)
	return actual.(*tmpl), nil
}
