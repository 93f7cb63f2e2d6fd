package template

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// scope layers loop variables over the caller's variable map.
type scope struct {
	vars  map[string]any
	local map[string]any
}

func newScope(vars map[string]any) *scope {
	return &scope{vars: vars}
}

func (s *scope) lookup(path []string) any {
	var cur any
	name := path[0]
	if v, ok := s.local[name]; ok {
		cur = v
	} else if s.vars != nil {
		cur = s.vars[name]
	}
	for _, key := range path[1:] {
		m, ok := asMap(cur)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func (s *scope) withLocal(name string, v any) *scope {
	local := make(map[string]any, len(s.local)+1)
	for k, lv := range s.local {
		local[k] = lv
	}
	local[name] = v
	return &scope{vars: s.vars, local: local}
}

func execNodes(b *strings.Builder, nodes []node, sc *scope) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			b.WriteString(n.text)
		case outputNode:
			b.WriteString(stringify(evalExpr(n.expr, sc)))
		case ifNode:
			branch := n.els
			if evalCondition(n.cond, sc) {
				branch = n.then
			}
			if err := execNodes(b, branch, sc); err != nil {
				return err
			}
		case forNode:
			seq := asSlice(evalExpr(n.seq, sc))
			for _, item := range seq {
				if err := execNodes(b, n.body, sc.withLocal(n.varName, item)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func evalExpr(e expression, sc *scope) any {
	v := evalPrimary(e.base, sc)
	for _, call := range e.filters {
		fn, ok := builtinFilters[call.name]
		if !ok {
			continue // lenient at render time
		}
		args := make([]any, len(call.args))
		for i, a := range call.args {
			args[i] = evalPrimary(a, sc)
		}
		v = fn(v, args)
	}
	return v
}

func evalPrimary(p primary, sc *scope) any {
	if p.isLit {
		return p.literal
	}
	return sc.lookup(p.path)
}

func evalCondition(c condition, sc *scope) bool {
	left := evalExpr(c.left, sc)
	switch c.op {
	case "==":
		return looseEqual(left, evalExpr(c.right, sc))
	case "!=":
		return !looseEqual(left, evalExpr(c.right, sc))
	default:
		return truthy(left)
	}
}

// truthy follows the engine's conditional semantics: nil, false, and the
// empty string are false (missing variables resolve to nil).
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	default:
		return true
	}
}

// looseEqual compares scalars after normalizing numeric types.
func looseEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
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

// stringify renders a value for output. Sequences concatenate their
// elements, matching Liquid's bare-sequence rendering.
func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		if seq := asSlice(v); seq != nil {
			var b strings.Builder
			for _, e := range seq {
				b.WriteString(stringify(e))
			}
			return b.String()
		}
		return fmt.Sprint(v)
	}
}

// asSlice normalizes the sequence shapes that reach the renderer from
// decoded JSON or caller-built maps. Returns nil for non-sequences.
func asSlice(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case nil:
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return nil
}

func asMap(v any) (map[string]any, bool) {
	switch v := v.(type) {
	case map[string]any:
		return v, true
	}
	return nil, false
}
