package template

import (
	"strconv"
	"strings"
	"unicode"
)

// tmpl is a parsed template: the node tree plus every filter name seen,
// recorded so strict-mode validation can reject unknown filters without
// re-walking the tree.
type tmpl struct {
	nodes   []node
	filters []string
}

type node interface{}

// textNode is literal output.
type textNode struct {
	text string
}

// outputNode is {{ expr | filter: args }}.
type outputNode struct {
	expr expression
}

// ifNode is {% if cond %} ... {% else %} ... {% endif %}.
type ifNode struct {
	cond condition
	then []node
	els  []node
}

// forNode is {% for var in seq %} ... {% endfor %}.
type forNode struct {
	varName string
	seq     expression
	body    []node
}

// expression is a primary value passed through zero or more filters.
type expression struct {
	base    primary
	filters []filterCall
}

type filterCall struct {
	name string
	args []primary
}

// primary is a literal or a dotted variable path.
type primary struct {
	literal any      // when isLit
	isLit   bool
	path    []string // when !isLit
}

type condition struct {
	left  expression
	op    string // "", "==", "!="
	right expression
}

type parser struct {
	src     string
	pos     int
	lastTag string // terminator tag that closed the most recent parseNodes
}

func parse(src string) (*tmpl, error) {
	p := &parser{src: src}
	nodes, filters, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	return &tmpl{nodes: nodes, filters: filters}, nil
}

// parseNodes parses until one of the terminator tags (e.g. "endif") or end
// of input. It returns the consumed terminator via p state; callers that
// pass terminators treat EOF as an error.
func (p *parser) parseNodes(terminators []string) ([]node, []string, error) {
	var nodes []node
	var filters []string

	for p.pos < len(p.src) {
		openOut := strings.Index(p.src[p.pos:], "{{")
		openTag := strings.Index(p.src[p.pos:], "{%")

		// Nearest opener, or the rest is text.
		open := -1
		isTag := false
		switch {
		case openOut >= 0 && (openTag < 0 || openOut < openTag):
			open = openOut
		case openTag >= 0:
			open = openTag
			isTag = true
		}
		if open < 0 {
			nodes = append(nodes, textNode{text: p.src[p.pos:]})
			p.pos = len(p.src)
			break
		}
		if open > 0 {
			nodes = append(nodes, textNode{text: p.src[p.pos : p.pos+open]})
		}
		p.pos += open + 2

		if !isTag {
			expr, err := p.parseExpression("}}")
			if err != nil {
				return nil, nil, err
			}
			for _, f := range expr.filters {
				filters = append(filters, f.name)
			}
			nodes = append(nodes, outputNode{expr: expr})
			continue
		}

		name, rest, err := p.readTag()
		if err != nil {
			return nil, nil, err
		}
		switch name {
		case "if":
			n, fs, err := p.parseIf(rest)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
			filters = append(filters, fs...)
		case "for":
			n, fs, err := p.parseFor(rest)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
			filters = append(filters, fs...)
		default:
			for _, t := range terminators {
				if name == t {
					// Hand the terminator back through lastTag.
					p.lastTag = name
					return nodes, filters, nil
				}
			}
			return nil, nil, newError(p.src, "unexpected token %q", "{% "+name+" %}")
		}
	}

	if len(terminators) > 0 {
		return nil, nil, newError(p.src, "unexpected EOF: missing {%% %s %%}", terminators[len(terminators)-1])
	}
	p.lastTag = ""
	return nodes, filters, nil
}

func (p *parser) parseIf(cond string) (node, []string, error) {
	c, err := parseCondition(p.src, cond)
	if err != nil {
		return nil, nil, err
	}
	then, filters, err := p.parseNodes([]string{"else", "endif"})
	if err != nil {
		return nil, nil, err
	}
	var els []node
	if p.lastTag == "else" {
		var fs []string
		els, fs, err = p.parseNodes([]string{"endif"})
		if err != nil {
			return nil, nil, err
		}
		filters = append(filters, fs...)
	}
	return ifNode{cond: c, then: then, els: els}, filters, nil
}

func (p *parser) parseFor(header string) (node, []string, error) {
	fields := strings.Fields(header)
	if len(fields) != 3 || fields[1] != "in" || !isIdent(fields[0]) {
		return nil, nil, newError(p.src, "unexpected token in for tag: %q", header)
	}
	seq, err := parsePrimaryExpr(p.src, fields[2])
	if err != nil {
		return nil, nil, err
	}
	body, filters, err := p.parseNodes([]string{"endfor"})
	if err != nil {
		return nil, nil, err
	}
	return forNode{varName: fields[0], seq: seq, body: body}, filters, nil
}

// readTag consumes a {% ... %} body (the opener is already consumed) and
// returns the tag name and the remainder of the tag body.
func (p *parser) readTag() (name, rest string, err error) {
	end := strings.Index(p.src[p.pos:], "%}")
	if end < 0 {
		return "", "", newError(p.src, "unexpected EOF: unterminated tag")
	}
	body := strings.TrimSpace(p.src[p.pos : p.pos+end])
	p.pos += end + 2
	name, rest, _ = strings.Cut(body, " ")
	return name, strings.TrimSpace(rest), nil
}

// parseExpression consumes an output expression up to the closing delimiter.
func (p *parser) parseExpression(closer string) (expression, error) {
	end := strings.Index(p.src[p.pos:], closer)
	if end < 0 {
		return expression{}, newError(p.src, "unexpected EOF: unterminated output")
	}
	body := p.src[p.pos : p.pos+end]
	p.pos += end + len(closer)
	return parseExprString(p.src, body)
}

// parseExprString parses "primary | filter: arg, arg | filter" syntax.
func parseExprString(src, body string) (expression, error) {
	parts := splitOutsideQuotes(body, '|')
	base, err := parsePrimaryExpr(src, strings.TrimSpace(parts[0]))
	if err != nil {
		return expression{}, err
	}
	expr := expression{base: base.base}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		name, argStr, _ := cutOutsideQuotes(part, ':')
		name = strings.TrimSpace(name)
		if !isIdent(name) {
			return expression{}, newError(src, "unexpected token %q in filter", part)
		}
		call := filterCall{name: name}
		if argStr != "" {
			for _, a := range splitOutsideQuotes(argStr, ',') {
				prim, err := parsePrimary(src, strings.TrimSpace(a))
				if err != nil {
					return expression{}, err
				}
				call.args = append(call.args, prim)
			}
		}
		expr.filters = append(expr.filters, call)
	}
	return expr, nil
}

// parsePrimaryExpr wraps a bare primary into an expression.
func parsePrimaryExpr(src, s string) (expression, error) {
	prim, err := parsePrimary(src, s)
	if err != nil {
		return expression{}, err
	}
	return expression{base: prim}, nil
}

func parsePrimary(src, s string) (primary, error) {
	if s == "" {
		return primary{}, newError(src, "unexpected token: empty expression")
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return primary{isLit: true, literal: s[1 : len(s)-1]}, nil
	}
	switch s {
	case "true":
		return primary{isLit: true, literal: true}, nil
	case "false":
		return primary{isLit: true, literal: false}, nil
	case "nil", "null":
		return primary{isLit: true, literal: nil}, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return primary{isLit: true, literal: f}, nil
	}
	parts := strings.Split(s, ".")
	for _, part := range parts {
		if !isIdent(part) {
			return primary{}, newError(src, "unexpected token %q", s)
		}
	}
	return primary{path: parts}, nil
}

func parseCondition(src, s string) (condition, error) {
	for _, op := range []string{"==", "!="} {
		if l, r, ok := cutOutsideQuotesStr(s, op); ok {
			left, err := parseExprString(src, strings.TrimSpace(l))
			if err != nil {
				return condition{}, err
			}
			right, err := parseExprString(src, strings.TrimSpace(r))
			if err != nil {
				return condition{}, err
			}
			return condition{left: left, op: op, right: right}, nil
		}
	}
	left, err := parseExprString(src, strings.TrimSpace(s))
	if err != nil {
		return condition{}, err
	}
	return condition{left: left}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}

// splitOutsideQuotes splits on sep, ignoring separators inside quotes.
func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func cutOutsideQuotes(s string, sep byte) (before, after string, found bool) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == sep:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func cutOutsideQuotesStr(s, sep string) (before, after string, found bool) {
	var quote byte
	for i := 0; i+len(sep) <= len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case s[i:i+len(sep)] == sep:
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}
