// Package dsl parses the compact operator-based query string syntax into an
// expression tree. Parsing never fails: input the grammar cannot interpret
// degrades to a literal text term, with a note recorded for debugging.
package dsl

import (
	"fmt"
	"strings"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

// Upstream text normalization can wrap queries in several layers of quotes.
// Stripping iterates until stable, bounded against pathological input.
const maxQuoteStrips = 10

// hierarchicalOps in longest-match-first priority order, so "=>" is never
// mis-split into "=" and ">".
var hierarchicalOps = []domain.HierarchicalOp{
	domain.OpDeepBidi,
	domain.OpDeepFlexChild,
	domain.OpDeepFlexParent,
	domain.OpBidirectional,
	domain.OpFlexChild,
	domain.OpFlexParent,
	domain.OpDescendants,
	domain.OpAncestors,
	domain.OpChild,
	domain.OpParent,
}

type prefixMatcher struct {
	prefix string
	build  func(rest string) domain.Term
}

// prefixMatchers is tried in order before generic term parsing. New prefixes
// are added to this table, not as branches in the parser.
var prefixMatchers = []prefixMatcher{
	{prefix: "ref:", build: func(rest string) domain.Term {
		return domain.Term{Text: strings.TrimSpace(rest), Kind: domain.TermPageRef}
	}},
	{prefix: "regex:", build: buildRegexTerm},
	{prefix: "text:", build: func(rest string) domain.Term {
		return domain.Term{Text: strings.TrimSpace(rest), Kind: domain.TermText}
	}},
}

// Parse turns a query string into an expression tree.
func Parse(input string) domain.Expression {
	expr, _ := ParseWithNotes(input)
	return expr
}

// ParseWithNotes additionally returns degradation notes: places where the
// input could not be interpreted as structured syntax and fell back to a
// literal term. Notes are for observability only and never block execution.
func ParseWithNotes(input string) (domain.Expression, []string) {
	p := &parser{}
	expr := p.parseExpr(input)
	return expr, p.notes
}

type parser struct {
	notes []string
}

func (p *parser) note(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *parser) parseExpr(input string) domain.Expression {
	s := stripWrappingQuotes(strings.TrimSpace(input))
	if s == "" {
		p.note("empty query, parsed as empty text term")
		return domain.Term{Kind: domain.TermText}
	}

	if op, idx, ok := findHierarchicalOp(s); ok {
		left := strings.TrimSpace(s[:idx])
		right := strings.TrimSpace(s[idx+len(op):])
		if left == "" || right == "" {
			p.note("hierarchical operator %q missing an operand, parsed as text", op)
			return domain.Term{Text: s, Kind: domain.TermText}
		}
		return domain.Hierarchical{
			Op:       op,
			Left:     p.parseCompound(left),
			Right:    p.parseCompound(right),
			MaxDepth: op.DefaultDepth(),
		}
	}

	return p.parseCompound(s)
}

// parseCompound splits on | before + at the current nesting level only.
// Parenthesized groups are recursed into first. OR is split first as a fixed
// design choice, not an assumption about operator precedence.
func (p *parser) parseCompound(input string) domain.Expression {
	s := stripWrappingQuotes(strings.TrimSpace(input))
	if s == "" {
		return domain.Term{Kind: domain.TermText}
	}

	if !balancedParens(s) {
		p.note("unbalanced parentheses in %q, parsed as text", s)
		return domain.Term{Text: s, Kind: domain.TermText}
	}

	if parts := splitTopLevel(s, '|'); len(parts) > 1 {
		operands := make([]domain.Expression, 0, len(parts))
		for _, part := range parts {
			operands = append(operands, p.parseAndChain(part))
		}
		return domain.Compound{Op: domain.CombineOR, Operands: operands}
	}

	return p.parseAndChain(s)
}

func (p *parser) parseAndChain(input string) domain.Expression {
	s := strings.TrimSpace(input)
	if parts := splitTopLevel(s, '+'); len(parts) > 1 {
		operands := make([]domain.Expression, 0, len(parts))
		for _, part := range parts {
			operands = append(operands, p.parseOperand(part))
		}
		return domain.Compound{Op: domain.CombineAND, Operands: operands}
	}
	return p.parseOperand(s)
}

func (p *parser) parseOperand(input string) domain.Expression {
	s := strings.TrimSpace(input)
	if inner, ok := unwrapParens(s); ok {
		// Full recursion: a parenthesized group may itself contain a
		// hierarchical relation.
		return p.parseExpr(inner)
	}
	return parseTerm(s)
}

func parseTerm(input string) domain.Term {
	s := stripWrappingQuotes(strings.TrimSpace(input))

	for _, m := range prefixMatchers {
		if strings.HasPrefix(s, m.prefix) {
			return m.build(s[len(m.prefix):])
		}
	}

	if inner, ok := unwrapDelimited(s, "[[", "]]"); ok {
		return domain.Term{Text: inner, Kind: domain.TermPageRef}
	}
	if inner, ok := unwrapDelimited(s, "((", "))"); ok {
		return domain.Term{Text: inner, Kind: domain.TermBlockRef}
	}

	return domain.Term{Text: s, Kind: domain.TermText}
}

// buildRegexTerm handles both regex:/pattern/flags and bare regex:pattern.
func buildRegexTerm(rest string) domain.Term {
	r := strings.TrimSpace(rest)
	if strings.HasPrefix(r, "/") {
		if end := strings.LastIndex(r[1:], "/"); end >= 0 {
			pattern := r[1 : end+1]
			flags := r[end+2:]
			if pattern != "" {
				return domain.Term{Text: pattern, Kind: domain.TermRegex, RegexFlags: flags}
			}
		}
	}
	return domain.Term{Text: r, Kind: domain.TermRegex}
}

// findHierarchicalOp scans for operators at nesting level zero, trying the
// priority list in order and taking the leftmost occurrence of the first
// operator that matches.
func findHierarchicalOp(s string) (domain.HierarchicalOp, int, bool) {
	for _, op := range hierarchicalOps {
		if idx := indexTopLevel(s, string(op)); idx >= 0 {
			return op, idx, true
		}
	}
	return "", -1, false
}

func indexTopLevel(s, sub string) int {
	depth := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

func balancedParens(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// unwrapParens strips one pair of parentheses only when it encloses the whole
// string: "(a|b)" unwraps, "(a)|(b)" does not.
func unwrapParens(s string) (string, bool) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return "", false
			}
		}
	}
	if depth != 0 {
		return "", false
	}
	return strings.TrimSpace(s[1 : len(s)-1]), true
}

func unwrapDelimited(s, open, close string) (string, bool) {
	if strings.HasPrefix(s, open) && strings.HasSuffix(s, close) && len(s) > len(open)+len(close) {
		inner := s[len(open) : len(s)-len(close)]
		if !strings.Contains(inner, open) && !strings.Contains(inner, close) {
			return inner, true
		}
	}
	return "", false
}

func stripWrappingQuotes(s string) string {
	for i := 0; i < maxQuoteStrips; i++ {
		if len(s) < 2 {
			return s
		}
		first, last := s[0], s[len(s)-1]
		if first != last || (first != '"' && first != '\'') {
			return s
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
