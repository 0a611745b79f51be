package dsl

import (
	"strings"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

// ParseSimpleCompound is the compact-condition fast path: it converts a flat
// "a+b+c" or "a|b|c" string straight into conditions and a combinator.
// Anything richer (mixed +/| at one level, parentheses, hierarchical
// operators) returns ok=false so the caller falls back to the full parser.
func ParseSimpleCompound(input string) ([]domain.SearchCondition, domain.Combinator, bool) {
	s := stripWrappingQuotes(strings.TrimSpace(input))
	if s == "" || strings.ContainsAny(s, "()") {
		return nil, "", false
	}
	if _, _, found := findHierarchicalOp(s); found {
		return nil, "", false
	}

	hasOr := strings.ContainsRune(s, '|')
	hasAnd := strings.ContainsRune(s, '+')
	if hasOr && hasAnd {
		return nil, "", false
	}

	combinator := domain.CombineAND
	sep := byte('+')
	if hasOr {
		combinator = domain.CombineOR
		sep = '|'
	}

	conditions := make([]domain.SearchCondition, 0, 4)
	for _, part := range splitTopLevel(s, sep) {
		if part == "" {
			return nil, "", false
		}
		conditions = append(conditions, ConditionFromTerm(parseTerm(part)))
	}
	return conditions, combinator, true
}

// ConditionFromTerm lowers a parsed leaf into the structured condition model.
func ConditionFromTerm(term domain.Term) domain.SearchCondition {
	cond := domain.SearchCondition{Text: term.Text, Kind: term.Kind, Weight: 1}
	switch term.Kind {
	case domain.TermRegex:
		cond.Match = domain.MatchRegex
	case domain.TermPageRef, domain.TermBlockRef, domain.TermPageRefOr:
		cond.Match = domain.MatchExact
	default:
		cond.Match = domain.MatchContains
	}
	return cond
}
