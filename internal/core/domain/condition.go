package domain

import (
	"fmt"
	"regexp"
)

type TermKind string

const (
	TermText      TermKind = "text"
	TermPageRef   TermKind = "page_ref"
	TermBlockRef  TermKind = "block_ref"
	TermRegex     TermKind = "regex"
	TermPageRefOr TermKind = "page_ref_or"
)

type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
	MatchRegex    MatchMode = "regex"
)

type Combinator string

const (
	CombineAND Combinator = "AND"
	CombineOR  Combinator = "OR"
)

// SearchCondition is a single backend-executable predicate. Negate flips the
// match of this condition only; it is applied before any AND/OR combination.
type SearchCondition struct {
	Text   string    `json:"text"`
	Kind   TermKind  `json:"type"`
	Match  MatchMode `json:"matchMode"`
	Negate bool      `json:"negate,omitempty"`
	Weight float64   `json:"weight,omitempty"`
}

// Validate reports caller contract violations. An invalid regex pattern is a
// hard error here, never a silent no-match at query time.
func (c SearchCondition) Validate() error {
	if c.Text == "" {
		return WrapError(ErrInvalidInput, "validate condition", fmt.Errorf("condition text is empty"))
	}
	if c.Weight < 0 {
		return WrapError(ErrInvalidInput, "validate condition", fmt.Errorf("condition weight %v is negative", c.Weight))
	}
	switch c.Kind {
	case TermText, TermPageRef, TermBlockRef, TermRegex, TermPageRefOr:
	default:
		return WrapError(ErrInvalidInput, "validate condition", fmt.Errorf("unknown term kind %q", c.Kind))
	}
	if c.Kind == TermRegex || c.Match == MatchRegex {
		if _, err := regexp.Compile(c.Text); err != nil {
			return WrapError(ErrInvalidInput, "validate condition", fmt.Errorf("invalid regex %q: %w", c.Text, err))
		}
	}
	return nil
}

// ConditionGroup combines its conditions with one combinator. Groups are then
// combined with an outer group combinator supplied by the request.
type ConditionGroup struct {
	Conditions []SearchCondition `json:"conditions"`
	Combinator Combinator        `json:"combinator"`
}

func (g ConditionGroup) Validate() error {
	if len(g.Conditions) == 0 {
		return WrapError(ErrInvalidInput, "validate group", fmt.Errorf("condition group is empty"))
	}
	if g.Combinator != CombineAND && g.Combinator != CombineOR {
		return WrapError(ErrInvalidInput, "validate group", fmt.Errorf("unknown combinator %q", g.Combinator))
	}
	for _, c := range g.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}
