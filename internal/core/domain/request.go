package domain

import "fmt"

// SearchRequest carries either a query string, a flat condition list or
// condition groups. Supplying both conditions and groups is ambiguous and
// rejected.
type SearchRequest struct {
	Query           string            `json:"query,omitempty"`
	Conditions      []SearchCondition `json:"conditions,omitempty"`
	Combinator      Combinator        `json:"combinator,omitempty"`
	Groups          []ConditionGroup  `json:"groups,omitempty"`
	GroupCombinator Combinator        `json:"groupCombinator,omitempty"`
	Kind            NodeKind          `json:"kind,omitempty"`
	Limit           int               `json:"limit,omitempty"`
	Expand          bool              `json:"expand,omitempty"`
	ExpandHint      string            `json:"expandHint,omitempty"`
	Store           bool              `json:"store,omitempty"`
}

func (r SearchRequest) Validate() error {
	if r.Query == "" && len(r.Conditions) == 0 && len(r.Groups) == 0 {
		return WrapError(ErrInvalidInput, "validate search request", fmt.Errorf("neither query, conditions nor groups supplied"))
	}
	if len(r.Conditions) > 0 && len(r.Groups) > 0 {
		return WrapError(ErrInvalidInput, "validate search request", fmt.Errorf("conditions and groups are mutually exclusive"))
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, g := range r.Groups {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	if r.Limit < 0 {
		return WrapError(ErrInvalidInput, "validate search request", fmt.Errorf("limit %d is negative", r.Limit))
	}
	return nil
}

// ExpandRequest asks for semantic alternatives to a seed condition list
// without running a search.
type ExpandRequest struct {
	Conditions []SearchCondition `json:"conditions"`
	Hint       string            `json:"hint,omitempty"`
}

func (r ExpandRequest) Validate() error {
	if len(r.Conditions) == 0 {
		return WrapError(ErrInvalidInput, "validate expand request", fmt.Errorf("no conditions supplied"))
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ExpandResult carries the generated alternative conditions. The seed
// conditions are not repeated.
type ExpandResult struct {
	Conditions []SearchCondition `json:"conditions"`
	Total      int               `json:"total"`
}

// SearchResult is the ranked outcome of one search invocation. ResultID is
// set when the caller asked for the records to be stored.
type SearchResult struct {
	Records    []NodeRecord `json:"records"`
	Kind       NodeKind     `json:"kind"`
	Total      int          `json:"total"`
	ResultID   string       `json:"resultId,omitempty"`
	ParseNotes []string     `json:"parseNotes,omitempty"`
}

// CombineOptions steer the combiner post-processing pipeline; field order
// mirrors the pipeline order.
type CombineOptions struct {
	DedupWithin    bool        `json:"dedupWithin,omitempty"`
	DedupAcross    bool        `json:"dedupAcross,omitempty"`
	MinAppearances int         `json:"minAppearances,omitempty"`
	MaxAppearances int         `json:"maxAppearances,omitempty"`
	OrderBy        OrderPolicy `json:"orderBy,omitempty"`
	Limit          int         `json:"limit,omitempty"`
	IncludeSources bool        `json:"includeSources,omitempty"`
}

// CombineRequest names stored results and/or supplies inline sets.
type CombineRequest struct {
	ResultIDs []string       `json:"resultIds,omitempty"`
	Sets      []ResultSet    `json:"sets,omitempty"`
	Operation SetOperation   `json:"operation"`
	Options   CombineOptions `json:"options"`
}
