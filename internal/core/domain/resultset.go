package domain

import (
	"fmt"
	"time"
)

// NodeKind is the explicit page/block discriminant. It is set when a record
// is constructed and never inferred downstream from which fields happen to be
// populated.
type NodeKind string

const (
	KindPage  NodeKind = "page"
	KindBlock NodeKind = "block"
)

// NodeRecord is one raw match returned by the graph backend.
type NodeRecord struct {
	ID        string   `json:"id"`
	Kind      NodeKind `json:"kind"`
	Content   string   `json:"content,omitempty"`
	Title     string   `json:"title,omitempty"`
	PageID    string   `json:"pageId,omitempty"`
	PageTitle string   `json:"pageTitle,omitempty"`
	Order     int      `json:"order,omitempty"`
	Refs      []string `json:"refs,omitempty"`
}

// ResultSet is a named, ordered collection of node identifiers of one kind,
// the unit the combiner operates on.
type ResultSet struct {
	Name     string            `json:"name"`
	IDs      []string          `json:"identifiers"`
	Kind     NodeKind          `json:"kind"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type SetOperation string

const (
	OpUnion         SetOperation = "union"
	OpIntersection  SetOperation = "intersection"
	OpDifference    SetOperation = "difference"
	OpSymmetricDiff SetOperation = "symmetric_difference"
)

func (op SetOperation) Validate() error {
	switch op {
	case OpUnion, OpIntersection, OpDifference, OpSymmetricDiff:
		return nil
	}
	return WrapError(ErrInvalidInput, "validate operation", fmt.Errorf("unknown set operation %q", op))
}

type OrderPolicy string

const (
	OrderFirstAppearance OrderPolicy = "first_appearance"
	OrderAlphabetical    OrderPolicy = "alphabetical"
	OrderFrequency       OrderPolicy = "frequency"
	OrderReverseFreq     OrderPolicy = "reverse_frequency"
)

type CombinationStats struct {
	TotalInputCount   int            `json:"totalInputCount"`
	UniqueInputCount  int            `json:"uniqueInputCount"`
	FinalCount        int            `json:"finalCount"`
	DuplicatesRemoved int            `json:"duplicatesRemoved"`
	PerSetCounts      map[string]int `json:"perSetCounts"`
}

// CombinedResult is the combiner output: an ordered identifier sequence plus
// statistics computed over the pre-limit combined set.
type CombinedResult struct {
	IDs        []string            `json:"identifiers"`
	Kind       NodeKind            `json:"kind"`
	Operation  SetOperation        `json:"operation"`
	Stats      CombinationStats    `json:"stats"`
	SourceInfo map[string][]string `json:"sourceInfo,omitempty"`
}

// StoredResult is a previously produced result kept in the caller-owned
// result store, keyed by an opaque identifier.
type StoredResult struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Kind      NodeKind     `json:"kind"`
	Records   []NodeRecord `json:"records"`
	CreatedAt time.Time    `json:"created_at"`
}

// Set converts the stored records into a combiner input set.
func (r StoredResult) Set() ResultSet {
	ids := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		ids = append(ids, rec.ID)
	}
	name := r.Name
	if name == "" {
		name = r.ID
	}
	return ResultSet{Name: name, IDs: ids, Kind: r.Kind}
}
