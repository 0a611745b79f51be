package ports

import (
	"context"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

// BlockSearcher is the inbound contract for condition-driven search and
// standalone semantic expansion.
type BlockSearcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error)
	Expand(ctx context.Context, req domain.ExpandRequest) (*domain.ExpandResult, error)
}

// ResultCombiner is the inbound contract for result-set algebra.
type ResultCombiner interface {
	Combine(ctx context.Context, req domain.CombineRequest) (*domain.CombinedResult, error)
}

// HierarchyService is the inbound contract for tree assembly and rendering.
type HierarchyService interface {
	Build(ctx context.Context, rootID string, opts domain.HierarchyOptions, render domain.RenderOptions) (*domain.Hierarchy, error)
}
