package ports

import (
	"context"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

// GraphStore executes declarative queries against the document graph. The
// core never assumes a backend query language, only these primitives.
type GraphStore interface {
	// SearchNodes runs one condition against the backend and returns matching
	// records with enough content for in-memory filtering.
	SearchNodes(ctx context.Context, cond domain.SearchCondition, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error)
	// GetNode resolves a single node by identifier.
	GetNode(ctx context.Context, id string) (*domain.NodeRecord, error)
	// GetChildren returns direct children in document order.
	GetChildren(ctx context.Context, id string) ([]domain.NodeRecord, error)
	// GetParents returns the ancestor chain, nearest first.
	GetParents(ctx context.Context, id string) ([]domain.NodeRecord, error)
	// GetIncomingRefs returns nodes referencing the given node.
	GetIncomingRefs(ctx context.Context, id string) ([]domain.NodeRecord, error)
	// ResolveRef resolves a page title or block identifier mentioned inline.
	ResolveRef(ctx context.Context, ref string) (*domain.NodeRecord, error)
}

// SemanticExpander returns an LLM-expanded condition list. Expanded
// conditions obey the same contract as user-supplied ones and get no
// privileged status.
type SemanticExpander interface {
	ExpandConditions(ctx context.Context, conds []domain.SearchCondition, hint string) ([]domain.SearchCondition, error)
}

// ResultStore keeps previously produced result sets keyed by opaque
// identifiers. Get reports a miss as an error, never as a silent empty set.
type ResultStore interface {
	Save(ctx context.Context, result *domain.StoredResult) error
	Get(ctx context.Context, id string) (*domain.StoredResult, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// ProgressSink receives structured progress events from long operations.
type ProgressSink interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}
