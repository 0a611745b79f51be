package usecase

import (
	"context"
	"fmt"

	"github.com/notegraph/graphsearch/internal/core/domain"
	"github.com/notegraph/graphsearch/internal/core/dsl"
)

// evaluateExpression walks the parsed expression tree. Compounds made only of
// leaf terms are lowered to flat condition chains so the AND driving-filter
// optimization applies; everything else is evaluated recursively over id
// sets.
func (uc *SearchUseCase) evaluateExpression(ctx context.Context, expr domain.Expression, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	switch node := expr.(type) {
	case domain.Term:
		cond := dsl.ConditionFromTerm(node)
		if err := cond.Validate(); err != nil {
			return nil, err
		}
		return uc.graph.SearchNodes(ctx, cond, kind, limit)

	case domain.Compound:
		if conds, ok := lowerToConditions(node); ok {
			return uc.evaluateConditions(ctx, conds, node.Op, kind, limit)
		}
		var combined []domain.NodeRecord
		for i, operand := range node.Operands {
			records, err := uc.evaluateExpression(ctx, operand, kind, limit*candidateFactor)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				combined = records
				continue
			}
			if node.Op == domain.CombineOR {
				combined = unionRecords(combined, records)
			} else {
				combined = intersectRecords(combined, records)
			}
		}
		return combined, nil

	case domain.Hierarchical:
		return uc.evaluateHierarchical(ctx, node, kind, limit)
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate expression", fmt.Errorf("unknown expression node %T", expr))
}

func lowerToConditions(node domain.Compound) ([]domain.SearchCondition, bool) {
	conds := make([]domain.SearchCondition, 0, len(node.Operands))
	for _, operand := range node.Operands {
		term, ok := operand.(domain.Term)
		if !ok {
			return nil, false
		}
		conds = append(conds, dsl.ConditionFromTerm(term))
	}
	return conds, true
}

// evaluateHierarchical returns left-side matches that have a related node
// (descendant, ancestor or either, depending on the operator) matching the
// right side within the operator's depth bound. The parser only records the
// bound; it is enforced here.
func (uc *SearchUseCase) evaluateHierarchical(ctx context.Context, node domain.Hierarchical, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	left, err := uc.evaluateExpression(ctx, node.Left, kind, limit*candidateFactor)
	if err != nil {
		return nil, err
	}
	if len(left) == 0 {
		return nil, nil
	}

	right, err := uc.evaluateExpression(ctx, node.Right, kind, limit*candidateFactor)
	if err != nil {
		return nil, err
	}
	rightIDs := make(map[string]struct{}, len(right))
	for _, rec := range right {
		rightIDs[rec.ID] = struct{}{}
	}
	if len(rightIDs) == 0 {
		return nil, nil
	}

	depth := node.MaxDepth
	if depth <= 0 {
		depth = node.Op.DefaultDepth()
	}

	out := make([]domain.NodeRecord, 0, len(left))
	for _, rec := range left {
		if err := ctx.Err(); err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "hierarchical search cancelled", err)
		}
		related, err := uc.hasRelated(ctx, rec.ID, node.Op, depth, rightIDs)
		if err != nil {
			// A failed traversal for one candidate must not abort the batch.
			uc.logger.Warn("hierarchical traversal failed", "node", rec.ID, "error", err)
			continue
		}
		if related {
			out = append(out, rec)
		}
	}
	return out, nil
}

// hasRelated walks the block tree breadth-first from the given node, in the
// operator's direction(s), until a right-side match or the depth bound.
func (uc *SearchUseCase) hasRelated(ctx context.Context, id string, op domain.HierarchicalOp, depth int, targets map[string]struct{}) (bool, error) {
	if op.Bidirectional() || op.Descending() {
		found, err := uc.scanDirection(ctx, id, depth, targets, uc.graph.GetChildren)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	if op.Bidirectional() || !op.Descending() {
		return uc.scanDirection(ctx, id, depth, targets, uc.graph.GetParents)
	}
	return false, nil
}

func (uc *SearchUseCase) scanDirection(
	ctx context.Context,
	id string,
	depth int,
	targets map[string]struct{},
	next func(context.Context, string) ([]domain.NodeRecord, error),
) (bool, error) {
	frontier := []string{id}
	visited := map[string]struct{}{id: {}}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		var nextFrontier []string
		for _, current := range frontier {
			related, err := next(ctx, current)
			if err != nil {
				return false, err
			}
			for _, rec := range related {
				if _, ok := targets[rec.ID]; ok {
					return true, nil
				}
				if _, seen := visited[rec.ID]; seen {
					continue
				}
				visited[rec.ID] = struct{}{}
				nextFrontier = append(nextFrontier, rec.ID)
			}
		}
		frontier = nextFrontier
	}
	return false, nil
}
