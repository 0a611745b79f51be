package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/notegraph/graphsearch/internal/core/domain"
	"github.com/notegraph/graphsearch/internal/core/dsl"
	"github.com/notegraph/graphsearch/internal/core/ports"
)

// DrivingSelector picks the condition executed against the backend when an
// AND chain is evaluated in hybrid mode; the rest filter its candidate set in
// memory. It returns -1 when no condition is suitable to drive.
type DrivingSelector func(conds []domain.SearchCondition) int

// DefaultDrivingSelector prefers the most selective positive condition:
// exact matches over references over substring over regex. Selection is a
// heuristic only; any selector must preserve result correctness.
func DefaultDrivingSelector(conds []domain.SearchCondition) int {
	best := -1
	bestRank := int(^uint(0) >> 1)
	for i, cond := range conds {
		if cond.Negate {
			continue
		}
		rank := selectivityRank(cond)
		if rank < bestRank {
			best = i
			bestRank = rank
		}
	}
	return best
}

func selectivityRank(cond domain.SearchCondition) int {
	switch {
	case cond.Kind == domain.TermBlockRef:
		return 0
	case cond.Kind == domain.TermPageRef || cond.Kind == domain.TermPageRefOr:
		return 1
	case cond.Match == domain.MatchExact:
		return 2
	case cond.Match == domain.MatchContains:
		return 3
	default:
		return 4
	}
}

// SearchOptions configure optional collaborators and evaluation strategy.
type SearchOptions struct {
	Expander     ports.SemanticExpander
	Store        ports.ResultStore
	Progress     ports.ProgressSink
	Selector     DrivingSelector
	DisableHybridAND bool
	DefaultLimit int
	Logger       *slog.Logger
}

// SearchUseCase compiles condition lists, groups or query strings into
// backend queries and returns ranked, deduplicated node records.
type SearchUseCase struct {
	graph     ports.GraphStore
	expander  ports.SemanticExpander
	store     ports.ResultStore
	progress  ports.ProgressSink
	selector  DrivingSelector
	hybridAND bool
	limit     int
	logger    *slog.Logger
}

func NewSearchUseCase(graph ports.GraphStore, logger *slog.Logger) *SearchUseCase {
	return NewSearchUseCaseWithOptions(graph, SearchOptions{Logger: logger})
}

func NewSearchUseCaseWithOptions(graph ports.GraphStore, options SearchOptions) *SearchUseCase {
	selector := options.Selector
	if selector == nil {
		selector = DefaultDrivingSelector
	}
	limit := options.DefaultLimit
	if limit <= 0 {
		limit = 50
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		graph:     graph,
		expander:  options.Expander,
		store:     options.Store,
		progress:  options.Progress,
		selector:  selector,
		hybridAND: !options.DisableHybridAND,
		limit:     limit,
		logger:    logger,
	}
}

// candidateFactor widens the driving query so in-memory filtering does not
// starve the final result below the requested limit.
const candidateFactor = 20

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = domain.KindBlock
	}
	limit := req.Limit
	if limit <= 0 {
		limit = uc.limit
	}

	var notes []string
	var records []domain.NodeRecord
	var err error

	switch {
	case len(req.Groups) > 0:
		records, err = uc.evaluateGroups(ctx, req.Groups, req.GroupCombinator, kind, limit)
	case len(req.Conditions) > 0:
		records, err = uc.evaluateConditions(ctx, req.Conditions, req.Combinator, kind, limit)
	default:
		records, notes, err = uc.searchQueryString(ctx, req.Query, kind, limit)
	}
	if err != nil {
		return nil, err
	}

	if req.Expand && uc.expander != nil {
		records, err = uc.unionExpanded(ctx, req, records, kind, limit)
		if err != nil {
			return nil, err
		}
	}

	uc.publishProgress(ctx, domain.ProgressEvent{Stage: "search", Current: len(records), Total: len(records)})

	total := len(records)
	if len(records) > limit {
		records = records[:limit]
	}

	result := &domain.SearchResult{Records: records, Kind: kind, Total: total, ParseNotes: notes}
	if req.Store && uc.store != nil {
		stored := &domain.StoredResult{
			ID:        uuid.NewString(),
			Kind:      kind,
			Records:   records,
			CreatedAt: time.Now().UTC(),
		}
		if err := uc.store.Save(ctx, stored); err != nil {
			return nil, err
		}
		result.ResultID = stored.ID
	}
	return result, nil
}

// Expand returns semantic alternatives for a seed condition list without
// running a search. Unlike the expansion that rides along a search, a
// standalone request does not degrade: an unavailable expander is the error.
func (uc *SearchUseCase) Expand(ctx context.Context, req domain.ExpandRequest) (*domain.ExpandResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if uc.expander == nil {
		return nil, domain.WrapError(domain.ErrTemporary, "semantic expansion",
			fmt.Errorf("no expander is configured"))
	}
	expanded, err := uc.expander.ExpandConditions(ctx, req.Conditions, req.Hint)
	if err != nil {
		if domain.IsKind(err, domain.ErrTemporary) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrBackend, "semantic expansion", err)
	}
	for _, cond := range expanded {
		if err := cond.Validate(); err != nil {
			return nil, err
		}
	}
	return &domain.ExpandResult{Conditions: expanded, Total: len(expanded)}, nil
}

func (uc *SearchUseCase) searchQueryString(ctx context.Context, query string, kind domain.NodeKind, limit int) ([]domain.NodeRecord, []string, error) {
	// Compact fast path first; mixed operators fall back to the full parser.
	if conds, combinator, ok := dsl.ParseSimpleCompound(query); ok {
		records, err := uc.evaluateConditions(ctx, conds, combinator, kind, limit)
		return records, nil, err
	}
	expr, notes := dsl.ParseWithNotes(query)
	records, err := uc.evaluateExpression(ctx, expr, kind, limit)
	return records, notes, err
}

func (uc *SearchUseCase) unionExpanded(ctx context.Context, req domain.SearchRequest, base []domain.NodeRecord, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	seed := req.Conditions
	if len(seed) == 0 && req.Query != "" {
		if conds, _, ok := dsl.ParseSimpleCompound(req.Query); ok {
			seed = conds
		} else {
			seed = []domain.SearchCondition{dsl.ConditionFromTerm(domain.Term{Text: req.Query, Kind: domain.TermText})}
		}
	}
	expanded, err := uc.expander.ExpandConditions(ctx, seed, req.ExpandHint)
	if err != nil {
		// Expansion is best effort: an unavailable expander degrades to the
		// unexpanded result instead of failing the search.
		if domain.IsKind(err, domain.ErrTemporary) {
			uc.logger.Warn("semantic expansion unavailable", "error", err)
			return base, nil
		}
		return nil, domain.WrapError(domain.ErrBackend, "semantic expansion", err)
	}
	for _, cond := range expanded {
		if err := cond.Validate(); err != nil {
			return nil, err
		}
	}
	if len(expanded) == 0 {
		return base, nil
	}
	// Expanded conditions are ordinary OR alternatives, nothing privileged.
	extra, err := uc.evaluateOR(ctx, expanded, kind, limit)
	if err != nil {
		return nil, err
	}
	return unionRecords(base, extra), nil
}

func (uc *SearchUseCase) evaluateGroups(ctx context.Context, groups []domain.ConditionGroup, groupCombinator domain.Combinator, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	if groupCombinator == "" {
		groupCombinator = domain.CombineAND
	}
	var combined []domain.NodeRecord
	for i, group := range groups {
		records, err := uc.evaluateConditions(ctx, group.Conditions, group.Combinator, kind, limit*candidateFactor)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			combined = records
			continue
		}
		if groupCombinator == domain.CombineOR {
			combined = unionRecords(combined, records)
		} else {
			combined = intersectRecords(combined, records)
		}
	}
	return combined, nil
}

// evaluateConditions is the flat-list entry: one group with one combinator.
func (uc *SearchUseCase) evaluateConditions(ctx context.Context, conds []domain.SearchCondition, combinator domain.Combinator, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	for _, cond := range conds {
		if err := cond.Validate(); err != nil {
			return nil, err
		}
	}
	if combinator == "" {
		combinator = domain.CombineAND
	}
	if combinator == domain.CombineOR {
		return uc.evaluateOR(ctx, conds, kind, limit)
	}
	return uc.evaluateAND(ctx, conds, kind, limit)
}

// evaluateAND runs an AND chain. In hybrid mode a single driving condition
// hits the backend and the remaining conditions filter its candidates in
// memory; otherwise every condition is queried and the id sets intersected.
// Both strategies must produce the same result set.
func (uc *SearchUseCase) evaluateAND(ctx context.Context, conds []domain.SearchCondition, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	// A single condition goes straight to the backend; the query builder
	// compiles negation natively.
	if len(conds) == 1 {
		return uc.graph.SearchNodes(ctx, conds[0], kind, limit)
	}

	if uc.hybridAND {
		if idx := uc.selector(conds); idx >= 0 {
			return uc.evaluateANDHybrid(ctx, conds, idx, kind, limit)
		}
	}
	return uc.evaluateANDBackend(ctx, conds, kind, limit)
}

func (uc *SearchUseCase) evaluateANDHybrid(ctx context.Context, conds []domain.SearchCondition, driving int, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	candidates, err := uc.drivingCandidates(ctx, conds[driving], kind, limit*candidateFactor)
	if err != nil {
		return nil, err
	}
	for i, cond := range conds {
		if i == driving {
			continue
		}
		match, err := conditionMatcher(cond)
		if err != nil {
			return nil, err
		}
		kept := candidates[:0:0]
		for _, rec := range candidates {
			if match(rec) {
				kept = append(kept, rec)
			}
		}
		candidates = kept
	}
	return candidates, nil
}

// drivingCandidates fetches the candidate set for the driving condition. A
// non-negated reference condition resolves its target once and walks the
// backlink index instead of scanning content; an unresolved target falls back
// to the content query.
func (uc *SearchUseCase) drivingCandidates(ctx context.Context, cond domain.SearchCondition, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	if !cond.Negate {
		switch cond.Kind {
		case domain.TermPageRef, domain.TermPageRefOr, domain.TermBlockRef:
			target, err := uc.graph.ResolveRef(ctx, cond.Text)
			if err == nil {
				refs, err := uc.graph.GetIncomingRefs(ctx, target.ID)
				if err != nil {
					return nil, err
				}
				kept := refs[:0:0]
				for _, rec := range refs {
					if rec.Kind != kind {
						continue
					}
					kept = append(kept, rec)
					if len(kept) == limit {
						break
					}
				}
				return kept, nil
			}
			if !domain.IsKind(err, domain.ErrNodeNotFound) {
				return nil, err
			}
		}
	}
	return uc.graph.SearchNodes(ctx, cond, kind, limit)
}

func (uc *SearchUseCase) evaluateANDBackend(ctx context.Context, conds []domain.SearchCondition, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	var positive []domain.SearchCondition
	var negated []domain.SearchCondition
	for _, cond := range conds {
		if cond.Negate {
			negated = append(negated, cond)
		} else {
			positive = append(positive, cond)
		}
	}
	if len(positive) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate AND",
			fmt.Errorf("an AND chain of %d conditions needs at least one non-negated condition to anchor the query", len(conds)))
	}

	var combined []domain.NodeRecord
	for i, cond := range positive {
		records, err := uc.graph.SearchNodes(ctx, cond, kind, limit*candidateFactor)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			combined = records
		} else {
			combined = intersectRecords(combined, records)
		}
	}

	// Negation stays local to each condition and is applied as an in-memory
	// filter over the positive intersection.
	for _, cond := range negated {
		match, err := conditionMatcher(cond)
		if err != nil {
			return nil, err
		}
		kept := combined[:0:0]
		for _, rec := range combined {
			if match(rec) {
				kept = append(kept, rec)
			}
		}
		combined = kept
	}
	return combined, nil
}

// evaluateOR unions per-condition results, deduplicated by identifier,
// first-seen order. Records are ranked by accumulated condition weight; ties
// keep first-seen order through a stable sort.
func (uc *SearchUseCase) evaluateOR(ctx context.Context, conds []domain.SearchCondition, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	type scored struct {
		rec   domain.NodeRecord
		score float64
	}
	order := make([]string, 0)
	byID := make(map[string]*scored)

	for _, cond := range conds {
		records, err := uc.graph.SearchNodes(ctx, cond, kind, limit*candidateFactor)
		if err != nil {
			return nil, err
		}
		weight := cond.Weight
		if weight == 0 {
			weight = 1
		}
		for _, rec := range records {
			entry, ok := byID[rec.ID]
			if !ok {
				entry = &scored{rec: rec}
				byID[rec.ID] = entry
				order = append(order, rec.ID)
			}
			entry.score += weight
		}
	}

	out := make([]domain.NodeRecord, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id].rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return byID[out[i].ID].score > byID[out[j].ID].score
	})
	return out, nil
}

func (uc *SearchUseCase) publishProgress(ctx context.Context, event domain.ProgressEvent) {
	if uc.progress == nil {
		return
	}
	if err := uc.progress.Publish(ctx, event); err != nil {
		uc.logger.Warn("publish progress failed", "stage", event.Stage, "error", err)
	}
}

func unionRecords(a, b []domain.NodeRecord) []domain.NodeRecord {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]domain.NodeRecord, 0, len(a)+len(b))
	for _, rec := range a {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	for _, rec := range b {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func intersectRecords(a, b []domain.NodeRecord) []domain.NodeRecord {
	membership := make(map[string]struct{}, len(b))
	for _, rec := range b {
		membership[rec.ID] = struct{}{}
	}
	out := a[:0:0]
	for _, rec := range a {
		if _, ok := membership[rec.ID]; ok {
			out = append(out, rec)
		}
	}
	return out
}
