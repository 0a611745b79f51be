package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/notegraph/graphsearch/internal/core/domain"
	"github.com/notegraph/graphsearch/internal/core/ports"
)

// CombineUseCase performs set algebra over named result sets: union,
// intersection, difference and symmetric difference, with dedup, frequency
// filtering, ordering and statistics.
type CombineUseCase struct {
	store  ports.ResultStore
	logger *slog.Logger
}

func NewCombineUseCase(store ports.ResultStore, logger *slog.Logger) *CombineUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CombineUseCase{store: store, logger: logger}
}

func (uc *CombineUseCase) Combine(ctx context.Context, req domain.CombineRequest) (*domain.CombinedResult, error) {
	if err := req.Operation.Validate(); err != nil {
		return nil, err
	}

	sets := make([]domain.ResultSet, 0, len(req.Sets)+len(req.ResultIDs))
	sets = append(sets, req.Sets...)
	for _, id := range req.ResultIDs {
		if uc.store == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "combine",
				fmt.Errorf("result ids supplied but no result store is configured"))
		}
		stored, err := uc.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		sets = append(sets, stored.Set())
	}

	if err := validateSets(sets); err != nil {
		return nil, err
	}

	result := combineSets(sets, req.Operation, req.Options)
	uc.logger.Debug("combined result sets",
		"operation", string(req.Operation),
		"sets", len(sets),
		"final", result.Stats.FinalCount,
	)
	return result, nil
}

func validateSets(sets []domain.ResultSet) error {
	if len(sets) < 2 {
		return domain.WrapError(domain.ErrInvalidInput, "validate sets",
			fmt.Errorf("combination requires at least 2 sets, got %d", len(sets)))
	}
	seen := make(map[string]struct{}, len(sets))
	kind := sets[0].Kind
	for _, set := range sets {
		if set.Name == "" {
			return domain.WrapError(domain.ErrInvalidInput, "validate sets", fmt.Errorf("set name is empty"))
		}
		if _, dup := seen[set.Name]; dup {
			return domain.WrapError(domain.ErrInvalidInput, "validate sets", fmt.Errorf("duplicate set name %q", set.Name))
		}
		seen[set.Name] = struct{}{}
		if set.Kind != kind {
			return domain.WrapError(domain.ErrInvalidInput, "validate sets",
				fmt.Errorf("kind mismatch: set %q is %q, expected %q", set.Name, set.Kind, kind))
		}
	}
	return nil
}

// combineSets runs the fixed post-processing pipeline: intra-set dedup,
// frequency computation, the set operation, frequency-bound filtering,
// cross-set dedup, ordering, limiting, and statistics over the pre-limit
// output.
func combineSets(sets []domain.ResultSet, op domain.SetOperation, opts domain.CombineOptions) *domain.CombinedResult {
	totalInput := 0
	for _, set := range sets {
		totalInput += len(set.IDs)
	}

	// Step 1: optional dedup inside each set, before anything else.
	work := make([][]string, len(sets))
	for i, set := range sets {
		if opts.DedupWithin {
			work[i] = dedupeIDs(set.IDs)
		} else {
			work[i] = set.IDs
		}
	}

	// Step 2: set membership and first-seen order over the (possibly
	// deduped) sets, scanned in input order. Frequency counts the input
	// sets an identifier appears in, so intra-set duplicates never shift
	// it even with DedupWithin off.
	firstSeen := make([]string, 0, totalInput)
	memberOf := make(map[string][]string)
	for i, ids := range work {
		inSet := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if len(memberOf[id]) == 0 {
				firstSeen = append(firstSeen, id)
			}
			if _, ok := inSet[id]; !ok {
				inSet[id] = struct{}{}
				memberOf[id] = append(memberOf[id], sets[i].Name)
			}
		}
	}
	freq := make(map[string]int, len(memberOf))
	for id, names := range memberOf {
		freq[id] = len(names)
	}

	// Step 3: the set operation itself, over identifiers only.
	combined := applyOperation(work, op, freq, firstSeen)

	// Step 4: frequency bounds, inclusive on both ends.
	if opts.MinAppearances > 0 || opts.MaxAppearances > 0 {
		bounded := combined[:0:0]
		for _, id := range combined {
			f := freq[id]
			if opts.MinAppearances > 0 && f < opts.MinAppearances {
				continue
			}
			if opts.MaxAppearances > 0 && f > opts.MaxAppearances {
				continue
			}
			bounded = append(bounded, id)
		}
		combined = bounded
	}

	// Step 5: cross-set dedup of the combined output. Idempotent when the
	// operation already deduped.
	if opts.DedupAcross {
		combined = dedupeIDs(combined)
	}

	// Step 6: ordering. All sorts are stable so ties keep first-seen order.
	combined = orderIDs(combined, opts.OrderBy, freq)

	// Step 8 runs on the pre-limit output, so stats and attribution are
	// computed before truncation.
	stats := domain.CombinationStats{
		TotalInputCount:   totalInput,
		UniqueInputCount:  len(firstSeen),
		FinalCount:        len(combined),
		DuplicatesRemoved: totalInput - len(firstSeen),
		PerSetCounts:      make(map[string]int, len(sets)),
	}
	for i, set := range sets {
		stats.PerSetCounts[set.Name] = len(work[i])
	}

	var sourceInfo map[string][]string
	if opts.IncludeSources {
		sourceInfo = make(map[string][]string, len(combined))
		for _, id := range combined {
			sourceInfo[id] = memberOf[id]
		}
	}

	// Step 7: truncate, never sample.
	if opts.Limit > 0 && len(combined) > opts.Limit {
		combined = combined[:opts.Limit]
	}

	return &domain.CombinedResult{
		IDs:        combined,
		Kind:       sets[0].Kind,
		Operation:  op,
		Stats:      stats,
		SourceInfo: sourceInfo,
	}
}

func applyOperation(work [][]string, op domain.SetOperation, freq map[string]int, firstSeen []string) []string {
	switch op {
	case domain.OpUnion:
		all := make([]string, 0)
		for _, ids := range work {
			all = append(all, ids...)
		}
		return dedupeIDs(all)

	case domain.OpIntersection:
		if len(work) == 0 {
			return nil
		}
		result := dedupeIDs(work[0])
		for _, ids := range work[1:] {
			membership := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				membership[id] = struct{}{}
			}
			kept := result[:0:0]
			for _, id := range result {
				if _, ok := membership[id]; ok {
					kept = append(kept, id)
				}
			}
			result = kept
		}
		return result

	case domain.OpDifference:
		// First set minus the union of the rest, in that asymmetry.
		if len(work) == 1 {
			return dedupeIDs(work[0])
		}
		rest := make(map[string]struct{})
		for _, ids := range work[1:] {
			for _, id := range ids {
				rest[id] = struct{}{}
			}
		}
		result := make([]string, 0, len(work[0]))
		for _, id := range dedupeIDs(work[0]) {
			if _, ok := rest[id]; !ok {
				result = append(result, id)
			}
		}
		return result

	case domain.OpSymmetricDiff:
		// Identifiers appearing in exactly one input set, not "odd count".
		result := make([]string, 0)
		for _, id := range firstSeen {
			if freq[id] == 1 {
				result = append(result, id)
			}
		}
		return result
	}
	return nil
}

func orderIDs(ids []string, policy domain.OrderPolicy, freq map[string]int) []string {
	switch policy {
	case domain.OrderAlphabetical:
		sort.SliceStable(ids, func(i, j int) bool { return ids[i] < ids[j] })
	case domain.OrderFrequency:
		sort.SliceStable(ids, func(i, j int) bool { return freq[ids[i]] > freq[ids[j]] })
	case domain.OrderReverseFreq:
		sort.SliceStable(ids, func(i, j int) bool { return freq[ids[i]] < freq[ids[j]] })
	default:
		// first_appearance: the pipeline already yields ids in the order
		// they were first seen scanning input sets.
	}
	return ids
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
