package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"testing"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

// graphFake serves condition queries from an in-memory record list using the
// same matcher the hybrid path uses for filtering, so backend and in-memory
// semantics agree the way a real backend is required to.
type graphFake struct {
	records  []domain.NodeRecord
	children map[string][]string
	parents  map[string][]string
	queries  int
	failFor  string
}

func (g *graphFake) SearchNodes(_ context.Context, cond domain.SearchCondition, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	g.queries++
	if g.failFor != "" && cond.Text == g.failFor {
		return nil, domain.WrapError(domain.ErrBackend, "search nodes", fmt.Errorf("backend down"))
	}
	match, err := conditionMatcher(cond)
	if err != nil {
		return nil, err
	}
	var out []domain.NodeRecord
	for _, rec := range g.records {
		if rec.Kind != kind {
			continue
		}
		if match(rec) {
			out = append(out, rec)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (g *graphFake) GetNode(_ context.Context, id string) (*domain.NodeRecord, error) {
	for _, rec := range g.records {
		if rec.ID == id {
			out := rec
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNodeNotFound, "get node", fmt.Errorf("no node %q", id))
}

func (g *graphFake) byIDs(ids []string) []domain.NodeRecord {
	var out []domain.NodeRecord
	for _, id := range ids {
		for _, rec := range g.records {
			if rec.ID == id {
				out = append(out, rec)
			}
		}
	}
	return out
}

func (g *graphFake) GetChildren(_ context.Context, id string) ([]domain.NodeRecord, error) {
	return g.byIDs(g.children[id]), nil
}

func (g *graphFake) GetParents(_ context.Context, id string) ([]domain.NodeRecord, error) {
	return g.byIDs(g.parents[id]), nil
}

func (g *graphFake) GetIncomingRefs(_ context.Context, id string) ([]domain.NodeRecord, error) {
	title := id
	for _, rec := range g.records {
		if rec.ID == id && rec.Title != "" {
			title = rec.Title
		}
	}
	var out []domain.NodeRecord
	for _, rec := range g.records {
		for _, ref := range rec.Refs {
			if ref == id || ref == title {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (g *graphFake) ResolveRef(_ context.Context, ref string) (*domain.NodeRecord, error) {
	for _, rec := range g.records {
		if rec.ID == ref || rec.Title == ref {
			out := rec
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNodeNotFound, "resolve ref", fmt.Errorf("no node for ref %q", ref))
}

func block(id, content string, refs ...string) domain.NodeRecord {
	return domain.NodeRecord{ID: id, Kind: domain.KindBlock, Content: content, Refs: refs}
}

func testGraph() *graphFake {
	return &graphFake{
		records: []domain.NodeRecord{
			block("b1", "alpha beta gamma"),
			block("b2", "alpha beta"),
			block("b3", "alpha delta", "Tasks"),
			block("b4", "beta delta"),
			block("b5", "epsilon [[Tasks]]", "Tasks"),
		},
	}
}

func textCond(text string) domain.SearchCondition {
	return domain.SearchCondition{Text: text, Kind: domain.TermText, Match: domain.MatchContains, Weight: 1}
}

func sortedIDs(records []domain.NodeRecord) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestSearchRejectsConditionsAndGroupsTogether(t *testing.T) {
	uc := NewSearchUseCase(testGraph(), slog.Default())
	_, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{textCond("alpha")},
		Groups: []domain.ConditionGroup{
			{Conditions: []domain.SearchCondition{textCond("beta")}, Combinator: domain.CombineAND},
		},
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchRejectsEmptyRequest(t *testing.T) {
	uc := NewSearchUseCase(testGraph(), slog.Default())
	_, err := uc.Search(context.Background(), domain.SearchRequest{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchRejectsInvalidRegexUpFront(t *testing.T) {
	graph := testGraph()
	uc := NewSearchUseCase(graph, slog.Default())
	_, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{
			{Text: "([unclosed", Kind: domain.TermRegex, Match: domain.MatchRegex},
		},
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad regex, got %v", err)
	}
	if graph.queries != 0 {
		t.Fatalf("no backend query may run before validation, got %d", graph.queries)
	}
}

func TestSearchANDHybridMatchesBackendOnly(t *testing.T) {
	chains := [][]domain.SearchCondition{
		{textCond("alpha"), textCond("beta")},
		{textCond("alpha"), textCond("beta"), textCond("gamma")},
		{textCond("beta"), textCond("delta")},
		{textCond("alpha"), textCond("beta"), textCond("delta"), textCond("gamma")},
	}

	for i, conds := range chains {
		hybrid := NewSearchUseCaseWithOptions(testGraph(), SearchOptions{})
		backend := NewSearchUseCaseWithOptions(testGraph(), SearchOptions{DisableHybridAND: true})

		hybridResult, err := hybrid.Search(context.Background(), domain.SearchRequest{Conditions: conds})
		if err != nil {
			t.Fatalf("chain %d hybrid error = %v", i, err)
		}
		backendResult, err := backend.Search(context.Background(), domain.SearchRequest{Conditions: conds})
		if err != nil {
			t.Fatalf("chain %d backend error = %v", i, err)
		}

		got := sortedIDs(hybridResult.Records)
		want := sortedIDs(backendResult.Records)
		if len(got) != len(want) {
			t.Fatalf("chain %d: hybrid %v != backend %v", i, got, want)
		}
		for j := range got {
			if got[j] != want[j] {
				t.Fatalf("chain %d: hybrid %v != backend %v", i, got, want)
			}
		}
	}
}

func TestSearchANDHybridIssuesSingleBackendQuery(t *testing.T) {
	graph := testGraph()
	uc := NewSearchUseCase(graph, slog.Default())
	_, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{textCond("alpha"), textCond("beta"), textCond("gamma")},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if graph.queries != 1 {
		t.Fatalf("hybrid AND should drive exactly one backend query, got %d", graph.queries)
	}
}

func TestSearchANDRefDrivesThroughBacklinks(t *testing.T) {
	graph := testGraph()
	graph.records = append(graph.records, domain.NodeRecord{ID: "p1", Kind: domain.KindPage, Title: "Tasks"})
	uc := NewSearchUseCase(graph, slog.Default())
	result, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{
			{Text: "Tasks", Kind: domain.TermPageRef, Match: domain.MatchExact, Weight: 1},
			textCond("delta"),
		},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ids := sortedIDs(result.Records)
	if len(ids) != 1 || ids[0] != "b3" {
		t.Fatalf("ref AND delta = %v, want [b3]", ids)
	}
	if graph.queries != 0 {
		t.Fatalf("a resolvable reference must drive through the backlink index, got %d content queries", graph.queries)
	}
}

func TestSearchANDRefFallsBackWhenTargetMissing(t *testing.T) {
	graph := testGraph()
	uc := NewSearchUseCase(graph, slog.Default())
	result, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{
			{Text: "Tasks", Kind: domain.TermPageRef, Match: domain.MatchExact, Weight: 1},
			textCond("delta"),
		},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ids := sortedIDs(result.Records)
	if len(ids) != 1 || ids[0] != "b3" {
		t.Fatalf("ref AND delta = %v, want [b3]", ids)
	}
	if graph.queries != 1 {
		t.Fatalf("an unresolved reference falls back to the content query, got %d queries", graph.queries)
	}
}

func TestSearchNegateIsLocalToCondition(t *testing.T) {
	uc := NewSearchUseCase(testGraph(), slog.Default())
	result, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{
			textCond("alpha"),
			{Text: "beta", Kind: domain.TermText, Match: domain.MatchContains, Negate: true},
		},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ids := sortedIDs(result.Records)
	if len(ids) != 1 || ids[0] != "b3" {
		t.Fatalf("alpha AND NOT beta = %v, want [b3]", ids)
	}
}

func TestSearchSingleNegatedConditionQueriesBackend(t *testing.T) {
	graph := testGraph()
	uc := NewSearchUseCase(graph, slog.Default())
	result, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{
			{Text: "alpha", Kind: domain.TermText, Match: domain.MatchContains, Negate: true},
		},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ids := sortedIDs(result.Records)
	if len(ids) != 2 || ids[0] != "b4" || ids[1] != "b5" {
		t.Fatalf("NOT alpha = %v, want [b4 b5]", ids)
	}
	if graph.queries != 1 {
		t.Fatalf("a single negated condition compiles to one backend query, got %d", graph.queries)
	}
}

func TestSearchORDeduplicatesFirstSeen(t *testing.T) {
	uc := NewSearchUseCase(testGraph(), slog.Default())
	result, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{textCond("alpha"), textCond("beta")},
		Combinator: domain.CombineOR,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	seen := make(map[string]int)
	for _, rec := range result.Records {
		seen[rec.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("id %q appears %d times in OR result", id, n)
		}
	}
	// b1/b2 match both alternatives and outrank single-condition matches.
	if result.Records[0].ID != "b1" || result.Records[1].ID != "b2" {
		t.Fatalf("expected double matches ranked first, got %v", sortedIDs(result.Records[:2]))
	}
}

func TestSearchGroupsCombineWithOuterCombinator(t *testing.T) {
	uc := NewSearchUseCase(testGraph(), slog.Default())
	result, err := uc.Search(context.Background(), domain.SearchRequest{
		Groups: []domain.ConditionGroup{
			{Conditions: []domain.SearchCondition{textCond("alpha")}, Combinator: domain.CombineAND},
			{Conditions: []domain.SearchCondition{textCond("beta")}, Combinator: domain.CombineAND},
		},
		GroupCombinator: domain.CombineAND,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ids := sortedIDs(result.Records)
	if len(ids) != 2 || ids[0] != "b1" || ids[1] != "b2" {
		t.Fatalf("group AND = %v, want [b1 b2]", ids)
	}
}

func TestSearchQueryStringFastPath(t *testing.T) {
	uc := NewSearchUseCase(testGraph(), slog.Default())
	result, err := uc.Search(context.Background(), domain.SearchRequest{Query: "alpha+beta"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ids := sortedIDs(result.Records)
	if len(ids) != 2 || ids[0] != "b1" || ids[1] != "b2" {
		t.Fatalf("query alpha+beta = %v, want [b1 b2]", ids)
	}
}

func TestSearchQueryStringFullParserForMixedOperators(t *testing.T) {
	uc := NewSearchUseCase(testGraph(), slog.Default())
	result, err := uc.Search(context.Background(), domain.SearchRequest{Query: "(gamma|delta)+alpha"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ids := sortedIDs(result.Records)
	if len(ids) != 2 || ids[0] != "b1" || ids[1] != "b3" {
		t.Fatalf("(gamma|delta)+alpha = %v, want [b1 b3]", ids)
	}
}

func TestSearchHierarchicalQuery(t *testing.T) {
	graph := testGraph()
	graph.children = map[string][]string{"b1": {"b4"}, "b4": {"b5"}}
	uc := NewSearchUseCase(graph, slog.Default())

	result, err := uc.Search(context.Background(), domain.SearchRequest{Query: "alpha => epsilon"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ids := sortedIDs(result.Records)
	// Only b1 reaches the epsilon block within the directional depth bound.
	if len(ids) != 1 || ids[0] != "b1" {
		t.Fatalf("alpha => epsilon = %v, want [b1]", ids)
	}
}

func TestSearchBackendFailurePropagatesForPrimarySearch(t *testing.T) {
	graph := testGraph()
	graph.failFor = "alpha"
	uc := NewSearchUseCase(graph, slog.Default())
	_, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{textCond("alpha")},
	})
	if !domain.IsKind(err, domain.ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}

type expanderFake struct {
	conds []domain.SearchCondition
	err   error
}

func (f *expanderFake) ExpandConditions(context.Context, []domain.SearchCondition, string) ([]domain.SearchCondition, error) {
	return f.conds, f.err
}

func TestSearchExpansionUnionsAsOrdinaryConditions(t *testing.T) {
	uc := NewSearchUseCaseWithOptions(testGraph(), SearchOptions{
		Expander: &expanderFake{conds: []domain.SearchCondition{textCond("epsilon")}},
	})
	result, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{textCond("gamma")},
		Expand:     true,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ids := sortedIDs(result.Records)
	if len(ids) != 2 || ids[0] != "b1" || ids[1] != "b5" {
		t.Fatalf("expanded search = %v, want [b1 b5]", ids)
	}
}

func TestSearchDegradesWhenExpanderUnavailable(t *testing.T) {
	expErr := domain.WrapError(domain.ErrTemporary, "expand conditions", fmt.Errorf("model down"))
	uc := NewSearchUseCaseWithOptions(testGraph(), SearchOptions{
		Expander: &expanderFake{err: expErr},
	})
	result, err := uc.Search(context.Background(), domain.SearchRequest{
		Conditions: []domain.SearchCondition{textCond("gamma")},
		Expand:     true,
	})
	if err != nil {
		t.Fatalf("Search() error = %v, want degraded success", err)
	}
	ids := sortedIDs(result.Records)
	if len(ids) != 1 || ids[0] != "b1" {
		t.Fatalf("degraded search = %v, want [b1]", ids)
	}
}

func TestExpandReturnsGeneratedConditions(t *testing.T) {
	uc := NewSearchUseCaseWithOptions(testGraph(), SearchOptions{
		Expander: &expanderFake{conds: []domain.SearchCondition{textCond("standup")}},
	})
	result, err := uc.Expand(context.Background(), domain.ExpandRequest{
		Conditions: []domain.SearchCondition{textCond("meeting")},
		Hint:       "work",
	})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if result.Total != 1 || len(result.Conditions) != 1 || result.Conditions[0].Text != "standup" {
		t.Fatalf("expansion = %+v", result)
	}
}

func TestExpandPropagatesExpanderErrors(t *testing.T) {
	expErr := domain.WrapError(domain.ErrTemporary, "expand conditions", fmt.Errorf("model down"))
	uc := NewSearchUseCaseWithOptions(testGraph(), SearchOptions{
		Expander: &expanderFake{err: expErr},
	})
	_, err := uc.Expand(context.Background(), domain.ExpandRequest{
		Conditions: []domain.SearchCondition{textCond("meeting")},
	})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("Expand() error = %v, want ErrTemporary", err)
	}

	uc = NewSearchUseCaseWithOptions(testGraph(), SearchOptions{})
	_, err = uc.Expand(context.Background(), domain.ExpandRequest{
		Conditions: []domain.SearchCondition{textCond("meeting")},
	})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("Expand() without expander error = %v, want ErrTemporary", err)
	}
}
