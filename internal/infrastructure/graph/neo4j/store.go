// Package neo4j implements the graph backend against a Neo4j database.
// Pages and blocks are nodes; HAS_CHILD edges carry document order and REFS
// edges carry cross-references.
package neo4j

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/notegraph/graphsearch/internal/core/domain"
	"github.com/notegraph/graphsearch/internal/infrastructure/resilience"
)

type Store struct {
	driver   neo4j.DriverWithContext
	database string
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(ctx context.Context, uri, user, password, database string, executor *resilience.Executor, logger *slog.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{driver: driver, database: database, executor: executor, logger: logger}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) SearchNodes(ctx context.Context, cond domain.SearchCondition, kind domain.NodeKind, limit int) ([]domain.NodeRecord, error) {
	query, params, err := buildSearchQuery(cond, kind, limit)
	if err != nil {
		return nil, err
	}
	records, err := s.run(ctx, "search_nodes", query, params)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "search nodes", err)
	}
	return records, nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*domain.NodeRecord, error) {
	const query = `
MATCH (n {uid: $id})
OPTIONAL MATCH (n)-[:ON_PAGE]->(p:Page)
OPTIONAL MATCH (n)-[:REFS]->(t)
RETURN n.uid AS id, labels(n) AS labels, n.content AS content, n.title AS title,
       p.uid AS pageId, p.title AS pageTitle,
       collect(coalesce(t.title, t.uid)) AS refs`
	records, err := s.run(ctx, "get_node", query, map[string]any{"id": id})
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "get node", err)
	}
	if len(records) == 0 {
		return nil, domain.WrapError(domain.ErrNodeNotFound, "get node", fmt.Errorf("no node with id %q", id))
	}
	return &records[0], nil
}

func (s *Store) GetChildren(ctx context.Context, id string) ([]domain.NodeRecord, error) {
	const query = `
MATCH (n {uid: $id})-[r:HAS_CHILD]->(c:Block)
OPTIONAL MATCH (c)-[:ON_PAGE]->(p:Page)
OPTIONAL MATCH (c)-[:REFS]->(t)
RETURN c.uid AS id, labels(c) AS labels, c.content AS content, c.title AS title,
       p.uid AS pageId, p.title AS pageTitle,
       collect(coalesce(t.title, t.uid)) AS refs, r.order AS ord
ORDER BY ord`
	records, err := s.run(ctx, "get_children", query, map[string]any{"id": id})
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "get children", err)
	}
	return records, nil
}

func (s *Store) GetParents(ctx context.Context, id string) ([]domain.NodeRecord, error) {
	const query = `
MATCH path = (n {uid: $id})<-[:HAS_CHILD*1..15]-(a)
OPTIONAL MATCH (a)-[:ON_PAGE]->(p:Page)
RETURN a.uid AS id, labels(a) AS labels, a.content AS content, a.title AS title,
       p.uid AS pageId, p.title AS pageTitle, [] AS refs, length(path) AS dist
ORDER BY dist`
	records, err := s.run(ctx, "get_parents", query, map[string]any{"id": id})
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "get parents", err)
	}
	return records, nil
}

func (s *Store) GetIncomingRefs(ctx context.Context, id string) ([]domain.NodeRecord, error) {
	const query = `
MATCH (src:Block)-[:REFS]->(n {uid: $id})
OPTIONAL MATCH (src)-[:ON_PAGE]->(p:Page)
RETURN src.uid AS id, labels(src) AS labels, src.content AS content, src.title AS title,
       p.uid AS pageId, p.title AS pageTitle, [] AS refs`
	records, err := s.run(ctx, "get_incoming_refs", query, map[string]any{"id": id})
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "get incoming refs", err)
	}
	return records, nil
}

func (s *Store) ResolveRef(ctx context.Context, ref string) (*domain.NodeRecord, error) {
	const query = `
MATCH (n)
WHERE n.uid = $ref OR n.title = $ref
OPTIONAL MATCH (n)-[:ON_PAGE]->(p:Page)
RETURN n.uid AS id, labels(n) AS labels, n.content AS content, n.title AS title,
       p.uid AS pageId, p.title AS pageTitle, [] AS refs
LIMIT 1`
	records, err := s.run(ctx, "resolve_ref", query, map[string]any{"ref": ref})
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "resolve ref", err)
	}
	if len(records) == 0 {
		return nil, domain.WrapError(domain.ErrNodeNotFound, "resolve ref", fmt.Errorf("no node for reference %q", ref))
	}
	return &records[0], nil
}

func (s *Store) run(ctx context.Context, operation, query string, params map[string]any) ([]domain.NodeRecord, error) {
	var out []domain.NodeRecord
	execute := func(ctx context.Context) error {
		result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database),
			neo4j.ExecuteQueryWithReadersRouting(),
		)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, record := range result.Records {
			out = append(out, mapRecord(record.AsMap()))
		}
		return nil
	}

	var err error
	if s.executor == nil {
		err = execute(ctx)
	} else {
		err = s.executor.Execute(ctx, operation, execute, classifyNeo4jError)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func mapRecord(values map[string]any) domain.NodeRecord {
	rec := domain.NodeRecord{
		ID:        stringValue(values["id"]),
		Content:   stringValue(values["content"]),
		Title:     stringValue(values["title"]),
		PageID:    stringValue(values["pageId"]),
		PageTitle: stringValue(values["pageTitle"]),
	}
	rec.Kind = kindFromLabels(values["labels"])
	if refs, ok := values["refs"].([]any); ok {
		for _, ref := range refs {
			if str := stringValue(ref); str != "" {
				rec.Refs = append(rec.Refs, str)
			}
		}
	}
	return rec
}

// kindFromLabels sets the discriminant from node labels at construction
// time; nothing downstream ever guesses from populated fields.
func kindFromLabels(value any) domain.NodeKind {
	labels, ok := value.([]any)
	if !ok {
		return domain.KindBlock
	}
	for _, label := range labels {
		if stringValue(label) == "Page" {
			return domain.KindPage
		}
	}
	return domain.KindBlock
}

func stringValue(value any) string {
	str, _ := value.(string)
	return str
}
