package neo4j

import (
	"fmt"
	"strings"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

// buildSearchQuery translates one search condition into a Cypher query plus
// its parameter map. Text is matched case-insensitively except in regex
// mode, where the pattern reaches the server untouched.
func buildSearchQuery(cond domain.SearchCondition, kind domain.NodeKind, limit int) (string, map[string]any, error) {
	params := map[string]any{"text": cond.Text, "limit": limit}

	alias := "b"
	if kind == domain.KindPage {
		alias = "p"
	}

	var predicate string
	switch cond.Kind {
	case domain.TermPageRef, domain.TermPageRefOr:
		predicate = fmt.Sprintf(`EXISTS { MATCH (%s)-[:REFS]->(rp:Page) WHERE toLower(rp.title) = toLower($text) }`, alias)
	case domain.TermBlockRef:
		predicate = fmt.Sprintf(`EXISTS { MATCH (%s)-[:REFS]->(rb:Block) WHERE rb.uid = $text }`, alias)
	default:
		field := "b.content"
		if kind == domain.KindPage {
			field = "p.title"
		}
		switch cond.Match {
		case domain.MatchExact:
			predicate = fmt.Sprintf(`toLower(%s) = toLower($text)`, field)
		case domain.MatchContains:
			predicate = fmt.Sprintf(`toLower(%s) CONTAINS toLower($text)`, field)
		case domain.MatchRegex:
			predicate = fmt.Sprintf(`%s =~ $text`, field)
		default:
			return "", nil, domain.WrapError(domain.ErrInvalidInput, "build search query",
				fmt.Errorf("unsupported match mode %q", cond.Match))
		}
	}
	if cond.Negate {
		predicate = "NOT (" + predicate + ")"
	}

	var query strings.Builder
	if kind == domain.KindPage {
		query.WriteString("MATCH (p:Page)\n")
		query.WriteString("WHERE " + predicate + "\n")
		query.WriteString("RETURN p.uid AS id, labels(p) AS labels, '' AS content, p.title AS title,\n")
		query.WriteString("       '' AS pageId, '' AS pageTitle, [] AS refs\n")
	} else {
		query.WriteString("MATCH (b:Block)-[:ON_PAGE]->(p:Page)\n")
		query.WriteString("WHERE " + predicate + "\n")
		query.WriteString("OPTIONAL MATCH (b)-[:REFS]->(t)\n")
		query.WriteString("WITH b, p, collect(coalesce(t.title, t.uid)) AS refs\n")
		query.WriteString("RETURN b.uid AS id, labels(b) AS labels, b.content AS content, '' AS title,\n")
		query.WriteString("       p.uid AS pageId, p.title AS pageTitle, refs\n")
	}
	query.WriteString("LIMIT $limit")

	return query.String(), params, nil
}
