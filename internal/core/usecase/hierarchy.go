package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/notegraph/graphsearch/internal/core/domain"
	"github.com/notegraph/graphsearch/internal/core/ports"
)

// The two reference syntaxes recognized in block content.
var (
	pageRefPattern  = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	blockRefPattern = regexp.MustCompile(`\(\(([^()]+)\)\)`)
)

const refSnippetLength = 120

// HierarchyUseCase assembles parent/child trees around a root node, resolves
// inline cross-references and renders the tree as text.
type HierarchyUseCase struct {
	graph    ports.GraphStore
	progress ports.ProgressSink
	logger   *slog.Logger
}

func NewHierarchyUseCase(graph ports.GraphStore, progress ports.ProgressSink, logger *slog.Logger) *HierarchyUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &HierarchyUseCase{graph: graph, progress: progress, logger: logger}
}

func (uc *HierarchyUseCase) Build(ctx context.Context, rootID string, opts domain.HierarchyOptions, render domain.RenderOptions) (*domain.Hierarchy, error) {
	if rootID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build hierarchy", fmt.Errorf("root id is empty"))
	}

	rootRec, err := uc.graph.GetNode(ctx, rootID)
	if err != nil {
		return nil, err
	}

	truncated := false
	root := uc.toBlockNode(*rootRec, 0, opts.TruncateLength, &truncated)

	if opts.IncludeChildren {
		children, err := uc.buildChildren(ctx, rootID, 1, opts, &truncated)
		if err != nil {
			return nil, err
		}
		root.Children = children
	}

	nodes := make([]domain.BlockNode, 0, 4)
	if opts.IncludeParents {
		// Parent inclusion only applies at the root call. Injected parents
		// carry negative levels and the context marker so they can be told
		// apart from the real subtree.
		parents, err := uc.graph.GetParents(ctx, rootID)
		if err != nil {
			uc.logger.Warn("parent lookup failed, continuing without parents", "node", rootID, "error", err)
		} else {
			for i := len(parents) - 1; i >= 0; i-- {
				parent := uc.toBlockNode(parents[i], -(i + 1), opts.TruncateLength, &truncated)
				parent.ContextParent = true
				nodes = append(nodes, parent)
			}
		}
	}
	nodes = append(nodes, root)

	if opts.MaxReferenceDepth > 0 {
		uc.resolveReferences(ctx, nodes, opts.MaxReferenceDepth)
	}

	stats := computeStats(nodes)
	stats.Truncated = truncated

	uc.publishStage(ctx, "hierarchy", stats.TotalBlocks)

	return &domain.Hierarchy{
		RootID:   rootID,
		Nodes:    nodes,
		Rendered: RenderHierarchy(nodes, render),
		Stats:    stats,
	}, nil
}

// buildChildren descends one level at a time; reaching the depth bound is a
// normal leaf case, never an error.
func (uc *HierarchyUseCase) buildChildren(ctx context.Context, id string, level int, opts domain.HierarchyOptions, truncated *bool) ([]domain.BlockNode, error) {
	if level >= opts.MaxDepth {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "hierarchy build cancelled", err)
	}

	records, err := uc.graph.GetChildren(ctx, id)
	if err != nil {
		// One failed lookup must not abort the whole build.
		uc.logger.Warn("child lookup failed, skipping subtree", "node", id, "error", err)
		return nil, nil
	}

	children := make([]domain.BlockNode, 0, len(records))
	for _, rec := range records {
		child := uc.toBlockNode(rec, level, opts.TruncateLength, truncated)
		child.Children, err = uc.buildChildren(ctx, rec.ID, level+1, opts, truncated)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func (uc *HierarchyUseCase) toBlockNode(rec domain.NodeRecord, level int, truncateLength int, truncated *bool) domain.BlockNode {
	content := rec.Content
	if rec.Kind == domain.KindPage && content == "" {
		content = rec.Title
	}
	if truncateLength > 0 {
		if cut, ok := truncateRunes(content, truncateLength); ok {
			content = cut + "..."
			*truncated = true
		}
	}
	return domain.BlockNode{
		ID:         rec.ID,
		Content:    content,
		Level:      level,
		PageTitle:  rec.PageTitle,
		PageID:     rec.PageID,
		References: ExtractReferences(content),
	}
}

// truncateRunes cuts s after n runes so a multi-byte sequence is never
// split. ok reports whether anything was cut.
func truncateRunes(s string, n int) (string, bool) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}

// resolveReferences is a second pass over the built tree, bounded by its own
// depth so reference cycles cannot drive unbounded traversal. Resolved
// snippets are appended to node content; the tree structure never grows.
func (uc *HierarchyUseCase) resolveReferences(ctx context.Context, nodes []domain.BlockNode, maxRefDepth int) {
	for pass := 0; pass < maxRefDepth; pass++ {
		changed := false
		for i := range nodes {
			if uc.resolveNodeReferences(ctx, &nodes[i]) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (uc *HierarchyUseCase) resolveNodeReferences(ctx context.Context, node *domain.BlockNode) bool {
	changed := false
	for _, ref := range ExtractReferences(node.Content) {
		marker := "[ref:" + ref + "]"
		if strings.Contains(node.Content, marker) {
			continue
		}
		rec, err := uc.graph.ResolveRef(ctx, ref)
		if err != nil {
			uc.logger.Debug("reference resolution failed, skipping", "ref", ref, "error", err)
			continue
		}
		snippet := rec.Content
		if snippet == "" {
			snippet = rec.Title
		}
		if cut, ok := truncateRunes(snippet, refSnippetLength); ok {
			snippet = cut + "..."
		}
		node.Content = node.Content + "\n" + marker + " " + snippet
		changed = true
	}
	for i := range node.Children {
		if uc.resolveNodeReferences(ctx, &node.Children[i]) {
			changed = true
		}
	}
	return changed
}

func (uc *HierarchyUseCase) publishStage(ctx context.Context, stage string, total int) {
	if uc.progress == nil {
		return
	}
	event := domain.ProgressEvent{Stage: stage, Current: total, Total: total}
	if err := uc.progress.Publish(ctx, event); err != nil {
		uc.logger.Warn("publish progress failed", "stage", stage, "error", err)
	}
}

// ExtractReferences returns page titles and block identifiers mentioned
// inline, as opaque strings. References are never materialized as child
// links, which keeps the tree acyclic.
func ExtractReferences(content string) []string {
	var refs []string
	for _, match := range pageRefPattern.FindAllStringSubmatch(content, -1) {
		refs = append(refs, match[1])
	}
	for _, match := range blockRefPattern.FindAllStringSubmatch(content, -1) {
		refs = append(refs, match[1])
	}
	return refs
}

// RenderHierarchy serializes the tree deterministically: indentation per
// level, a bullet style and a link-format transform over the two reference
// syntaxes.
func RenderHierarchy(nodes []domain.BlockNode, opts domain.RenderOptions) string {
	indent := opts.IndentSize
	if indent <= 0 {
		indent = 2
	}
	var sb strings.Builder
	for i, node := range nodes {
		if opts.Bullet == domain.BulletNumber {
			renderNumbered(&sb, node, 0, indent, i+1, opts)
		} else {
			renderNode(&sb, node, 0, indent, opts)
		}
	}
	return sb.String()
}

func renderNode(sb *strings.Builder, node domain.BlockNode, depth, indent int, opts domain.RenderOptions) {
	sb.WriteString(strings.Repeat(" ", depth*indent))
	switch opts.Bullet {
	case domain.BulletDash:
		sb.WriteString("- ")
	case domain.BulletDot:
		sb.WriteString("• ")
	case domain.BulletNone:
	default:
		sb.WriteString("- ")
	}
	sb.WriteString(transformLinks(strings.ReplaceAll(node.Content, "\n", " "), opts.Links))
	sb.WriteString("\n")
	for _, child := range node.Children {
		renderNode(sb, child, depth+1, indent, opts)
	}
}

func renderNumbered(sb *strings.Builder, node domain.BlockNode, depth, indent, ordinal int, opts domain.RenderOptions) {
	sb.WriteString(strings.Repeat(" ", depth*indent))
	fmt.Fprintf(sb, "%d. ", ordinal)
	sb.WriteString(transformLinks(strings.ReplaceAll(node.Content, "\n", " "), opts.Links))
	sb.WriteString("\n")
	for i, child := range node.Children {
		renderNumbered(sb, child, depth+1, indent, i+1, opts)
	}
}

func transformLinks(content string, format domain.LinkFormat) string {
	switch format {
	case domain.LinkMarkdown:
		content = pageRefPattern.ReplaceAllString(content, "[$1]($1)")
		content = blockRefPattern.ReplaceAllString(content, "[$1]($1)")
	case domain.LinkPlain:
		content = pageRefPattern.ReplaceAllString(content, "$1")
		content = blockRefPattern.ReplaceAllString(content, "$1")
	default:
		// source: leave the raw syntax untouched.
	}
	return content
}

// computeStats walks the whole tree independent of rendering. Injected
// context parents do not count toward the block totals.
func computeStats(nodes []domain.BlockNode) domain.HierarchyStats {
	var stats domain.HierarchyStats
	var walk func(node domain.BlockNode)
	walk = func(node domain.BlockNode) {
		if !node.ContextParent {
			stats.TotalBlocks++
			stats.TotalCharacters += len(node.Content)
			if node.Level > stats.MaxDepth {
				stats.MaxDepth = node.Level
			}
		}
		for _, child := range node.Children {
			walk(child)
		}
	}
	for _, node := range nodes {
		walk(node)
	}
	return stats
}
