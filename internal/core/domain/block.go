package domain

// BlockNode is one element of an assembled hierarchy tree. Children are
// owned, not shared: cross-references stay opaque identifiers in References,
// which keeps the tree strictly acyclic even though the underlying graph is
// not.
type BlockNode struct {
	ID            string      `json:"id"`
	Content       string      `json:"content"`
	Level         int         `json:"level"`
	Children      []BlockNode `json:"children,omitempty"`
	PageTitle     string      `json:"pageTitle,omitempty"`
	PageID        string      `json:"pageId,omitempty"`
	References    []string    `json:"references,omitempty"`
	ContextParent bool        `json:"contextParent,omitempty"`
}

// HierarchyOptions bound a tree build. MaxDepth is a normal leaf condition,
// not an error; MaxReferenceDepth bounds the reference-resolution pass
// separately so reference cycles cannot drive unbounded traversal.
type HierarchyOptions struct {
	MaxDepth          int  `json:"maxDepth"`
	IncludeParents    bool `json:"includeParents"`
	IncludeChildren   bool `json:"includeChildren"`
	TruncateLength    int  `json:"truncateLength"`
	MaxReferenceDepth int  `json:"maxReferenceDepth"`
}

type BulletStyle string

const (
	BulletDash   BulletStyle = "dash"
	BulletDot    BulletStyle = "bullet"
	BulletNumber BulletStyle = "number"
	BulletNone   BulletStyle = "none"
)

type LinkFormat string

const (
	LinkMarkdown LinkFormat = "markdown"
	LinkPlain    LinkFormat = "plain"
	LinkSource   LinkFormat = "source"
)

type RenderOptions struct {
	IndentSize int         `json:"indentSize"`
	Bullet     BulletStyle `json:"bullet"`
	Links      LinkFormat  `json:"links"`
}

// HierarchyStats is computed by a full tree walk independent of rendering.
// Injected context parents are excluded from the block counts.
type HierarchyStats struct {
	TotalBlocks     int  `json:"totalBlocks"`
	MaxDepth        int  `json:"maxDepth"`
	TotalCharacters int  `json:"totalCharacters"`
	Truncated       bool `json:"truncated"`
}

// Hierarchy is the full result of a build: the tree, its rendering and the
// stats walk.
type Hierarchy struct {
	RootID   string         `json:"rootId"`
	Nodes    []BlockNode    `json:"nodes"`
	Rendered string         `json:"rendered,omitempty"`
	Stats    HierarchyStats `json:"stats"`
}

// ProgressEvent is emitted through the caller-supplied sink during long
// operations. The core never reports progress through ambient global state.
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}
