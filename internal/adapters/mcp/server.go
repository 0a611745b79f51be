// Package mcpadapter exposes the search engine as MCP tools over stdio so
// editor agents and assistants can drive it without the HTTP API.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/notegraph/graphsearch/internal/core/domain"
	"github.com/notegraph/graphsearch/internal/core/ports"
)

type Server struct {
	searcher  ports.BlockSearcher
	combiner  ports.ResultCombiner
	hierarchy ports.HierarchyService
	logger    *slog.Logger
}

func NewServer(
	searcher ports.BlockSearcher,
	combiner ports.ResultCombiner,
	hierarchy ports.HierarchyService,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		searcher:  searcher,
		combiner:  combiner,
		hierarchy: hierarchy,
		logger:    logger,
	}
}

// Build assembles the MCP server with all tools registered.
func (s *Server) Build(version string) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"graphsearch",
		version,
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_blocks",
		mcp.WithDescription("Search pages and blocks with a query expression or an explicit condition list"),
		mcp.WithString("query",
			mcp.Description("Search expression, e.g. \"project+deadline\" or \"goals => milestone\""),
		),
		mcp.WithArray("conditions",
			mcp.Description("Explicit search conditions; each item mirrors the JSON API condition object"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithString("combinator",
			mcp.Description("How explicit conditions combine: AND or OR"),
		),
		mcp.WithString("kind",
			mcp.Description("Target node kind: block (default) or page"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results"),
		),
		mcp.WithBoolean("expand",
			mcp.Description("Add semantically related terms before searching"),
		),
		mcp.WithString("expandHint",
			mcp.Description("Free-text context for semantic expansion"),
		),
		mcp.WithBoolean("store",
			mcp.Description("Persist the result set and return its identifier for later combination"),
		),
	)
	mcpServer.AddTool(searchTool, mcp.NewTypedToolHandler(s.handleSearch))

	combineTool := mcp.NewTool("combine_results",
		mcp.WithDescription("Combine stored result sets with a set operation"),
		mcp.WithArray("resultIds",
			mcp.Required(),
			mcp.Description("Identifiers of stored results to combine, in order"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("union, intersection, difference or symmetric_difference"),
		),
		mcp.WithString("orderBy",
			mcp.Description("first_appearance (default), alphabetical, frequency or reverse_frequency"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Truncate the combined list after statistics are computed"),
		),
		mcp.WithBoolean("includeSources",
			mcp.Description("Attach per-identifier source set names"),
		),
	)
	mcpServer.AddTool(combineTool, mcp.NewTypedToolHandler(s.handleCombine))

	hierarchyTool := mcp.NewTool("get_hierarchy",
		mcp.WithDescription("Build and render the block tree under a block, optionally with its ancestor context"),
		mcp.WithString("blockId",
			mcp.Required(),
			mcp.Description("Identifier of the root block"),
		),
		mcp.WithNumber("maxDepth",
			mcp.Description("Descendant depth bound; reaching it truncates quietly"),
		),
		mcp.WithBoolean("includeParents",
			mcp.Description("Prepend the ancestor chain as context"),
		),
		mcp.WithString("bullet",
			mcp.Description("Rendering bullet style: dash (default), bullet, number or none"),
		),
		mcp.WithString("links",
			mcp.Description("Link rendering: plain (default), markdown or source"),
		),
	)
	mcpServer.AddTool(hierarchyTool, mcp.NewTypedToolHandler(s.handleHierarchy))

	return mcpServer
}

// Serve runs the stdio transport until the client disconnects.
func (s *Server) Serve(version string) error {
	return server.ServeStdio(s.Build(version))
}

type searchArgs struct {
	Query      string                   `json:"query"`
	Conditions []domain.SearchCondition `json:"conditions"`
	Combinator string                   `json:"combinator"`
	Kind       string                   `json:"kind"`
	Limit      int                      `json:"limit"`
	Expand     bool                     `json:"expand"`
	ExpandHint string                   `json:"expandHint"`
	Store      bool                     `json:"store"`
}

func (s *Server) handleSearch(ctx context.Context, _ mcp.CallToolRequest, args searchArgs) (*mcp.CallToolResult, error) {
	req := domain.SearchRequest{
		Query:      args.Query,
		Conditions: args.Conditions,
		Combinator: domain.Combinator(args.Combinator),
		Kind:       domain.NodeKind(args.Kind),
		Limit:      args.Limit,
		Expand:     args.Expand,
		ExpandHint: args.ExpandHint,
		Store:      args.Store,
	}
	result, err := s.searcher.Search(ctx, req)
	if err != nil {
		return toolError("search_blocks", err), nil
	}
	return toolResult(result)
}

type combineArgs struct {
	ResultIDs      []string `json:"resultIds"`
	Operation      string   `json:"operation"`
	OrderBy        string   `json:"orderBy"`
	Limit          int      `json:"limit"`
	IncludeSources bool     `json:"includeSources"`
}

func (s *Server) handleCombine(ctx context.Context, _ mcp.CallToolRequest, args combineArgs) (*mcp.CallToolResult, error) {
	req := domain.CombineRequest{
		ResultIDs: args.ResultIDs,
		Operation: domain.SetOperation(args.Operation),
		Options: domain.CombineOptions{
			OrderBy:        domain.OrderPolicy(args.OrderBy),
			Limit:          args.Limit,
			IncludeSources: args.IncludeSources,
		},
	}
	result, err := s.combiner.Combine(ctx, req)
	if err != nil {
		return toolError("combine_results", err), nil
	}
	return toolResult(result)
}

type hierarchyArgs struct {
	BlockID        string `json:"blockId"`
	MaxDepth       int    `json:"maxDepth"`
	IncludeParents bool   `json:"includeParents"`
	Bullet         string `json:"bullet"`
	Links          string `json:"links"`
}

func (s *Server) handleHierarchy(ctx context.Context, _ mcp.CallToolRequest, args hierarchyArgs) (*mcp.CallToolResult, error) {
	if args.BlockID == "" {
		return mcp.NewToolResultError("blockId is required"), nil
	}
	opts := domain.HierarchyOptions{
		MaxDepth:          args.MaxDepth,
		IncludeParents:    args.IncludeParents,
		IncludeChildren:   true,
		MaxReferenceDepth: 1,
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 8
	}
	render := domain.RenderOptions{
		IndentSize: 2,
		Bullet:     domain.BulletDash,
		Links:      domain.LinkPlain,
	}
	if args.Bullet != "" {
		render.Bullet = domain.BulletStyle(args.Bullet)
	}
	if args.Links != "" {
		render.Links = domain.LinkFormat(args.Links)
	}

	hierarchy, err := s.hierarchy.Build(ctx, args.BlockID, opts, render)
	if err != nil {
		return toolError("get_hierarchy", err), nil
	}
	return toolResult(hierarchy)
}

func toolResult(payload any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func toolError(tool string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", tool, err))
}
