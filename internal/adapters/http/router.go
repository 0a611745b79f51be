// Package httpadapter exposes the search engine over a small JSON API.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/notegraph/graphsearch/internal/core/domain"
	"github.com/notegraph/graphsearch/internal/core/ports"
	"github.com/notegraph/graphsearch/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	searcher  ports.BlockSearcher
	combiner  ports.ResultCombiner
	hierarchy ports.HierarchyService
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
}

func NewRouter(
	searcher ports.BlockSearcher,
	combiner ports.ResultCombiner,
	hierarchy ports.HierarchyService,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		searcher:  searcher,
		combiner:  combiner,
		hierarchy: hierarchy,
		metrics:   m,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/search/expand", rt.expand)
	mux.HandleFunc("/v1/results/combine", rt.combine)
	mux.HandleFunc("/v1/hierarchy/", rt.getHierarchy)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	result, err := rt.searcher.Search(r.Context(), req)
	if rt.metrics != nil {
		count := 0
		if result != nil {
			count = len(result.Records)
		}
		rt.metrics.RecordSearch(serviceName, searchMode(req), count, time.Since(start), err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) expand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.ExpandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.searcher.Expand(r.Context(), req)
	if rt.metrics != nil {
		rt.metrics.RecordExpansion(serviceName, err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) combine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.CombineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.combiner.Combine(r.Context(), req)
	if rt.metrics != nil {
		rt.metrics.RecordCombine(serviceName, string(req.Operation), err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getHierarchy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/hierarchy/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "block id is required"})
		return
	}

	opts, render, err := hierarchyParamsFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	hierarchy, err := rt.hierarchy.Build(r.Context(), id, opts, render)
	if rt.metrics != nil {
		count := 0
		if hierarchy != nil {
			count = hierarchy.Stats.TotalBlocks
		}
		rt.metrics.RecordHierarchyBuild(serviceName, count, err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hierarchy)
}

func hierarchyParamsFromQuery(r *http.Request) (domain.HierarchyOptions, domain.RenderOptions, error) {
	opts := domain.HierarchyOptions{
		MaxDepth:          8,
		IncludeChildren:   true,
		MaxReferenceDepth: 1,
	}
	render := domain.RenderOptions{
		IndentSize: 2,
		Bullet:     domain.BulletDash,
		Links:      domain.LinkPlain,
	}

	query := r.URL.Query()
	for name, target := range map[string]*int{
		"maxDepth":          &opts.MaxDepth,
		"truncateLength":    &opts.TruncateLength,
		"maxReferenceDepth": &opts.MaxReferenceDepth,
		"indentSize":        &render.IndentSize,
	} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return opts, render, domain.WrapError(domain.ErrInvalidInput, "parse hierarchy params",
				strconvError(name, raw))
		}
		*target = value
	}
	if raw := query.Get("includeParents"); raw != "" {
		opts.IncludeParents = raw == "true" || raw == "1"
	}
	if raw := query.Get("includeChildren"); raw != "" {
		opts.IncludeChildren = raw == "true" || raw == "1"
	}
	if raw := query.Get("bullet"); raw != "" {
		render.Bullet = domain.BulletStyle(raw)
	}
	if raw := query.Get("links"); raw != "" {
		render.Links = domain.LinkFormat(raw)
	}
	return opts, render, nil
}

func strconvError(name, raw string) error {
	return &paramError{name: name, raw: raw}
}

type paramError struct {
	name string
	raw  string
}

func (e *paramError) Error() string {
	return "query parameter " + e.name + " has invalid value " + strconv.Quote(e.raw)
}

func searchMode(req domain.SearchRequest) string {
	switch {
	case len(req.Groups) > 0:
		return "groups"
	case len(req.Conditions) > 0:
		return "conditions"
	default:
		return "query"
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
