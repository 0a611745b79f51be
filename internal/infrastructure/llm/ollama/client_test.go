package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

func TestExpandConditionsParsesTerms(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":"{\"terms\":[\"task\",\"todo\",\"  \",\"meeting\"]}"}`))
	}))
	defer server.Close()

	expander := NewExpander(New(server.URL, "gen", rate.NewLimiter(rate.Inf, 1)))
	conds := []domain.SearchCondition{
		{Text: "meeting", Kind: domain.TermText, Match: domain.MatchContains},
	}
	expanded, err := expander.ExpandConditions(context.Background(), conds, "weekly planning")
	if err != nil {
		t.Fatalf("ExpandConditions() error = %v", err)
	}
	if len(expanded) != 2 {
		t.Fatalf("expanded = %+v, want task and todo only", expanded)
	}
	for i, want := range []string{"task", "todo"} {
		if expanded[i].Text != want {
			t.Fatalf("expanded[%d].Text = %q, want %q", i, expanded[i].Text, want)
		}
		if expanded[i].Match != domain.MatchContains || expanded[i].Kind != domain.TermText {
			t.Fatalf("expanded[%d] = %+v, want contains-matched text condition", i, expanded[i])
		}
	}
	if !strings.Contains(capturedPrompt, "meeting") || !strings.Contains(capturedPrompt, "weekly planning") {
		t.Fatalf("prompt missing inputs: %s", capturedPrompt)
	}
}

func TestExpandConditionsSkipsEmptyInput(t *testing.T) {
	expander := NewExpander(New("http://unused", "gen", nil))
	expanded, err := expander.ExpandConditions(context.Background(), nil, "")
	if err != nil || expanded != nil {
		t.Fatalf("ExpandConditions() = %v, %v, want nil, nil", expanded, err)
	}
}

func TestExpandConditionsMarksServerErrorsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	expander := NewExpander(New(server.URL, "gen", nil))
	conds := []domain.SearchCondition{{Text: "x", Kind: domain.TermText, Match: domain.MatchContains}}
	_, err := expander.ExpandConditions(context.Background(), conds, "")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("error = %v, want temporary", err)
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestExpandConditionsSurfacesMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"not json at all"}`))
	}))
	defer server.Close()

	expander := NewExpander(New(server.URL, "gen", nil))
	conds := []domain.SearchCondition{{Text: "x", Kind: domain.TermText, Match: domain.MatchContains}}
	_, err := expander.ExpandConditions(context.Background(), conds, "")
	if err == nil || !strings.Contains(err.Error(), "parse expansion json") {
		t.Fatalf("error = %v, want parse failure", err)
	}
}

func TestExtractJSONObjectTrimsSurroundingText(t *testing.T) {
	raw := "Sure! Here you go: {\"terms\":[\"a\"]} hope that helps"
	if got := extractJSONObject(raw); got != `{"terms":["a"]}` {
		t.Fatalf("extractJSONObject() = %q", got)
	}
}
