// Package ollama expands search conditions with semantically related terms
// through a local Ollama instance. Expansion is best effort: the search path
// treats its output as ordinary user conditions and survives without it.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

const maxExpansionTerms = 8

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(baseURL, model string, limiter *rate.Limiter) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    limiter,
	}
}

type Expander struct {
	client *Client
}

func NewExpander(client *Client) *Expander {
	return &Expander{client: client}
}

// ExpandConditions asks the model for related terms and returns them as
// contains-matched text conditions. Terms already present in the input are
// dropped so expansion never duplicates what the caller asked for.
func (e *Expander) ExpandConditions(ctx context.Context, conds []domain.SearchCondition, hint string) ([]domain.SearchCondition, error) {
	if len(conds) == 0 {
		return nil, nil
	}

	respText, err := e.client.generateJSON(ctx, buildExpansionPrompt(conds, hint))
	if err != nil {
		return nil, wrapTemporaryIfNeeded("expand conditions", err)
	}

	var parsed struct {
		Terms []string `json:"terms"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return nil, fmt.Errorf("parse expansion json: %w", err)
	}

	seen := make(map[string]bool, len(conds))
	for _, cond := range conds {
		seen[strings.ToLower(cond.Text)] = true
	}

	var out []domain.SearchCondition
	for _, term := range parsed.Terms {
		term = strings.TrimSpace(term)
		if term == "" || seen[strings.ToLower(term)] {
			continue
		}
		seen[strings.ToLower(term)] = true
		cond := domain.SearchCondition{
			Text:   term,
			Kind:   domain.TermText,
			Match:  domain.MatchContains,
			Weight: 1,
		}
		if cond.Validate() != nil {
			continue
		}
		out = append(out, cond)
		if len(out) >= maxExpansionTerms {
			break
		}
	}
	return out, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
