package ollama

import (
	"fmt"
	"strings"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

func buildExpansionPrompt(conds []domain.SearchCondition, hint string) string {
	var sb strings.Builder
	sb.WriteString("You expand note search queries with closely related terms.\n")
	sb.WriteString("Given the search terms below, suggest synonyms and tightly related phrases a note author might have used instead.\n")
	sb.WriteString("Respond with a JSON object of the form {\"terms\": [\"...\"]}. ")
	fmt.Fprintf(&sb, "Suggest at most %d terms. Do not repeat the input terms.\n\n", maxExpansionTerms)

	sb.WriteString("Search terms:\n")
	for _, cond := range conds {
		if cond.Negate || cond.Kind != domain.TermText {
			continue
		}
		fmt.Fprintf(&sb, "- %s\n", cond.Text)
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		fmt.Fprintf(&sb, "\nContext from the caller: %s\n", hint)
	}
	return sb.String()
}
