package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

// conditionMatcher compiles one condition into an in-memory predicate over
// node records. The predicate already honors Negate, so candidates filtered
// through it match the condition exactly as the backend would evaluate it.
func conditionMatcher(cond domain.SearchCondition) (func(domain.NodeRecord) bool, error) {
	var base func(domain.NodeRecord) bool

	switch cond.Kind {
	case domain.TermPageRef, domain.TermPageRefOr:
		title := cond.Text
		base = func(rec domain.NodeRecord) bool {
			return refersTo(rec, title) || strings.Contains(rec.Content, "[["+title+"]]")
		}
	case domain.TermBlockRef:
		id := cond.Text
		base = func(rec domain.NodeRecord) bool {
			return refersTo(rec, id) || strings.Contains(rec.Content, "(("+id+"))")
		}
	case domain.TermRegex:
		re, err := regexp.Compile(cond.Text)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "compile matcher", fmt.Errorf("invalid regex %q: %w", cond.Text, err))
		}
		base = func(rec domain.NodeRecord) bool {
			return re.MatchString(recordText(rec))
		}
	default:
		switch cond.Match {
		case domain.MatchExact:
			text := cond.Text
			base = func(rec domain.NodeRecord) bool {
				return strings.EqualFold(recordText(rec), text)
			}
		case domain.MatchRegex:
			re, err := regexp.Compile(cond.Text)
			if err != nil {
				return nil, domain.WrapError(domain.ErrInvalidInput, "compile matcher", fmt.Errorf("invalid regex %q: %w", cond.Text, err))
			}
			base = func(rec domain.NodeRecord) bool {
				return re.MatchString(recordText(rec))
			}
		default:
			needle := strings.ToLower(cond.Text)
			base = func(rec domain.NodeRecord) bool {
				return strings.Contains(strings.ToLower(recordText(rec)), needle)
			}
		}
	}

	if cond.Negate {
		return func(rec domain.NodeRecord) bool { return !base(rec) }, nil
	}
	return base, nil
}

func recordText(rec domain.NodeRecord) string {
	if rec.Kind == domain.KindPage {
		return rec.Title
	}
	return rec.Content
}

func refersTo(rec domain.NodeRecord, target string) bool {
	for _, ref := range rec.Refs {
		if strings.EqualFold(ref, target) {
			return true
		}
	}
	return false
}
