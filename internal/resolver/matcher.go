package resolver

import "strings"

// MatcherPolicy controls the last-resort name heuristic for target
// selection. GenericNames are loose fallback tokens that commonly appear in
// meeting titles; the exact membership is configuration, not contract.
type MatcherPolicy struct {
	GenericNames []string
}

// DefaultMatcherPolicy returns the built-in fallback token set.
func DefaultMatcherPolicy() MatcherPolicy {
	return MatcherPolicy{
		GenericNames: []string{"ミーティング", "打ち合わせ", "meeting", "mtg"},
	}
}

// MatchesSummary reports whether an event summary matches the intent's
// event name, or failing that, any of the generic fallback tokens.
// Matching is case-insensitive substring containment.
func (p MatcherPolicy) MatchesSummary(summary, eventName string) bool {
	if summary == "" {
		return false
	}
	lower := strings.ToLower(summary)

	if eventName != "" && strings.Contains(lower, strings.ToLower(eventName)) {
		return true
	}

	for _, token := range p.GenericNames {
		if strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}
