package relevance

import (
	"regexp"
	"sort"
	"strings"
)

// KeywordMatcher matches a fixed vocabulary as whole words, ignoring case.
type KeywordMatcher struct {
	expr *regexp.Regexp
}

// NewKeywordMatcher compiles the vocabulary. An empty vocabulary matches nothing.
func NewKeywordMatcher(terms []string) *KeywordMatcher {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(term)))
	}
	if len(quoted) == 0 {
		return &KeywordMatcher{}
	}
	// Longest alternatives first so multi-word terms win over their prefixes.
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return &KeywordMatcher{expr: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

// Match reports whether any term occurs in text.
func (k *KeywordMatcher) Match(text string) bool {
	if k == nil || k.expr == nil {
		return false
	}
	return k.expr.MatchString(text)
}

// Matches returns the distinct terms found in text, lowercased, in order of appearance.
func (k *KeywordMatcher) Matches(text string) []string {
	if k == nil || k.expr == nil {
		return nil
	}
	var out []string
	seen := map[string]struct{}{}
	for _, m := range k.expr.FindAllString(text, -1) {
		m = strings.ToLower(m)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
