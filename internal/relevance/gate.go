package relevance

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"MedScanner/internal/domain"
)

// Policy selects which tiers run for a source.
type Policy string

const (
	// PolicyNone admits every article without checks.
	PolicyNone Policy = "none"
	// PolicyKeyword runs only the keyword tier.
	PolicyKeyword Policy = "keyword"
	// PolicyLLM runs only the model tier.
	PolicyLLM Policy = "llm"
	// PolicyKeywordLLM runs the keyword tier and asks the model only for keyword hits.
	PolicyKeywordLLM Policy = "keyword+llm"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyNone, PolicyKeyword, PolicyLLM, PolicyKeywordLLM:
		return p, nil
	default:
		return "", fmt.Errorf("unknown relevance policy %q", s)
	}
}

// DefaultPolicy returns the policy used for a scanner kind when none is configured.
// Preprint servers are filtered by keywords only to keep model costs down.
func DefaultPolicy(scanner string) Policy {
	switch strings.ToLower(scanner) {
	case "biorxiv", "medrxiv", "rxiv":
		return PolicyKeyword
	default:
		return PolicyLLM
	}
}

// Gate composes the keyword and model tiers.
type Gate struct {
	keywords *KeywordMatcher
	checker  *LLMChecker
	trusted  *regexp.Regexp
}

// NewGate builds a gate. trustedSources are matched as whole words against source names.
func NewGate(keywords *KeywordMatcher, checker *LLMChecker, trustedSources []string) *Gate {
	g := &Gate{keywords: keywords, checker: checker}
	var parts []string
	for _, s := range trustedSources {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, regexp.QuoteMeta(strings.ToLower(s)))
		}
	}
	if len(parts) > 0 {
		g.trusted = regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
	}
	return g
}

// Trusted reports whether the source is on the always-in-domain allow-list.
func (g *Gate) Trusted(source string) bool {
	return g.trusted != nil && g.trusted.MatchString(source)
}

// Decide runs the tiers selected by policy. The keyword tier is skipped for trusted sources.
// A model failure yields a not-relevant decision together with the error.
func (g *Gate) Decide(ctx context.Context, article domain.Article, policy Policy) (domain.RelevanceDecision, error) {
	useKeywords := policy == PolicyKeyword || policy == PolicyKeywordLLM
	useLLM := policy == PolicyLLM || policy == PolicyKeywordLLM

	if useKeywords && !g.Trusted(article.Source) {
		if !g.keywords.Match(article.Title + " " + article.Summary) {
			return domain.RelevanceDecision{}, nil
		}
	}

	if !useLLM {
		return domain.RelevanceDecision{Relevant: true}, nil
	}

	decision, err := g.checker.Check(ctx, article.Text())
	if err != nil {
		return domain.RelevanceDecision{}, err
	}
	return decision, nil
}
