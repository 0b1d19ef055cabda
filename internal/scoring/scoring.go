// Package scoring ranks news-search results by topical relevance and recency so that
// only a bounded number of candidates reach classification.
package scoring

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"MedScanner/internal/domain"
)

// Step is one tier of the recency step function: articles no older than MaxAge score Score.
type Step struct {
	MaxAge time.Duration `yaml:"maxAge"`
	Score  float64       `yaml:"score"`
}

// Weights holds every tunable constant of the scorer.
type Weights struct {
	HighValue   float64 `yaml:"highValue"`
	MediumValue float64 `yaml:"mediumValue"`
	ComboBonus  float64 `yaml:"comboBonus"`
	Negative    float64 `yaml:"negative"`

	RecencySteps   []Step  `yaml:"recencySteps"`
	StaleRecency   float64 `yaml:"staleRecency"`
	UnknownRecency float64 `yaml:"unknownRecency"`

	RelevanceWeight float64 `yaml:"relevanceWeight"`
	RecencyWeight   float64 `yaml:"recencyWeight"`

	MinRelevance   float64 `yaml:"minRelevance"`
	FreshRelevance float64 `yaml:"freshRelevance"`
	FreshRecency   float64 `yaml:"freshRecency"`

	CrossDomainBelow float64 `yaml:"crossDomainBelow"`
	MaxResults       int     `yaml:"maxResults"`
}

// DefaultWeights returns the tuned production constants.
func DefaultWeights() Weights {
	return Weights{
		HighValue:   0.3,
		MediumValue: 0.1,
		ComboBonus:  0.4,
		Negative:    -0.5,
		RecencySteps: []Step{
			{MaxAge: 6 * time.Hour, Score: 1.0},
			{MaxAge: 24 * time.Hour, Score: 0.8},
			{MaxAge: 48 * time.Hour, Score: 0.6},
			{MaxAge: 72 * time.Hour, Score: 0.4},
		},
		StaleRecency:     0.2,
		UnknownRecency:   0.5,
		RelevanceWeight:  0.7,
		RecencyWeight:    0.3,
		MinRelevance:     0.2,
		FreshRelevance:   0.1,
		FreshRecency:     0.8,
		CrossDomainBelow: 0.6,
		MaxResults:       40,
	}
}

// Vocabulary lists the terms the relevance score looks for.
type Vocabulary struct {
	HighValue    []string `yaml:"highValue"`
	MediumValue  []string `yaml:"mediumValue"`
	Negative     []string `yaml:"negative"`
	AITerms      []string `yaml:"aiTerms"`
	MedicalTerms []string `yaml:"medicalTerms"`
}

// DefaultVocabulary returns the built-in news scoring vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		HighValue: []string{
			"medical ai", "clinical ai", "healthcare ai", "ai diagnosis", "ai treatment",
			"ai drug discovery", "ai clinical trial", "medical machine learning",
			"ai radiology", "ai pathology", "ai surgery", "clinical decision support",
			"ai electronic health", "medical imaging ai", "ai healthcare", "fda approval",
			"clinical validation", "ai medical device", "healthcare artificial intelligence",
			"medgemma", "medical breakthrough",
		},
		MediumValue: []string{
			"hospital", "patient", "doctor", "physician", "clinical", "medical",
			"healthcare", "diagnosis", "treatment", "pharmaceutical", "drug",
		},
		Negative: []string{
			"soccer", "football", "sports", "gaming", "entertainment", "movie",
			"celebrity", "fashion", "politics", "election", "war", "military",
		},
		AITerms:      []string{"ai", "artificial intelligence", "machine learning"},
		MedicalTerms: []string{"medical", "healthcare", "clinical", "patient", "hospital"},
	}
}

// terms matches each term at a word start. Suffixes are allowed so that "patient"
// also counts "patients"; whole terms are required when exact is set.
type terms []*regexp.Regexp

func compile(list []string, exact bool) terms {
	out := make(terms, 0, len(list))
	for _, term := range list {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		expr := `(?i)\b` + regexp.QuoteMeta(term)
		if exact {
			expr += `\b`
		}
		out = append(out, regexp.MustCompile(expr))
	}
	return out
}

// count returns how many distinct terms occur in text.
func (t terms) count(text string) int {
	n := 0
	for _, re := range t {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

func (t terms) any(text string) bool {
	for _, re := range t {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Ranker scores and caps news-search candidates.
type Ranker struct {
	weights Weights
	high    terms
	medium  terms
	penalty terms
	ai      terms
	medical terms
}

// NewRanker compiles the vocabulary. Zero-value weights fall back to DefaultWeights.
func NewRanker(w Weights, v Vocabulary) *Ranker {
	if len(w.RecencySteps) == 0 && w.RelevanceWeight == 0 && w.RecencyWeight == 0 {
		w = DefaultWeights()
	}
	return &Ranker{
		weights: w,
		high:    compile(v.HighValue, false),
		medium:  compile(v.MediumValue, false),
		penalty: compile(v.Negative, false),
		ai:      compile(v.AITerms, true),
		medical: compile(v.MedicalTerms, false),
	}
}

// Weights returns the active constants.
func (r *Ranker) Weights() Weights { return r.weights }

// RelevanceScore is the additive topical score of title and summary, clamped to [0,1].
func (r *Ranker) RelevanceScore(a domain.Article) float64 {
	text := a.Title + " " + a.Summary
	w := r.weights

	score := float64(r.high.count(text))*w.HighValue +
		float64(r.medium.count(text))*w.MediumValue +
		float64(r.penalty.count(text))*w.Negative
	if r.ai.any(text) && r.medical.any(text) {
		score += w.ComboBonus
	}
	return clamp(score)
}

// RecencyScore maps the article's age at now onto the step function. Tier bounds are
// inclusive. A zero PublishedAt scores UnknownRecency.
func (r *Ranker) RecencyScore(a domain.Article, now time.Time) float64 {
	if a.PublishedAt.IsZero() {
		return r.weights.UnknownRecency
	}
	age := now.Sub(a.PublishedAt)
	for _, step := range r.weights.RecencySteps {
		if age <= step.MaxAge {
			return step.Score
		}
	}
	return r.weights.StaleRecency
}

// Combined blends relevance and recency.
func (r *Ranker) Combined(relevance, recency float64) float64 {
	return r.weights.RelevanceWeight*relevance + r.weights.RecencyWeight*recency
}

// Eligible applies the inclusion threshold: enough relevance, or some relevance on fresh content.
func (r *Ranker) Eligible(relevance, recency float64) bool {
	w := r.weights
	return relevance >= w.MinRelevance || (relevance >= w.FreshRelevance && recency >= w.FreshRecency)
}

// CrossDomain flags a low combined score as outside the core domain.
func (r *Ranker) CrossDomain(combined float64) bool {
	return combined < r.weights.CrossDomainBelow
}

// Score computes all three scores for one article.
func (r *Ranker) Score(a domain.Article, now time.Time) domain.ScoredArticle {
	rel := r.RelevanceScore(a)
	rec := r.RecencyScore(a, now)
	return domain.ScoredArticle{
		Article:        a,
		RelevanceScore: rel,
		RecencyScore:   rec,
		CombinedScore:  r.Combined(rel, rec),
	}
}

// Rank deduplicates by URL keeping the first occurrence, drops ineligible articles,
// sorts by combined score descending (ties keep input order) and caps the result.
func (r *Ranker) Rank(articles []domain.Article, now time.Time) []domain.ScoredArticle {
	seen := make(map[string]struct{}, len(articles))
	scored := make([]domain.ScoredArticle, 0, len(articles))
	for _, a := range articles {
		if _, dup := seen[a.URL]; dup {
			continue
		}
		seen[a.URL] = struct{}{}

		s := r.Score(a, now)
		if !r.Eligible(s.RelevanceScore, s.RecencyScore) {
			continue
		}
		scored = append(scored, s)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].CombinedScore > scored[j].CombinedScore
	})

	if limit := r.weights.MaxResults; limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
