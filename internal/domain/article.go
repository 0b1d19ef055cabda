package domain

import (
	"strings"
	"time"
)

// NoProjectSentinel marks a classification that matched none of the configured projects.
const NoProjectSentinel = "No News"

// Article is a candidate item fetched from a source. Two articles with the same URL
// are the same article regardless of the other fields.
type Article struct {
	Title       string
	Authors     []string
	Summary     string
	PublishedAt time.Time
	URL         string
	PDFURL      string
	Source      string
}

// Valid reports whether the article carries the fields the pipeline relies on.
func (a Article) Valid() bool {
	return strings.TrimSpace(a.URL) != "" && strings.TrimSpace(a.Title) != ""
}

// Text renders the article the way it is shown to the language model.
func (a Article) Text() string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(a.Title)
	if len(a.Authors) > 0 {
		b.WriteString("\nAuthors: ")
		b.WriteString(strings.Join(a.Authors, ", "))
	}
	b.WriteString("\nAbstract: ")
	b.WriteString(a.Summary)
	return b.String()
}

// RelevanceDecision is the outcome of the relevance gate for one article.
type RelevanceDecision struct {
	Relevant           bool
	ApplicationContext string
}

// ClassificationResult holds the validated labels produced for a relevant article.
type ClassificationResult struct {
	Title         string
	BulletSummary []string
	MainCategory  string
	Subcategory   string
	Projects      []string
	// OffTaxonomy is set when the category pair is not part of the configured taxonomy.
	OffTaxonomy bool
}

// ScoredArticle carries heuristic scores used to rank news-search results.
type ScoredArticle struct {
	Article
	RelevanceScore float64
	RecencyScore   float64
	CombinedScore  float64
}
