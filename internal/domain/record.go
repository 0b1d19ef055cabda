package domain

import (
	"strings"
	"time"
)

// RecordHeader lists the persisted columns in storage order.
var RecordHeader = []string{
	"Source", "Main Category", "Subcategory", "Title", "Summary",
	"URL", "Scraped At", "Cross-domain", "Application Context", "Project",
}

// URLColumn is the zero-based index of the URL column in RecordHeader.
const URLColumn = 5

// Marker categories label rows that only record a URL as seen. They keep articles that were
// rejected or failed classification out of later runs and never reach a digest.
const (
	MarkerNotRelevant  = "Non-relevant"
	MarkerUnclassified = "Unclassified"
)

// Record is one persisted row per processed article: a classified article or a seen marker.
type Record struct {
	Source             string
	MainCategory       string
	Subcategory        string
	Title              string
	BulletSummary      []string
	URL                string
	IngestedAt         time.Time
	CrossDomain        bool
	ApplicationContext string
	Projects           []string
}

// NewRecord joins an article with its classification.
func NewRecord(article Article, result ClassificationResult, decision RelevanceDecision, crossDomain bool, now time.Time) Record {
	return Record{
		Source:             article.Source,
		MainCategory:       result.MainCategory,
		Subcategory:        result.Subcategory,
		Title:              article.Title,
		BulletSummary:      result.BulletSummary,
		URL:                article.URL,
		IngestedAt:         now.UTC().Truncate(time.Second),
		CrossDomain:        crossDomain,
		ApplicationContext: decision.ApplicationContext,
		Projects:           result.Projects,
	}
}

// NewMarker records that an article was seen without producing a classified record.
func NewMarker(article Article, marker string, now time.Time) Record {
	return Record{
		Source:       article.Source,
		MainCategory: marker,
		Title:        article.Title,
		URL:          article.URL,
		IngestedAt:   now.UTC().Truncate(time.Second),
	}
}

// IsMarker reports whether the row is a seen marker rather than a classified article.
func (r Record) IsMarker() bool {
	return r.MainCategory == MarkerNotRelevant || r.MainCategory == MarkerUnclassified
}

// Row renders the record in RecordHeader order.
func (r Record) Row() []string {
	cross := "NO"
	if r.CrossDomain {
		cross = "YES"
	}
	return []string{
		r.Source,
		r.MainCategory,
		r.Subcategory,
		r.Title,
		strings.Join(r.BulletSummary, "\n"),
		r.URL,
		r.IngestedAt.UTC().Format(time.RFC3339),
		cross,
		r.ApplicationContext,
		strings.Join(r.Projects, ", "),
	}
}

// PartitionFor returns the daily partition name a timestamp belongs to.
func PartitionFor(t time.Time) string {
	return t.UTC().Format(PartitionLayout)
}

// PartitionLayout is the date layout used for daily partitions.
const PartitionLayout = "2006-01-02"
