// Package feed reads RSS and Atom feeds of journals and news outlets.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"MedScanner/internal/domain"
	"MedScanner/internal/scanner"
)

const (
	userAgent = "MedScanner/1.0"

	optNewestOnly      = "newestOnly"
	optEnrich          = "enrich"
	optMinSummaryChars = "minSummaryChars"

	defaultMinSummaryChars = 200
)

// Enricher fetches the readable text behind an article link.
type Enricher interface {
	Enrich(ctx context.Context, link string) (string, error)
}

// Scanner reads every configured feed URL of a site.
type Scanner struct {
	client   *http.Client
	enricher Enricher
	logger   *slog.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// New wires an HTTP client and an optional enricher.
func New(client *http.Client, enricher Enricher, log *slog.Logger) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scanner{client: client, enricher: enricher, logger: log}
}

// Name identifies the strategy inside the registry.
func (s *Scanner) Name() string {
	return "rss"
}

// Scan parses each feed and keeps items published inside the request window.
// Undated items are kept. With newestOnly set only the first item of each feed is considered.
func (s *Scanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	newestOnly, _ := strconv.ParseBool(req.Option(optNewestOnly, "false"))
	enrich, _ := strconv.ParseBool(req.Option(optEnrich, "false"))
	minChars, err := strconv.Atoi(req.Option(optMinSummaryChars, strconv.Itoa(defaultMinSummaryChars)))
	if err != nil {
		minChars = defaultMinSummaryChars
	}

	var (
		results []domain.Article
		failed  int
		lastErr error
	)
	for _, cat := range req.Categories {
		parsed, err := s.fetchFeed(ctx, cat.URL)
		if err != nil {
			failed++
			lastErr = fmt.Errorf("feed %s: %w", cat.Name, err)
			s.warn("feed skipped", "feed", cat.Name, "error", err)
			continue
		}

		items := parsed.Items
		if newestOnly && len(items) > 1 {
			items = items[:1]
		}

		for _, item := range items {
			article, ok := toArticle(item, req.SiteName)
			if !ok {
				continue
			}
			if !article.PublishedAt.IsZero() && !req.Covers(article.PublishedAt) {
				continue
			}
			if enrich && s.enricher != nil && len([]rune(article.Summary)) < minChars {
				if text, err := s.enricher.Enrich(ctx, article.URL); err != nil {
					s.debug("enrich failed", "url", article.URL, "error", err)
				} else if text != "" {
					article.Summary = text
				}
			}
			results = append(results, article)
		}
		s.debug("feed parsed", "feed", cat.Name, "items", len(parsed.Items), "kept", len(results))
	}

	if failed == len(req.Categories) {
		return nil, fmt.Errorf("all %d feeds failed: %w", failed, lastErr)
	}
	return results, nil
}

func (s *Scanner) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return parsed, nil
}

func toArticle(item *gofeed.Item, site string) (domain.Article, bool) {
	if item == nil {
		return domain.Article{}, false
	}
	link := strings.TrimSpace(item.Link)
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return domain.Article{}, false
	}

	summary := StripHTML(item.Description)
	if summary == "" {
		summary = StripHTML(item.Content)
	}

	var published time.Time
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed.UTC()
	}

	var authors []string
	for _, p := range item.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			authors = append(authors, strings.TrimSpace(p.Name))
		}
	}

	return domain.Article{
		Title:       title,
		Authors:     authors,
		Summary:     summary,
		PublishedAt: published,
		URL:         link,
		Source:      site,
	}, true
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (s *Scanner) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Scanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
