// Package newsapi searches NewsAPI.ai for recent medical AI news.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/time/rate"

	"MedScanner/internal/domain"
	"MedScanner/internal/scanner"
)

const (
	// DefaultEndpoint is the article search endpoint.
	DefaultEndpoint = "https://newsapi.ai/api/v1/article/getArticles"

	defaultArticlesCount = 30
	maxAttempts          = 3
	dayLayout            = "2006-01-02"
)

// Options configures the client.
type Options struct {
	Endpoint       string
	APIKey         string
	DefaultQueries []string
	// RequestsPerSecond bounds the request rate; zero means one per second.
	RequestsPerSecond float64
	// Backoff is the first retry delay, doubled on each further attempt.
	Backoff time.Duration
}

// Scanner runs one search per query and merges the results.
type Scanner struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// New builds a rate-limited news search scanner.
func New(client *http.Client, opts Options, log *slog.Logger) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Scanner{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:  log,
	}
}

// Name identifies the strategy inside the registry.
func (s *Scanner) Name() string {
	return "newsapi"
}

type searchResponse struct {
	Articles struct {
		Results []result `json:"results"`
	} `json:"articles"`
}

type result struct {
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Content     string          `json:"content"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	DateTime    string          `json:"dateTime"`
	DateTimePub string          `json:"dateTimePub"`
	Source      json.RawMessage `json:"source"`
	Authors     []author        `json:"authors"`
}

type author struct {
	Name string `json:"name"`
}

// Scan runs every query (categories, or the default queries when none are configured).
// A failing query is logged and skipped; the scan fails only when every query fails.
func (s *Scanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	queries := make([]string, 0, len(req.Categories))
	for _, cat := range req.Categories {
		q := cat.URL
		if q == "" {
			q = cat.Name
		}
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		queries = s.opts.DefaultQueries
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no search queries for site %s", req.SiteName)
	}

	until := req.Until
	if until.IsZero() {
		until = time.Now().UTC()
	}

	var (
		results []domain.Article
		failed  int
		lastErr error
	)
	for i, query := range queries {
		page, err := s.search(ctx, query, req.Since, until)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			lastErr = err
			s.warn("query failed", "query", query, "error", err)
			continue
		}

		kept := 0
		for _, r := range page.Articles.Results {
			if article, ok := toArticle(r, req.SiteName); ok {
				results = append(results, article)
				kept++
			}
		}
		s.debug("query done", "query", query, "call", i+1, "of", len(queries), "articles", kept)
	}

	if failed == len(queries) {
		return nil, fmt.Errorf("all %d queries failed: %w", failed, lastErr)
	}
	return results, nil
}

func (s *Scanner) search(ctx context.Context, query string, since, until time.Time) (searchResponse, error) {
	params := url.Values{}
	params.Set("apiKey", s.opts.APIKey)
	params.Set("resultType", "articles")
	params.Set("keyword", query)
	params.Set("lang", "eng")
	if !since.IsZero() {
		params.Set("dateStart", since.UTC().Format(dayLayout))
	}
	params.Set("dateEnd", until.UTC().Format(dayLayout))
	params.Set("articlesSortBy", "date")
	params.Set("articlesCount", strconv.Itoa(defaultArticlesCount))
	params.Set("includeSourceTitle", "true")

	backoff := s.opts.Backoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return searchResponse{}, err
		}

		out, retry, err := s.do(ctx, params)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retry || attempt == maxAttempts {
			break
		}

		s.debug("retrying", "query", query, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return searchResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return searchResponse{}, lastErr
}

// do performs one request. retry reports whether the failure is transient.
func (s *Scanner) do(ctx context.Context, params url.Values) (searchResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return searchResponse{}, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return searchResponse{}, ctx.Err() == nil, fmt.Errorf("request search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return searchResponse{}, transient, fmt.Errorf("search returned %s", resp.Status)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return searchResponse{}, false, fmt.Errorf("decode search: %w", err)
	}
	return out, false, nil
}

func toArticle(r result, site string) (domain.Article, bool) {
	title := strings.TrimSpace(r.Title)
	link := strings.TrimSpace(r.URL)
	if title == "" || link == "" {
		return domain.Article{}, false
	}

	summary := strings.TrimSpace(r.Body)
	for _, alt := range []string{r.Content, r.Description} {
		if summary != "" {
			break
		}
		summary = strings.TrimSpace(alt)
	}

	var published time.Time
	for _, raw := range []string{r.DateTimePub, r.DateTime} {
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			published = t.UTC()
			break
		}
	}

	var authors []string
	for _, a := range r.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	source := sourceTitle(r.Source)
	if source == "" {
		source = site
	}

	return domain.Article{
		Title:       title,
		Authors:     authors,
		Summary:     summary,
		PublishedAt: published,
		URL:         link,
		Source:      source,
	}, true
}

// sourceTitle accepts {"title": "..."} or a bare string.
func sourceTitle(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Title)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

func (s *Scanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Scanner) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
