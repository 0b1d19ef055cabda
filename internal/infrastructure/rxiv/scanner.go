// Package rxiv reads recent preprints from the bioRxiv and medRxiv details API and keeps
// those that look like AI/ML work.
package rxiv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"MedScanner/internal/domain"
	"MedScanner/internal/scanner"
)

const (
	// DefaultBaseURL is the public details API.
	DefaultBaseURL = "https://api.biorxiv.org/details"

	defaultMaxPages = 50
	dayLayout       = "2006-01-02"
)

// Matcher decides whether a preprint is in scope. relevance.KeywordMatcher satisfies it.
type Matcher interface {
	Match(text string) bool
}

// Scanner fetches one preprint server ("biorxiv" or "medrxiv").
type Scanner struct {
	server   string
	baseURL  string
	client   *http.Client
	filter   Matcher
	maxPages int
	logger   *slog.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// New builds a scanner for server. A nil filter keeps every preprint.
func New(server string, client *http.Client, filter Matcher, log *slog.Logger) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scanner{
		server:   server,
		baseURL:  DefaultBaseURL,
		client:   client,
		filter:   filter,
		maxPages: defaultMaxPages,
		logger:   log,
	}
}

// WithBaseURL points the scanner at another API root.
func (s *Scanner) WithBaseURL(base string) *Scanner {
	s.baseURL = strings.TrimSuffix(base, "/")
	return s
}

// Name is the server name.
func (s *Scanner) Name() string {
	return s.server
}

type detailsResponse struct {
	Messages   []message `json:"messages"`
	Collection []paper   `json:"collection"`
}

type message struct {
	Status string   `json:"status"`
	Count  flexible `json:"count"`
	Total  flexible `json:"total"`
}

type paper struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Date     string `json:"date"`
	Abstract string `json:"abstract"`
	Version  string `json:"version"`
}

// flexible decodes integers the API sometimes sends as strings.
type flexible int

func (f *flexible) UnmarshalJSON(raw []byte) error {
	raw = bytes.Trim(raw, `"`)
	if len(raw) == 0 || string(raw) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return fmt.Errorf("decode count %q: %w", raw, err)
	}
	*f = flexible(n)
	return nil
}

// Scan pages through the details endpoint for the request window.
func (s *Scanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	until := req.Until
	if until.IsZero() {
		until = time.Now().UTC()
	}
	since := req.Since
	if since.IsZero() {
		since = until.AddDate(0, 0, -1)
	}
	source := req.Option("source", s.server)

	var (
		results []domain.Article
		seen    = map[string]struct{}{}
		cursor  int
		kept    int
		total   int
	)
	for page := 0; page < s.maxPages; page++ {
		resp, err := s.fetchPage(ctx, since, until, cursor)
		if err != nil {
			return nil, err
		}
		if len(resp.Messages) > 0 && resp.Messages[0].Status != "" && resp.Messages[0].Status != "ok" {
			// "no posts found" and similar are empty results, not failures.
			s.debug("api status", "status", resp.Messages[0].Status)
			break
		}

		for _, p := range resp.Collection {
			total++
			article, ok := s.toArticle(p, source)
			if !ok {
				continue
			}
			if _, dup := seen[article.URL]; dup {
				continue
			}
			seen[article.URL] = struct{}{}
			if s.filter != nil && !s.filter.Match(article.Title+" "+article.Summary) {
				continue
			}
			kept++
			results = append(results, article)
		}

		cursor += len(resp.Collection)
		if len(resp.Collection) == 0 || len(resp.Messages) == 0 || cursor >= int(resp.Messages[0].Total) {
			break
		}
	}

	s.debug("preprints scanned", "server", s.server, "total", total, "kept", kept)
	return results, nil
}

func (s *Scanner) fetchPage(ctx context.Context, since, until time.Time, cursor int) (detailsResponse, error) {
	url := fmt.Sprintf("%s/%s/%s/%s/%d", s.baseURL, s.server, since.UTC().Format(dayLayout), until.UTC().Format(dayLayout), cursor)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return detailsResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return detailsResponse{}, fmt.Errorf("request %s details: %w", s.server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return detailsResponse{}, fmt.Errorf("%s returned %s", s.server, resp.Status)
	}

	var out detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return detailsResponse{}, fmt.Errorf("decode %s details: %w", s.server, err)
	}
	return out, nil
}

func (s *Scanner) toArticle(p paper, source string) (domain.Article, bool) {
	doi := strings.TrimSpace(p.DOI)
	title := strings.TrimSpace(p.Title)
	if doi == "" || title == "" {
		return domain.Article{}, false
	}

	var published time.Time
	if p.Date != "" {
		if t, err := dateparse.ParseIn(p.Date, time.UTC); err == nil {
			published = t
		}
	}

	var authors []string
	for _, a := range strings.Split(p.Authors, ";") {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}

	base := fmt.Sprintf("https://www.%s.org/content/%s", s.server, doi)
	return domain.Article{
		Title:       title,
		Authors:     authors,
		Summary:     strings.TrimSpace(p.Abstract),
		PublishedAt: published,
		URL:         base,
		PDFURL:      base + ".full.pdf",
		Source:      source,
	}, true
}

func (s *Scanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
