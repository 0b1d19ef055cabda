package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const defaultMaxEnrichChars = 8000

// ReadabilityEnricher extracts the main text of a page.
type ReadabilityEnricher struct {
	client   *http.Client
	maxChars int
}

var _ Enricher = (*ReadabilityEnricher)(nil)

// NewReadabilityEnricher builds an enricher; maxChars <= 0 keeps 8000 runes.
func NewReadabilityEnricher(client *http.Client, maxChars int) *ReadabilityEnricher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxChars <= 0 {
		maxChars = defaultMaxEnrichChars
	}
	return &ReadabilityEnricher{client: client, maxChars: maxChars}
}

// Enrich downloads link and returns its readable text.
func (e *ReadabilityEnricher) Enrich(ctx context.Context, link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid url %q", link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if runes := []rune(text); len(runes) > e.maxChars {
		text = string(runes[:e.maxChars])
	}
	return text, nil
}
