package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"MedScanner/internal/config"
	"MedScanner/internal/domain"
	"MedScanner/internal/scanner"
)

type recordingScanner struct {
	name    string
	got     scanner.Request
	results []domain.Article
	err     error
}

func (r *recordingScanner) Name() string { return r.name }

func (r *recordingScanner) Scan(_ context.Context, req scanner.Request) ([]domain.Article, error) {
	r.got = req
	return r.results, r.err
}

func TestSiteSourceFetch(t *testing.T) {
	t.Parallel()

	strategy := &recordingScanner{
		name: "rss",
		results: []domain.Article{
			{Title: "a", URL: "https://a/1"},
			{Title: "b", URL: "https://a/2", Source: "Upstream"},
		},
	}
	reg := scanner.NewRegistry()
	reg.Register(strategy)

	site := config.SourceConfig{
		Name:       "Lancet Digital Health",
		Scanner:    "rss",
		Categories: []config.CategoryConfig{{Name: "current", URL: "https://example.org/rss"}},
		Options:    map[string]string{"newestOnly": "true"},
	}
	src, err := NewSiteSource(reg, site, nil)
	if err != nil {
		t.Fatalf("NewSiteSource: %v", err)
	}
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	since := now.AddDate(0, 0, -3)
	articles, err := src.Fetch(context.Background(), since)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if !strategy.got.Since.Equal(since) || !strategy.got.Until.Equal(now) {
		t.Fatalf("unexpected window: %v .. %v", strategy.got.Since, strategy.got.Until)
	}
	if strategy.got.SiteName != site.Name || len(strategy.got.Categories) != 1 || strategy.got.Option("newestOnly", "") != "true" {
		t.Fatalf("request not populated from site config: %+v", strategy.got)
	}
	if articles[0].Source != site.Name || articles[1].Source != "Upstream" {
		t.Fatalf("unexpected sources: %q, %q", articles[0].Source, articles[1].Source)
	}
}

func TestSiteSourceFetchErrorIsFetchFailure(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(&recordingScanner{name: "rss", err: errors.New("dial tcp: timeout")})

	src, err := NewSiteSource(reg, config.SourceConfig{Name: "feed", Scanner: "rss"}, nil)
	if err != nil {
		t.Fatalf("NewSiteSource: %v", err)
	}
	if _, err := src.Fetch(context.Background(), time.Now()); !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestNewSiteSourcesUnknownScanner(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	if _, err := NewSiteSources(reg, []config.SourceConfig{{Name: "x", Scanner: "ieee"}}, nil); err == nil {
		t.Fatalf("expected error for unregistered scanner")
	}
}
