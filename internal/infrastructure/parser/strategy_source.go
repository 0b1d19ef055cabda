package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"MedScanner/internal/config"
	"MedScanner/internal/domain"
	"MedScanner/internal/ports"
	"MedScanner/internal/scanner"
)

// SiteSource implements ArticleSource for one configured site via its scanner strategy.
type SiteSource struct {
	strategy scanner.Scanner
	site     config.SourceConfig
	now      func() time.Time
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*SiteSource)(nil)

// NewSiteSource resolves the site's scanner from the registry.
func NewSiteSource(reg *scanner.Registry, site config.SourceConfig, log *slog.Logger) (*SiteSource, error) {
	if reg == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	strategy, err := reg.Resolve(site.Scanner)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Name, err)
	}
	return &SiteSource{
		strategy: strategy,
		site:     site,
		now:      time.Now,
		logger:   log,
	}, nil
}

// NewSiteSources builds one source per configured site, keeping config order.
func NewSiteSources(reg *scanner.Registry, sites []config.SourceConfig, log *slog.Logger) ([]*SiteSource, error) {
	sources := make([]*SiteSource, 0, len(sites))
	for _, site := range sites {
		var siteLog *slog.Logger
		if log != nil {
			siteLog = log.With("source", site.Name)
		}
		src, err := NewSiteSource(reg, site, siteLog)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// Name is the configured site name.
func (s *SiteSource) Name() string {
	return s.site.Name
}

// Config exposes the site configuration the source was built from.
func (s *SiteSource) Config() config.SourceConfig {
	return s.site
}

// Fetch runs the site's scanner over [since, now]. Articles without a source get the site name.
func (s *SiteSource) Fetch(ctx context.Context, since time.Time) ([]domain.Article, error) {
	req := scanner.Request{
		Since:      since,
		Until:      s.now().UTC(),
		SiteName:   s.site.Name,
		Options:    s.site.Options,
		Categories: toScannerCategories(s.site.Categories),
	}

	s.debug("fetch", "scanner", s.site.Scanner, "categories", len(req.Categories), "since", since.Format(time.RFC3339))

	results, err := s.strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: scan site %s: %w", domain.ErrFetch, s.site.Name, err)
	}

	for i := range results {
		if results[i].Source == "" {
			results[i].Source = s.site.Name
		}
	}
	s.debug("site produced articles", "count", len(results))
	return results, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}

func (s *SiteSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
