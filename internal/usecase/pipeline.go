package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"MedScanner/internal/dedupe"
	"MedScanner/internal/domain"
	"MedScanner/internal/fingerprint"
	"MedScanner/internal/ports"
	"MedScanner/internal/relevance"
)

// RelevanceGate decides whether an article belongs to the medical AI domain.
type RelevanceGate interface {
	Decide(ctx context.Context, article domain.Article, policy relevance.Policy) (domain.RelevanceDecision, error)
}

// ArticleClassifier labels a relevant article.
type ArticleClassifier interface {
	Classify(ctx context.Context, text, applicationContext string) (domain.ClassificationResult, error)
}

// Ranker orders scored news results and caps their volume.
type Ranker interface {
	Rank(articles []domain.Article, now time.Time) []domain.ScoredArticle
	CrossDomain(combined float64) bool
}

// SourcePlan binds a source to the way its articles are processed.
type SourcePlan struct {
	Source ports.ArticleSource
	Policy relevance.Policy
	// Ranked sources pass through the Ranker before the gate.
	Ranked bool
	// MaxInputChars caps the text handed to the classifier for this source; zero keeps the classifier default.
	MaxInputChars int
	// ModelTitle stores the classifier's headline instead of the fetched one.
	ModelTitle bool
}

// DigestOptions enables posting a digest of persisted records after the run.
type DigestOptions struct {
	Enabled    bool
	ChannelRef string
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Sources          []SourcePlan
	Sink             ports.Sink
	Gate             RelevanceGate
	Classifier       ArticleClassifier
	Ranker           Ranker
	Notifier         ports.Notifier
	Digest           DigestOptions
	WindowDays       int
	FetchConcurrency int
	FetchTimeout     time.Duration
	Logger           *slog.Logger
	Clock            func() time.Time
}

// Pipeline implements the ingestion workflow.
type Pipeline struct {
	sources          []SourcePlan
	sink             ports.Sink
	gate             RelevanceGate
	classifier       ArticleClassifier
	ranker           Ranker
	notifier         ports.Notifier
	digest           DigestOptions
	windowDays       int
	fetchConcurrency int
	fetchTimeout     time.Duration
	logger           *slog.Logger
	clock            func() time.Time
}

// RunContext holds the state shared by every stage of one run.
type RunContext struct {
	ID     string
	Now    time.Time
	Since  time.Time
	Window *dedupe.Window
	Logger *slog.Logger
}

type fetchResult struct {
	articles []domain.Article
	err      error
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	windowDays := deps.WindowDays
	if windowDays <= 0 {
		windowDays = dedupe.DefaultWindowDays
	}
	concurrency := deps.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{
		sources:          deps.Sources,
		sink:             deps.Sink,
		gate:             deps.Gate,
		classifier:       deps.Classifier,
		ranker:           deps.Ranker,
		notifier:         deps.Notifier,
		digest:           deps.Digest,
		windowDays:       windowDays,
		fetchConcurrency: concurrency,
		fetchTimeout:     deps.FetchTimeout,
		logger:           deps.Logger,
		clock:            clock,
	}
}

// Run executes one ingestion pass over every source. Only a failure to build the recency
// window aborts the run. On cancellation the partial summary is returned with ctx.Err().
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, error) {
	now := p.clock().UTC()
	rc := RunContext{
		ID:    uuid.NewString(),
		Now:   now,
		Since: now.AddDate(0, 0, -p.windowDays),
	}
	if p.logger != nil {
		rc.Logger = p.logger.With("run_id", rc.ID)
	}
	summary := domain.RunSummary{RunID: rc.ID, StartedAt: now}

	window, err := dedupe.Build(ctx, p.sink, p.windowDays, now, rc.Logger)
	if err != nil {
		summary.FinishedAt = p.clock().UTC()
		return summary, fmt.Errorf("build recency window: %w", err)
	}
	rc.Window = window

	results := p.fetchAll(ctx, rc)

	for i, plan := range p.sources {
		if ctx.Err() != nil {
			break
		}
		stats, records := p.processSource(ctx, rc, plan, results[i])
		summary.Sources = append(summary.Sources, stats)
		summary.Records = append(summary.Records, records...)
	}

	summary.FinishedAt = p.clock().UTC()
	p.logSummary(rc, summary)

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	p.postDigest(ctx, rc, summary.Records)
	return summary, nil
}

// fetchAll overlaps source fetches. Results keep the configured source order.
func (p *Pipeline) fetchAll(ctx context.Context, rc RunContext) []fetchResult {
	results := make([]fetchResult, len(p.sources))
	sem := make(chan struct{}, p.fetchConcurrency)
	var wg sync.WaitGroup

	for i, plan := range p.sources {
		wg.Add(1)
		go func(i int, plan SourcePlan) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = fetchResult{err: ctx.Err()}
				return
			}

			fetchCtx := ctx
			if p.fetchTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
				defer cancel()
			}
			articles, err := plan.Source.Fetch(fetchCtx, rc.Since)
			results[i] = fetchResult{articles: articles, err: err}
		}(i, plan)
	}

	wg.Wait()
	return results
}

func (p *Pipeline) processSource(ctx context.Context, rc RunContext, plan SourcePlan, fetched fetchResult) (domain.SourceStats, []domain.Record) {
	name := plan.Source.Name()
	stats := domain.SourceStats{Source: name}
	log := rc.Logger
	if log != nil {
		log = log.With("source", name)
	}

	if fetched.err != nil {
		if !errors.Is(fetched.err, domain.ErrFetch) {
			fetched.err = fmt.Errorf("%w: %w", domain.ErrFetch, fetched.err)
		}
		stats.FetchError = fetched.err.Error()
		if log != nil {
			log.Error("source skipped", "error", fetched.err)
		}
		return stats, nil
	}
	stats.Fetched = len(fetched.articles)

	candidates, crossDomain := p.order(rc, plan, fetched.articles)
	if plan.Ranked && p.ranker != nil {
		// Below-threshold and capped results never reach the gate.
		stats.GatedOut += len(fetched.articles) - len(candidates)
	}

	var records []domain.Record
	for _, article := range candidates {
		if ctx.Err() != nil {
			break
		}
		if article.Source == "" {
			article.Source = name
		}
		record, ok := p.processArticle(ctx, rc, plan, article, crossDomain[article.URL], &stats, log)
		if ok {
			records = append(records, record)
		}
	}
	return stats, records
}

// order returns the articles in processing order. Ranked sources keep the ranker's order and
// report the cross-domain flag per URL; everything else is sorted newest first.
func (p *Pipeline) order(rc RunContext, plan SourcePlan, articles []domain.Article) ([]domain.Article, map[string]bool) {
	if plan.Ranked && p.ranker != nil {
		scored := p.ranker.Rank(articles, rc.Now)
		out := make([]domain.Article, 0, len(scored))
		cross := make(map[string]bool, len(scored))
		for _, s := range scored {
			out = append(out, s.Article)
			cross[s.URL] = p.ranker.CrossDomain(s.CombinedScore)
		}
		if rc.Logger != nil {
			rc.Logger.Info("ranked candidates", "source", plan.Source.Name(), "fetched", len(articles), "kept", len(out))
		}
		return out, cross
	}

	out := make([]domain.Article, len(articles))
	copy(out, articles)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out, nil
}

// processArticle drives one article through dedup, gate, classification and persistence.
// Every article that reaches the gate is added to the window whatever the outcome, and
// rejected or unclassifiable articles are persisted as seen markers for later runs.
func (p *Pipeline) processArticle(ctx context.Context, rc RunContext, plan SourcePlan, article domain.Article, crossDomain bool, stats *domain.SourceStats, log *slog.Logger) (domain.Record, bool) {
	if !article.Valid() {
		stats.Invalid++
		return domain.Record{}, false
	}

	token := fingerprint.Of(article.URL)
	if rc.Window.Contains(token) {
		stats.Deduped++
		return domain.Record{}, false
	}
	defer rc.Window.Add(token)

	decision, err := p.decide(ctx, article, plan.Policy)
	if err != nil || !decision.Relevant {
		stats.GatedOut++
		if err != nil && log != nil {
			log.Warn("relevance check failed", "url", article.URL, "error", err)
		}
		p.markSeen(ctx, article, domain.MarkerNotRelevant, log)
		return domain.Record{}, false
	}

	text := article.Text()
	if plan.MaxInputChars > 0 {
		text = relevance.Truncate(text, plan.MaxInputChars)
	}
	result, err := p.classify(ctx, text, decision.ApplicationContext)
	if err != nil {
		stats.ClassificationFailed++
		if log != nil {
			log.Warn("classification failed", "url", article.URL, "error", err)
		}
		p.markSeen(ctx, article, domain.MarkerUnclassified, log)
		return domain.Record{}, false
	}

	record := domain.NewRecord(article, result, decision, crossDomain, p.clock())
	if plan.ModelTitle && result.Title != "" {
		record.Title = result.Title
	}
	if p.sink != nil {
		if err := p.sink.Append(ctx, record); err != nil {
			stats.SinkFailed++
			if log != nil {
				log.Error("persist record", "url", article.URL, "error", err)
			}
			return domain.Record{}, false
		}
	}
	stats.Persisted++
	if result.OffTaxonomy {
		stats.OffTaxonomy++
	}
	if log != nil {
		log.Debug("record persisted", "url", article.URL, "category", record.MainCategory)
	}
	return record, true
}

// markSeen persists a marker row so the URL stays deduplicated across runs. A failed write
// only costs a repeated check on the next run.
func (p *Pipeline) markSeen(ctx context.Context, article domain.Article, marker string, log *slog.Logger) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Append(ctx, domain.NewMarker(article, marker, p.clock())); err != nil && log != nil {
		log.Warn("persist seen marker", "url", article.URL, "marker", marker, "error", err)
	}
}

func (p *Pipeline) decide(ctx context.Context, article domain.Article, policy relevance.Policy) (domain.RelevanceDecision, error) {
	if p.gate == nil || policy == relevance.PolicyNone {
		return domain.RelevanceDecision{Relevant: true}, nil
	}
	return p.gate.Decide(ctx, article, policy)
}

func (p *Pipeline) classify(ctx context.Context, text, applicationContext string) (domain.ClassificationResult, error) {
	if p.classifier == nil {
		return domain.ClassificationResult{}, fmt.Errorf("%w: no classifier configured", domain.ErrClassification)
	}
	result, err := p.classifier.Classify(ctx, text, applicationContext)
	if err != nil {
		return result, err
	}
	if len(result.Projects) == 0 {
		result.Projects = []string{domain.NoProjectSentinel}
	}
	return result, nil
}

func (p *Pipeline) logSummary(rc RunContext, summary domain.RunSummary) {
	if rc.Logger == nil {
		return
	}
	for _, st := range summary.Sources {
		rc.Logger.Info("source summary",
			"source", st.Source,
			"fetched", st.Fetched,
			"invalid", st.Invalid,
			"deduped", st.Deduped,
			"gated_out", st.GatedOut,
			"classification_failed", st.ClassificationFailed,
			"off_taxonomy", st.OffTaxonomy,
			"persisted", st.Persisted,
			"sink_failed", st.SinkFailed,
			"fetch_error", st.FetchError,
		)
	}
	total := summary.Totals()
	rc.Logger.Info("run finished",
		"fetched", total.Fetched,
		"persisted", total.Persisted,
		"off_taxonomy", total.OffTaxonomy,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
}

func (p *Pipeline) postDigest(ctx context.Context, rc RunContext, records []domain.Record) {
	if !p.digest.Enabled || p.notifier == nil || len(records) == 0 {
		return
	}
	message := BuildDigest(records, rc.Now)
	if err := p.notifier.Post(ctx, p.digest.ChannelRef, message); err != nil && rc.Logger != nil {
		rc.Logger.Warn("digest not delivered", "error", err)
	}
}
