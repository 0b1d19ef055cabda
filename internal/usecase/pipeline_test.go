package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MedScanner/internal/catalog"
	"MedScanner/internal/classifier"
	"MedScanner/internal/domain"
	"MedScanner/internal/infrastructure/storage"
	"MedScanner/internal/relevance"
)

var testNow = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

type stubSource struct {
	name     string
	articles []domain.Article
	err      error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context, time.Time) ([]domain.Article, error) {
	return s.articles, s.err
}

type stubGate struct {
	relevant bool
	context  string
}

func (g stubGate) Decide(context.Context, domain.Article, relevance.Policy) (domain.RelevanceDecision, error) {
	return domain.RelevanceDecision{Relevant: g.relevant, ApplicationContext: g.context}, nil
}

type countingGate struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGate) Decide(context.Context, domain.Article, relevance.Policy) (domain.RelevanceDecision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return domain.RelevanceDecision{}, nil
}

type classifierFunc func(text string) (domain.ClassificationResult, error)

func (f classifierFunc) Classify(_ context.Context, text, _ string) (domain.ClassificationResult, error) {
	return f(text)
}

type countingClassifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingClassifier) Classify(_ context.Context, text, _ string) (domain.ClassificationResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return domain.ClassificationResult{}, c.err
	}
	return domain.ClassificationResult{
		Title:         strings.SplitN(text, "\n", 2)[0],
		BulletSummary: []string{"• finding"},
		MainCategory:  "Clinical Applications",
		Subcategory:   "Diagnostics & Prognostics",
	}, nil
}

type llmFunc func(ctx context.Context, prompt string) (string, error)

func (f llmFunc) Complete(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

type failingSink struct {
	*storage.MemorySink
	listErr   error
	appendErr func(domain.Record) error
}

func (f *failingSink) ListPartitions(ctx context.Context, n int, now time.Time) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemorySink.ListPartitions(ctx, n, now)
}

func (f *failingSink) Append(ctx context.Context, r domain.Record) error {
	if f.appendErr != nil {
		if err := f.appendErr(r); err != nil {
			return err
		}
	}
	return f.MemorySink.Append(ctx, r)
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Post(_ context.Context, _ string, message string) error {
	n.messages = append(n.messages, message)
	return n.err
}

type fixedRanker struct {
	scores map[string]float64
	keep   []string
}

func (r fixedRanker) Rank(articles []domain.Article, _ time.Time) []domain.ScoredArticle {
	byURL := map[string]domain.Article{}
	for _, a := range articles {
		byURL[a.URL] = a
	}
	var out []domain.ScoredArticle
	for _, u := range r.keep {
		out = append(out, domain.ScoredArticle{Article: byURL[u], CombinedScore: r.scores[u]})
	}
	return out
}

func (fixedRanker) CrossDomain(combined float64) bool { return combined < 0.6 }

func article(url string, age time.Duration) domain.Article {
	return domain.Article{Title: "Title " + url, Summary: "abstract", URL: url, PublishedAt: testNow.Add(-age)}
}

func newTestPipeline(deps PipelineDeps) *Pipeline {
	deps.Clock = func() time.Time { return testNow }
	return NewPipeline(deps)
}

func TestRunPersistsThenSecondRunIsIdempotent(t *testing.T) {
	sink := storage.NewMemorySink()
	cls := &countingClassifier{}
	src := &stubSource{name: "arXiv", articles: []domain.Article{article("https://a/1", time.Hour), article("https://a/2", 2*time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: src, Policy: relevance.PolicyLLM}},
		Sink:       sink,
		Gate:       stubGate{relevant: true, context: "triage"},
		Classifier: cls,
	})

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, first.RunID)
	assert.Equal(t, 2, first.Totals().Persisted)
	require.Len(t, sink.Records(), 2)
	rec := sink.Records()[0]
	assert.Equal(t, "arXiv", rec.Source)
	assert.Equal(t, "triage", rec.ApplicationContext)
	assert.Equal(t, []string{domain.NoProjectSentinel}, rec.Projects)
	assert.False(t, rec.CrossDomain)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 0, second.Totals().Persisted)
	assert.Equal(t, 2, second.Totals().Deduped)
	assert.Equal(t, 2, cls.calls)
	assert.Len(t, sink.Records(), 2)
}

func TestRunDedupsWithinRun(t *testing.T) {
	cls := &countingClassifier{}
	a := &stubSource{name: "a", articles: []domain.Article{article("https://a/1", time.Hour), article("https://a/1", 2*time.Hour)}}
	b := &stubSource{name: "b", articles: []domain.Article{article("https://a/1", time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources:          []SourcePlan{{Source: a, Policy: relevance.PolicyLLM}, {Source: b, Policy: relevance.PolicyLLM}},
		Sink:             storage.NewMemorySink(),
		Gate:             stubGate{relevant: true},
		Classifier:       cls,
		FetchConcurrency: 2,
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cls.calls)
	assert.Equal(t, 1, summary.Sources[0].Persisted)
	assert.Equal(t, 1, summary.Sources[0].Deduped)
	assert.Equal(t, 1, summary.Sources[1].Deduped)
}

func TestRunFailsClosedWhenRelevanceModelErrors(t *testing.T) {
	failing := llmFunc(func(context.Context, string) (string, error) { return "", errors.New("quota exceeded") })
	gate := relevance.NewGate(relevance.NewKeywordMatcher(catalog.MedicalKeywords), relevance.NewLLMChecker(failing, 0), nil)
	cls := &countingClassifier{}
	src := &stubSource{name: "rss", articles: []domain.Article{article("https://a/1", time.Hour), article("https://a/2", time.Hour), article("https://a/3", time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: src, Policy: relevance.PolicyLLM}},
		Sink:       storage.NewMemorySink(),
		Gate:       gate,
		Classifier: cls,
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, cls.calls)
	assert.Equal(t, 3, summary.Sources[0].GatedOut)
	assert.Equal(t, 0, summary.Sources[0].Persisted)
}

func TestRunSkipsArticleAlreadyInWindow(t *testing.T) {
	sink := storage.NewMemorySink()
	require.NoError(t, sink.Append(context.Background(), domain.Record{URL: "https://a/1", IngestedAt: testNow.AddDate(0, 0, -1)}))
	cls := &countingClassifier{}
	src := &stubSource{name: "a", articles: []domain.Article{article("https://a/1", time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: src, Policy: relevance.PolicyLLM}},
		Sink:       sink,
		Gate:       stubGate{relevant: true},
		Classifier: cls,
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sources[0].Deduped)
	assert.Equal(t, 0, summary.Sources[0].Persisted)
	assert.Equal(t, 0, cls.calls)
	assert.Len(t, sink.Records(), 1)
}

func TestRunMissingProjectFailsClassificationButMarksSeen(t *testing.T) {
	reply := `{"title": "x", "bullet_summary": ["a"], "main_category": "Other", "subcategory": "misc"}`
	model := llmFunc(func(context.Context, string) (string, error) { return reply, nil })
	cls := classifier.New(model, catalog.Default(), classifier.Options{}, nil)
	a := &stubSource{name: "a", articles: []domain.Article{article("https://a/1", time.Hour)}}
	b := &stubSource{name: "b", articles: []domain.Article{article("https://a/1", time.Hour)}}
	sink := storage.NewMemorySink()
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: a, Policy: relevance.PolicyNone}, {Source: b, Policy: relevance.PolicyNone}},
		Sink:       sink,
		Gate:       stubGate{},
		Classifier: cls,
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sources[0].ClassificationFailed)
	assert.Equal(t, 1, summary.Sources[1].Deduped)
	assert.Empty(t, summary.Records)
	require.Len(t, sink.Records(), 1)
	assert.Equal(t, domain.MarkerUnclassified, sink.Records()[0].MainCategory)
	assert.True(t, sink.Records()[0].IsMarker())
}

func TestRunRemembersRejectedArticlesAcrossRuns(t *testing.T) {
	sink := storage.NewMemorySink()
	gate := &countingGate{}
	cls := &countingClassifier{err: domain.ErrClassification}
	rejected := &stubSource{name: "news", articles: []domain.Article{article("https://n/crypto", time.Hour)}}
	unclassified := &stubSource{name: "arXiv", articles: []domain.Article{article("https://a/garbled", time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources: []SourcePlan{
			{Source: rejected, Policy: relevance.PolicyLLM},
			{Source: unclassified, Policy: relevance.PolicyNone},
		},
		Sink:       sink,
		Gate:       gate,
		Classifier: cls,
	})

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sources[0].GatedOut)
	assert.Equal(t, 1, first.Sources[1].ClassificationFailed)
	assert.Empty(t, first.Records)

	stored := sink.Records()
	require.Len(t, stored, 2)
	assert.Equal(t, domain.MarkerNotRelevant, stored[0].MainCategory)
	assert.Equal(t, "https://n/crypto", stored[0].URL)
	assert.Equal(t, domain.MarkerUnclassified, stored[1].MainCategory)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Totals().Deduped)
	assert.Equal(t, 0, second.Totals().GatedOut)
	assert.Equal(t, 0, second.Totals().ClassificationFailed)
	assert.Equal(t, 1, gate.calls)
	assert.Equal(t, 1, cls.calls)
	assert.Len(t, sink.Records(), 2)
}

func TestRunKeepsSeenMarkersOutOfDigest(t *testing.T) {
	notifier := &recordingNotifier{}
	src := &stubSource{name: "news", articles: []domain.Article{article("https://n/1", time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: src, Policy: relevance.PolicyLLM}},
		Sink:       storage.NewMemorySink(),
		Gate:       stubGate{},
		Classifier: &countingClassifier{},
		Notifier:   notifier,
		Digest:     DigestOptions{Enabled: true},
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sources[0].GatedOut)
	assert.Empty(t, notifier.messages)
}

func TestRunUsesModelTitleOnlyWhenPlanned(t *testing.T) {
	cls := classifierFunc(func(string) (domain.ClassificationResult, error) {
		return domain.ClassificationResult{
			Title:         "LLM drafts discharge letters",
			BulletSummary: []string{"• finding"},
			MainCategory:  "Clinical Applications",
			Projects:      []string{"RadGPT"},
		}, nil
	})
	feed := &stubSource{name: "rss", articles: []domain.Article{article("https://f/1", time.Hour)}}
	papers := &stubSource{name: "arXiv", articles: []domain.Article{article("https://a/1", time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources: []SourcePlan{
			{Source: feed, Policy: relevance.PolicyNone, ModelTitle: true},
			{Source: papers, Policy: relevance.PolicyNone},
		},
		Sink:       storage.NewMemorySink(),
		Classifier: cls,
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Records, 2)
	assert.Equal(t, "LLM drafts discharge letters", summary.Records[0].Title)
	assert.Equal(t, "Title https://a/1", summary.Records[1].Title)
}

func TestRunCountsOffTaxonomyRecords(t *testing.T) {
	cls := classifierFunc(func(text string) (domain.ClassificationResult, error) {
		result := domain.ClassificationResult{
			BulletSummary: []string{"• finding"},
			MainCategory:  "Clinical Applications",
			Projects:      []string{domain.NoProjectSentinel},
		}
		if strings.Contains(text, "https://a/2") {
			result.MainCategory, result.OffTaxonomy = "Robotics", true
		}
		return result, nil
	})
	src := &stubSource{name: "a", articles: []domain.Article{article("https://a/1", time.Hour), article("https://a/2", 2*time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: src, Policy: relevance.PolicyNone}},
		Sink:       storage.NewMemorySink(),
		Classifier: cls,
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sources[0].Persisted)
	assert.Equal(t, 1, summary.Sources[0].OffTaxonomy)
	assert.Equal(t, 1, summary.Totals().OffTaxonomy)
	assert.Equal(t, "Robotics", summary.Records[1].MainCategory)
}

func TestRunCountsSinkFailuresAndContinues(t *testing.T) {
	sink := &failingSink{
		MemorySink: storage.NewMemorySink(),
		appendErr: func(r domain.Record) error {
			if r.URL == "https://a/1" {
				return domain.ErrSinkWrite
			}
			return nil
		},
	}
	src := &stubSource{name: "a", articles: []domain.Article{article("https://a/1", time.Hour), article("https://a/2", 2*time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: src, Policy: relevance.PolicyLLM}},
		Sink:       sink,
		Gate:       stubGate{relevant: true},
		Classifier: &countingClassifier{},
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sources[0].SinkFailed)
	assert.Equal(t, 1, summary.Sources[0].Persisted)
	require.Len(t, summary.Records, 1)
	assert.Equal(t, "https://a/2", summary.Records[0].URL)
}

func TestRunSkipsOnlyFailingSource(t *testing.T) {
	broken := &stubSource{name: "broken", err: errors.New("connection reset")}
	ok := &stubSource{name: "ok", articles: []domain.Article{article("https://a/1", time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: broken}, {Source: ok, Policy: relevance.PolicyLLM}},
		Sink:       storage.NewMemorySink(),
		Gate:       stubGate{relevant: true},
		Classifier: &countingClassifier{},
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Sources, 2)
	assert.Contains(t, summary.Sources[0].FetchError, "connection reset")
	assert.Contains(t, summary.Sources[0].FetchError, domain.ErrFetch.Error())
	assert.Equal(t, 1, summary.Sources[1].Persisted)
}

func TestRunAbortsWhenPartitionsCannotBeListed(t *testing.T) {
	sink := &failingSink{MemorySink: storage.NewMemorySink(), listErr: errors.New("permission denied")}
	cls := &countingClassifier{}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: &stubSource{name: "a", articles: []domain.Article{article("https://a/1", 0)}}}},
		Sink:       sink,
		Classifier: cls,
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, cls.calls)
}

func TestRunRankedSourceOrderAndCrossDomain(t *testing.T) {
	src := &stubSource{name: "newsapi", articles: []domain.Article{
		article("https://n/low", time.Hour),
		article("https://n/high", time.Hour),
		article("https://n/dropped", time.Hour),
	}}
	ranker := fixedRanker{
		scores: map[string]float64{"https://n/high": 0.9, "https://n/low": 0.5},
		keep:   []string{"https://n/high", "https://n/low"},
	}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: src, Policy: relevance.PolicyLLM, Ranked: true, MaxInputChars: 3000}},
		Sink:       storage.NewMemorySink(),
		Gate:       stubGate{relevant: true},
		Classifier: &countingClassifier{},
		Ranker:     ranker,
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Records, 2)
	assert.Equal(t, "https://n/high", summary.Records[0].URL)
	assert.False(t, summary.Records[0].CrossDomain)
	assert.Equal(t, "https://n/low", summary.Records[1].URL)
	assert.True(t, summary.Records[1].CrossDomain)
	assert.Equal(t, 1, summary.Sources[0].GatedOut)
}

func TestRunProcessesNewestFirstAndRejectsInvalid(t *testing.T) {
	src := &stubSource{name: "a", articles: []domain.Article{
		article("https://a/old", 48*time.Hour),
		{Title: "no url"},
		article("https://a/new", time.Hour),
	}}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: src, Policy: relevance.PolicyLLM}},
		Sink:       storage.NewMemorySink(),
		Gate:       stubGate{relevant: true},
		Classifier: &countingClassifier{},
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sources[0].Invalid)
	require.Len(t, summary.Records, 2)
	assert.Equal(t, "https://a/new", summary.Records[0].URL)
}

func TestRunReturnsContextErrorWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cls := &countingClassifier{}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: &stubSource{name: "a", articles: []domain.Article{article("https://a/1", 0)}}}},
		Sink:       storage.NewMemorySink(),
		Gate:       stubGate{relevant: true},
		Classifier: cls,
	})

	summary, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, cls.calls)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunPostsDigestBestEffort(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("chat not found")}
	src := &stubSource{name: "a", articles: []domain.Article{article("https://a/1", time.Hour)}}
	p := newTestPipeline(PipelineDeps{
		Sources:    []SourcePlan{{Source: src, Policy: relevance.PolicyLLM}},
		Sink:       storage.NewMemorySink(),
		Gate:       stubGate{relevant: true},
		Classifier: &countingClassifier{},
		Notifier:   notifier,
		Digest:     DigestOptions{Enabled: true, ChannelRef: "@medai"},
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Totals().Persisted)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "https://a/1")
}

func TestRunSkipsDigestWithoutRecords(t *testing.T) {
	notifier := &recordingNotifier{}
	p := newTestPipeline(PipelineDeps{
		Sources:  []SourcePlan{{Source: &stubSource{name: "a"}}},
		Sink:     storage.NewMemorySink(),
		Notifier: notifier,
		Digest:   DigestOptions{Enabled: true},
	})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notifier.messages)
}
