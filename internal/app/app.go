package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/option"

	"MedScanner/internal/catalog"
	"MedScanner/internal/classifier"
	"MedScanner/internal/config"
	"MedScanner/internal/domain"
	"MedScanner/internal/infrastructure/feed"
	"MedScanner/internal/infrastructure/llm"
	"MedScanner/internal/infrastructure/newsapi"
	"MedScanner/internal/infrastructure/parser"
	"MedScanner/internal/infrastructure/rxiv"
	"MedScanner/internal/infrastructure/scheduler"
	"MedScanner/internal/infrastructure/storage"
	"MedScanner/internal/infrastructure/telegram"
	"MedScanner/internal/logging"
	"MedScanner/internal/ports"
	"MedScanner/internal/relevance"
	"MedScanner/internal/scanner"
	"MedScanner/internal/scoring"
	"MedScanner/internal/usecase"
)

const (
	newsScanner       = "newsapi"
	feedScanner       = "rss"
	newsMaxInputChars = 3000
	enrichMaxChars    = 8000
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	closers  []func() error
}

// New builds the runnable application. The sink is opened here so connection and
// credential problems surface before any source is fetched.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	cat, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	model := llm.NewChatGPTClient(cfg.LLM)
	gate := relevance.NewGate(
		relevance.NewKeywordMatcher(cat.Keywords),
		relevance.NewLLMChecker(model, cfg.Relevance.MaxInputChars),
		cat.TrustedSources,
	)
	cls := classifier.New(model, cat, classifier.Options{MaxInputChars: cfg.Classifier.MaxInputChars},
		baseLogger.With("component", "classifier"))
	ranker := scoring.NewRanker(cfg.Scoring.Weights, cfg.Scoring.Vocabulary)

	registry := buildRegistry(cfg, cat, baseLogger)
	plans, err := buildPlans(registry, cfg.Sources, baseLogger)
	if err != nil {
		return nil, err
	}

	sink, err := a.openSink(ctx)
	if err != nil {
		return nil, err
	}

	var notifier ports.Notifier
	if cfg.Notifications.Digest {
		tg, err := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
		if err != nil {
			// Notifications are best effort; the run goes ahead without a digest.
			baseLogger.Warn("telegram notifier disabled", "error", err)
		} else {
			notifier = tg
		}
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Sources:          plans,
		Sink:             sink,
		Gate:             gate,
		Classifier:       cls,
		Ranker:           ranker,
		Notifier:         notifier,
		Digest:           usecase.DigestOptions{Enabled: notifier != nil},
		WindowDays:       cfg.Pipeline.WindowDays,
		FetchConcurrency: cfg.Pipeline.FetchConcurrency,
		FetchTimeout:     cfg.Pipeline.FetchTimeout,
		Logger:           baseLogger.With("component", "pipeline"),
	})
	return a, nil
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (domain.RunSummary, error) {
	return a.pipeline.Run(ctx)
}

// Schedule runs the pipeline on the configured cron expression until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context, runOnStart bool) error {
	driver, err := scheduler.NewCronScheduler(
		a.cfg.Scheduler.CronExpression,
		a.cfg.Scheduler.Location(),
		runOnStart,
		a.logger.With("component", "scheduler"),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}

	sched := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String(),
		"next", driver.Next(time.Now()),
	)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases the sink.
func (a *Application) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *Application) openSink(ctx context.Context) (ports.Sink, error) {
	cfg := a.cfg.Sink
	switch cfg.Kind {
	case config.SinkSQLite, config.SinkPostgres:
		sink, err := storage.OpenSQLSink(ctx, cfg.Kind, cfg.DSN, cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s sink: %v", domain.ErrConfig, cfg.Kind, err)
		}
		a.closers = append(a.closers, sink.Close)
		return sink, nil
	case config.SinkSheets:
		sink, err := storage.NewSheetsSink(ctx, cfg.Sheets.SpreadsheetID,
			a.logger.With("component", "sink.sheets"),
			option.WithCredentialsFile(cfg.Sheets.CredentialsFile),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: open sheets sink: %v", domain.ErrConfig, err)
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("%w: unknown sink kind %q", domain.ErrConfig, cfg.Kind)
	}
}

func buildCatalog(cfg config.Config) (catalog.Catalog, error) {
	cat := catalog.Default()
	if path := cfg.Catalog.ProjectsFile; path != "" {
		projects, err := catalog.LoadProjects(path)
		if err != nil {
			return catalog.Catalog{}, fmt.Errorf("%w: %v", domain.ErrConfig, err)
		}
		cat.Projects = projects
	}
	if len(cfg.Relevance.Keywords) > 0 {
		cat.Keywords = cfg.Relevance.Keywords
	}
	if len(cfg.Relevance.TrustedSources) > 0 {
		cat.TrustedSources = cfg.Relevance.TrustedSources
	}
	if len(cfg.Catalog.AIKeywords) > 0 {
		cat.AIKeywords = cfg.Catalog.AIKeywords
	}
	return cat, nil
}

func buildRegistry(cfg config.Config, cat catalog.Catalog, log *slog.Logger) *scanner.Registry {
	client := &http.Client{Timeout: 30 * time.Second}
	aiFilter := relevance.NewKeywordMatcher(cat.AIKeywords)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivScanner(client, log.With("component", "scanner.arxiv")))
	registry.Register(rxiv.New("biorxiv", client, aiFilter, log.With("component", "scanner.biorxiv")))
	registry.Register(rxiv.New("medrxiv", client, aiFilter, log.With("component", "scanner.medrxiv")))
	registry.Register(feed.New(client, feed.NewReadabilityEnricher(client, enrichMaxChars), log.With("component", "scanner.rss")))
	registry.Register(newsapi.New(client, newsapi.Options{
		Endpoint:       cfg.Providers.NewsAPI.Endpoint,
		APIKey:         cfg.Providers.NewsAPI.APIKey,
		DefaultQueries: catalog.NewsSearchQueries,
	}, log.With("component", "scanner.newsapi")))
	return registry
}

func buildPlans(registry *scanner.Registry, sites []config.SourceConfig, log *slog.Logger) ([]usecase.SourcePlan, error) {
	sources, err := parser.NewSiteSources(registry, sites, log.With("component", "source"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}

	plans := make([]usecase.SourcePlan, 0, len(sources))
	for _, src := range sources {
		site := src.Config()
		policy, err := site.RelevancePolicy()
		if err != nil {
			return nil, fmt.Errorf("%w: source %s: %v", domain.ErrConfig, site.Name, err)
		}
		plan := usecase.SourcePlan{
			Source:        src,
			Policy:        policy,
			Ranked:        site.Ranked || site.Scanner == newsScanner,
			MaxInputChars: site.MaxInputChars,
			ModelTitle:    site.Scanner == feedScanner,
		}
		if plan.MaxInputChars == 0 && site.Scanner == newsScanner {
			plan.MaxInputChars = newsMaxInputChars
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
