package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"MedScanner/internal/domain"
	"MedScanner/internal/relevance"
	"MedScanner/internal/scoring"
)

const (
	defaultTimezone = "UTC"

	// PathEnv names the variable holding the YAML config path.
	PathEnv = "MEDSCANNER_CONFIG"

	llmAPIKeyEnv        = "LLM_API_KEY"
	llmModelEnv         = "LLM_MODEL"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	newsAPIKeyEnv       = "NEWSAPI_AI_KEY"
	sinkDSNEnv          = "SINK_DSN"
	googleCredsEnv      = "GOOGLE_CREDENTIALS_FILE"
	rawSheetIDEnv       = "RAW_SHEET_ID"
	logLevelEnv         = "LOG_LEVEL"
	defaultLLMEndpoint  = "https://api.openai.com/v1/chat/completions"
	defaultNewsEndpoint = "https://newsapi.ai/api/v1/article/getArticles"
)

// Sink kinds.
const (
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkSheets   = "sheets"
)

// Scanner names understood by the source registry.
var knownScanners = map[string]struct{}{
	"arxiv":   {},
	"biorxiv": {},
	"medrxiv": {},
	"rss":     {},
	"newsapi": {},
}

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	LLM           LLMConfig          `yaml:"llm"`
	Sink          SinkConfig         `yaml:"sink"`
	Notifications NotificationConfig `yaml:"notifications"`
	Providers     ProviderConfig     `yaml:"providers"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Relevance     RelevanceConfig    `yaml:"relevance"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Scoring       ScoringConfig      `yaml:"scoring"`
	Catalog       CatalogConfig      `yaml:"catalog"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig selects slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LLMConfig defines how to contact the chat-completion API.
type LLMConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SinkConfig selects where records are persisted.
type SinkConfig struct {
	Kind   string       `yaml:"kind"`
	DSN    string       `yaml:"dsn"`
	Table  string       `yaml:"table"`
	Sheets SheetsConfig `yaml:"sheets"`
}

// SheetsConfig points at the spreadsheet holding one worksheet per day.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheetId"`
	CredentialsFile string `yaml:"credentialsFile"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Digest   bool           `yaml:"digest"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// ProviderConfig groups credentials of article providers.
type ProviderConfig struct {
	NewsAPI NewsAPIConfig `yaml:"newsapi"`
}

// NewsAPIConfig configures the news search API.
type NewsAPIConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// PipelineConfig tunes the run itself.
type PipelineConfig struct {
	WindowDays       int           `yaml:"windowDays"`
	FetchConcurrency int           `yaml:"fetchConcurrency"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
}

// RelevanceConfig tunes the relevance gate.
type RelevanceConfig struct {
	MaxInputChars  int      `yaml:"maxInputChars"`
	Keywords       []string `yaml:"keywords"`
	TrustedSources []string `yaml:"trustedSources"`
}

// ClassifierConfig tunes the classifier prompt.
type ClassifierConfig struct {
	MaxInputChars int `yaml:"maxInputChars"`
}

// ScoringConfig carries the news ranking constants and vocabulary.
type ScoringConfig struct {
	Weights    scoring.Weights    `yaml:",inline"`
	Vocabulary scoring.Vocabulary `yaml:"vocabulary"`
}

// CatalogConfig points at the project catalog and the preprint AI filter terms.
type CatalogConfig struct {
	ProjectsFile string   `yaml:"projectsFile"`
	AIKeywords   []string `yaml:"aiKeywords"`
}

// SourceConfig describes a single source with its scanner strategy.
type SourceConfig struct {
	Name          string            `yaml:"name"`
	Scanner       string            `yaml:"scanner"`
	Policy        string            `yaml:"policy"`
	Ranked        bool              `yaml:"ranked"`
	MaxInputChars int               `yaml:"maxInputChars"`
	Categories    []CategoryConfig  `yaml:"categories"`
	Options       map[string]string `yaml:"options"`
}

// CategoryConfig holds the concrete endpoints to crawl (listing pages, feed URLs, queries).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// RelevancePolicy returns the configured policy or the scanner default.
func (s SourceConfig) RelevancePolicy() (relevance.Policy, error) {
	if strings.TrimSpace(s.Policy) == "" {
		return relevance.DefaultPolicy(s.Scanner), nil
	}
	return relevance.ParsePolicy(s.Policy)
}

// Load reads the YAML file at path (or $MEDSCANNER_CONFIG when path is empty) over the
// defaults and applies environment overrides. A missing path means defaults only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", domain.ErrConfig, path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", domain.ErrConfig, path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{llmAPIKeyEnv, &c.LLM.APIKey},
		{llmModelEnv, &c.LLM.Model},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
		{newsAPIKeyEnv, &c.Providers.NewsAPI.APIKey},
		{sinkDSNEnv, &c.Sink.DSN},
		{googleCredsEnv, &c.Sink.Sheets.CredentialsFile},
		{rawSheetIDEnv, &c.Sink.Sheets.SpreadsheetID},
		{logLevelEnv, &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("%w: unknown timezone %s", domain.ErrConfig, tz)
	}
	c.Scheduler.location = loc
	return nil
}

// Validate reports every startup problem at once. The returned error wraps domain.ErrConfig.
func (c Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.LLM.APIKey) == "" {
		add("llm api key is required (%s)", llmAPIKeyEnv)
	}
	if c.LLM.Model == "" {
		add("llm model is required")
	}

	switch c.Sink.Kind {
	case SinkSQLite, SinkPostgres:
		if c.Sink.DSN == "" {
			add("sink %s requires a dsn (%s)", c.Sink.Kind, sinkDSNEnv)
		}
	case SinkSheets:
		if c.Sink.Sheets.SpreadsheetID == "" {
			add("sheets sink requires a spreadsheet id (%s)", rawSheetIDEnv)
		}
		if c.Sink.Sheets.CredentialsFile == "" {
			add("sheets sink requires a credentials file (%s)", googleCredsEnv)
		}
	default:
		add("unknown sink kind %q", c.Sink.Kind)
	}

	if c.Notifications.Digest {
		if c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "" {
			add("digest requires telegram bot token and chat id")
		}
	}

	if c.Pipeline.WindowDays <= 0 {
		add("pipeline windowDays must be positive")
	}

	if path := c.Catalog.ProjectsFile; path != "" {
		if _, err := os.Stat(path); err != nil {
			add("project catalog %s: %v", path, err)
		}
	}

	if len(c.Sources) == 0 {
		add("at least one source is required")
	}
	names := map[string]struct{}{}
	for i, src := range c.Sources {
		if src.Name == "" {
			add("source #%d has no name", i+1)
		}
		if _, dup := names[src.Name]; dup {
			add("duplicate source name %q", src.Name)
		}
		names[src.Name] = struct{}{}

		if _, ok := knownScanners[src.Scanner]; !ok {
			add("source %s: unknown scanner %q", src.Name, src.Scanner)
		}
		if _, err := src.RelevancePolicy(); err != nil {
			add("source %s: %v", src.Name, err)
		}
		if src.Scanner == "newsapi" && c.Providers.NewsAPI.APIKey == "" {
			add("source %s: news api key is required (%s)", src.Name, newsAPIKeyEnv)
		}
		if (src.Scanner == "arxiv" || src.Scanner == "rss") && len(src.Categories) == 0 {
			add("source %s: no categories configured", src.Name)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrConfig, errors.Join(problems...))
}

// Default returns the built-in configuration.
func Default() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		LLM: LLMConfig{
			Endpoint:     defaultLLMEndpoint,
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a careful medical AI research assistant. Reply with JSON only.",
			Timeout:      60 * time.Second,
		},
		Sink:      SinkConfig{Kind: SinkSQLite, DSN: "file:medscanner.db", Table: "records"},
		Providers: ProviderConfig{NewsAPI: NewsAPIConfig{Endpoint: defaultNewsEndpoint}},
		Pipeline: PipelineConfig{
			WindowDays:       3,
			FetchConcurrency: 4,
			FetchTimeout:     2 * time.Minute,
		},
		Scoring: ScoringConfig{
			Weights:    scoring.DefaultWeights(),
			Vocabulary: scoring.DefaultVocabulary(),
		},
		Sources: []SourceConfig{
			{
				Name:    "arXiv",
				Scanner: "arxiv",
				Categories: []CategoryConfig{
					{Name: "cs.AI", URL: "https://export.arxiv.org/list/cs.AI/pastweek"},
				},
			},
			{Name: "biorxiv", Scanner: "biorxiv"},
			{Name: "medrxiv", Scanner: "medrxiv"},
		},
	}
}
