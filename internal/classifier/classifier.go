// Package classifier turns article text into validated category, summary, and project labels
// using a single language-model call.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"MedScanner/internal/catalog"
	"MedScanner/internal/domain"
	"MedScanner/internal/llmjson"
	"MedScanner/internal/ports"
)

const (
	// DefaultMaxInputChars bounds the article text embedded in the prompt.
	DefaultMaxInputChars = 8000
	maxBullets           = 3
)

// Options tune prompt construction.
type Options struct {
	MaxInputChars int
}

// Classifier builds the classification prompt and validates the reply.
type Classifier struct {
	llm     ports.LLM
	catalog catalog.Catalog
	opts    Options
	logger  *slog.Logger
}

// New wires the model and the immutable catalog.
func New(llm ports.LLM, cat catalog.Catalog, opts Options, log *slog.Logger) *Classifier {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	return &Classifier{llm: llm, catalog: cat, opts: opts, logger: log}
}

// Classify makes exactly one model call. Every failure wraps domain.ErrClassification.
func (c *Classifier) Classify(ctx context.Context, text, applicationContext string) (domain.ClassificationResult, error) {
	if c.llm == nil {
		return domain.ClassificationResult{}, fmt.Errorf("%w: no language model configured", domain.ErrClassification)
	}

	reply, err := c.llm.Complete(ctx, c.Prompt(text, applicationContext))
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("%w: %v", domain.ErrClassification, err)
	}

	result, err := Parse(reply, c.catalog)
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	if result.OffTaxonomy && c.logger != nil {
		c.logger.Warn("category outside taxonomy", "main", result.MainCategory, "sub", result.Subcategory)
	}
	return result, nil
}

// Prompt renders the classification request.
func (c *Classifier) Prompt(text, applicationContext string) string {
	var b strings.Builder
	b.WriteString("Return ONLY valid JSON (no markdown, no explanation, no code block) with the following keys: ")
	b.WriteString("{title, bullet_summary, main_category, subcategory, project} for the following article.\n")
	b.WriteString("bullet_summary should be a list of 1-3 concise bullet points, e.g.:\n")
	b.WriteString(`{"bullet_summary": ["• Point 1", "• Point 2", "• Point 3"]}` + "\n\n")
	b.WriteString("Here is a list of ongoing lab projects. Assign the article to all relevant projects by name (as a list), ")
	b.WriteString(`or use ["No News"] if it does not fit any specific project.` + "\n")
	b.WriteString(`For example: {"project": ["Project Alpha", "Project Beta"]} or {"project": ["No News"]}` + "\n")
	b.WriteString(c.catalog.Projects.Prompt())
	b.WriteString("\n\n")
	b.WriteString(c.catalog.Taxonomy.Prompt())
	if applicationContext = strings.TrimSpace(applicationContext); applicationContext != "" {
		b.WriteString("\nThis AI research has the following medical application: ")
		b.WriteString(applicationContext)
		b.WriteString("\nPlease categorize based on this medical application. ")
		b.WriteString("However, keep the bullet summary focused on the article only.\n")
	}
	b.WriteString("\nArticle: \"\"\"")
	b.WriteString(truncate(text, c.opts.MaxInputChars))
	b.WriteString("\"\"\"")
	return b.String()
}

// rawResult mirrors the reply with every field optional so that absence is detectable.
type rawResult struct {
	Title              *string         `json:"title"`
	BulletSummary      json.RawMessage `json:"bullet_summary"`
	BulletSummaryCamel json.RawMessage `json:"bulletSummary"`
	MainCategory       *string         `json:"main_category"`
	MainCategoryCamel  *string         `json:"mainCategory"`
	Subcategory        *string         `json:"subcategory"`
	Project            json.RawMessage `json:"project"`
	Projects           json.RawMessage `json:"projects"`
}

// Parse validates a raw model reply against the catalog.
func Parse(reply string, cat catalog.Catalog) (domain.ClassificationResult, error) {
	var raw rawResult
	if err := llmjson.Decode(reply, &raw); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("%w: %v", domain.ErrClassification, err)
	}

	mainCategory := firstString(raw.MainCategory, raw.MainCategoryCamel)
	bullets := firstRaw(raw.BulletSummary, raw.BulletSummaryCamel)
	project := firstRaw(raw.Project, raw.Projects)

	var missing []string
	if raw.Title == nil {
		missing = append(missing, "title")
	}
	if bullets == nil {
		missing = append(missing, "bullet_summary")
	}
	if mainCategory == nil {
		missing = append(missing, "main_category")
	}
	if raw.Subcategory == nil {
		missing = append(missing, "subcategory")
	}
	if project == nil {
		missing = append(missing, "project")
	}
	if len(missing) > 0 {
		return domain.ClassificationResult{}, fmt.Errorf("%w: missing keys %s", domain.ErrClassification, strings.Join(missing, ", "))
	}

	summary, err := stringList(bullets, "\n")
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("%w: bullet_summary: %v", domain.ErrClassification, err)
	}
	summary = cleanBullets(summary)
	if len(summary) == 0 {
		return domain.ClassificationResult{}, fmt.Errorf("%w: bullet_summary is empty", domain.ErrClassification)
	}

	names, err := stringList(project, "\n", ",")
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("%w: project: %v", domain.ErrClassification, err)
	}

	main, sub, known := cat.Taxonomy.Canonical(strings.TrimSpace(*mainCategory), strings.TrimSpace(*raw.Subcategory))
	if strings.TrimSpace(main) == "" {
		main, known = catalog.OtherCategory, false
	}

	return domain.ClassificationResult{
		Title:         strings.TrimSpace(*raw.Title),
		BulletSummary: summary,
		MainCategory:  main,
		Subcategory:   sub,
		Projects:      NormalizeProjects(names, cat.Projects),
		OffTaxonomy:   !known,
	}, nil
}

// NormalizeProjects keeps configured project names, deduplicated, in reply order.
// The result is never empty: with no match it is exactly the "No News" sentinel.
func NormalizeProjects(names []string, projects catalog.Projects) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, name := range names {
		canonical, ok := projects.Lookup(name)
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	if len(out) == 0 {
		return []string{domain.NoProjectSentinel}
	}
	return out
}

// stringList accepts a JSON list of strings or a single string split on the first
// separator it contains. JSON null yields an empty list.
func stringList(raw json.RawMessage, separators ...string) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("expected string or list of strings")
	}
	for _, sep := range separators {
		if strings.Contains(single, sep) {
			return strings.Split(single, sep), nil
		}
	}
	return []string{single}, nil
}

func cleanBullets(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
		if len(out) == maxBullets {
			break
		}
	}
	return out
}

func firstString(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// firstRaw prefers the first non-null value and falls back to an explicit null.
func firstRaw(values ...json.RawMessage) json.RawMessage {
	var present json.RawMessage
	for _, v := range values {
		if len(v) == 0 {
			continue
		}
		if string(v) != "null" {
			return v
		}
		if present == nil {
			present = v
		}
	}
	return present
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
