package relevance

import (
	"context"
	"fmt"
	"strings"

	"MedScanner/internal/domain"
	"MedScanner/internal/llmjson"
	"MedScanner/internal/ports"
)

// DefaultMaxInputChars bounds the article text sent to the relevance check.
const DefaultMaxInputChars = 8000

const llmPrompt = `You are a medical AI research expert. Analyze this article and determine:
1. Is this article of substantially high quality with very direct medical relevance such that a lab of medical AI researchers should be aware of it? Note that these medical AI researchers are mostly interested in cutting-edge AI research such as LLMs.
2. If yes, briefly describe the specific medical application or relevance (1-2 sentences).

Return ONLY valid JSON with this format:
{
    "is_directly_medical": true/false,
    "medical_application": "Description of medical relevance" (or null if not directly medical)
}

Article: %s
`

// LLMChecker asks a language model whether an article is directly medically relevant.
type LLMChecker struct {
	llm      ports.LLM
	maxInput int
}

// NewLLMChecker wires the model; maxInput <= 0 selects DefaultMaxInputChars.
func NewLLMChecker(llm ports.LLM, maxInput int) *LLMChecker {
	if maxInput <= 0 {
		maxInput = DefaultMaxInputChars
	}
	return &LLMChecker{llm: llm, maxInput: maxInput}
}

type llmVerdict struct {
	IsDirectlyMedical      *bool   `json:"is_directly_medical"`
	IsDirectlyMedicalCamel *bool   `json:"isDirectlyMedical"`
	Application            *string `json:"medical_application"`
	ApplicationCamel       *string `json:"medicalApplication"`
}

// Check returns the model's verdict. Any failure is wrapped in domain.ErrRelevanceCheck
// and must be treated as not relevant by the caller.
func (c *LLMChecker) Check(ctx context.Context, text string) (domain.RelevanceDecision, error) {
	if c == nil || c.llm == nil {
		return domain.RelevanceDecision{}, fmt.Errorf("%w: no language model configured", domain.ErrRelevanceCheck)
	}

	reply, err := c.llm.Complete(ctx, fmt.Sprintf(llmPrompt, Truncate(text, c.maxInput)))
	if err != nil {
		return domain.RelevanceDecision{}, fmt.Errorf("%w: %v", domain.ErrRelevanceCheck, err)
	}

	var verdict llmVerdict
	if err := llmjson.Decode(reply, &verdict); err != nil {
		return domain.RelevanceDecision{}, fmt.Errorf("%w: %v", domain.ErrRelevanceCheck, err)
	}

	flag := verdict.IsDirectlyMedical
	if flag == nil {
		flag = verdict.IsDirectlyMedicalCamel
	}
	if flag == nil {
		return domain.RelevanceDecision{}, fmt.Errorf("%w: reply lacks is_directly_medical", domain.ErrRelevanceCheck)
	}

	decision := domain.RelevanceDecision{Relevant: *flag}
	app := verdict.Application
	if app == nil {
		app = verdict.ApplicationCamel
	}
	if decision.Relevant && app != nil {
		decision.ApplicationContext = strings.TrimSpace(*app)
	}
	return decision, nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
