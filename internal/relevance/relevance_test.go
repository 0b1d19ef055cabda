package relevance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MedScanner/internal/catalog"
	"MedScanner/internal/domain"
)

type stubLLM struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func TestKeywordMatcherWholeWords(t *testing.T) {
	m := NewKeywordMatcher(catalog.MedicalKeywords)

	assert.True(t, m.Match("Deep learning for MRI segmentation"))
	assert.True(t, m.Match("Reducing readmissions in the HOSPITAL"))
	assert.True(t, m.Match("An ct scan triage model"))
	assert.False(t, m.Match("Careful benchmarking of transformers"), "care must not match inside careful")
	assert.False(t, m.Match("Scaling laws for code models"))
	assert.Equal(t, []string{"patient", "clinical trial"}, m.Matches("Patient outcomes in a clinical trial with patient cohorts"))
}

func TestKeywordMatcherEmpty(t *testing.T) {
	assert.False(t, NewKeywordMatcher(nil).Match("patient"))
	var m *KeywordMatcher
	assert.False(t, m.Match("patient"))
}

func TestLLMCheckerParsesVerdict(t *testing.T) {
	llm := &stubLLM{reply: "```json\n{\"is_directly_medical\": true, \"medical_application\": \" Triage of chest X-rays. \"}\n```"}
	decision, err := NewLLMChecker(llm, 0).Check(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, decision.Relevant)
	assert.Equal(t, "Triage of chest X-rays.", decision.ApplicationContext)
}

func TestLLMCheckerAcceptsCamelCase(t *testing.T) {
	llm := &stubLLM{reply: `{"isDirectlyMedical": false, "medicalApplication": null}`}
	decision, err := NewLLMChecker(llm, 0).Check(context.Background(), "text")
	require.NoError(t, err)
	assert.False(t, decision.Relevant)
	assert.Empty(t, decision.ApplicationContext)
}

func TestLLMCheckerFailures(t *testing.T) {
	cases := map[string]*stubLLM{
		"call error":   {err: errors.New("503")},
		"not json":     {reply: "Yes, this is medical."},
		"missing flag": {reply: `{"medical_application": "x"}`},
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewLLMChecker(llm, 0).Check(context.Background(), "text")
			require.ErrorIs(t, err, domain.ErrRelevanceCheck)
		})
	}
}

func TestLLMCheckerTruncatesInput(t *testing.T) {
	llm := &stubLLM{reply: `{"is_directly_medical": false}`}
	_, err := NewLLMChecker(llm, 10).Check(context.Background(), strings.Repeat("x", 50))
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Article: xxxxxxxxxx\n")
	assert.NotContains(t, llm.prompts[0], strings.Repeat("x", 11))
}

func TestGateKeywordPolicySkipsModel(t *testing.T) {
	llm := &stubLLM{reply: `{"is_directly_medical": true}`}
	gate := NewGate(NewKeywordMatcher(catalog.MedicalKeywords), NewLLMChecker(llm, 0), catalog.TrustedSources)

	hit, err := gate.Decide(context.Background(), domain.Article{Title: "LLMs for oncology", Source: "biorxiv"}, PolicyKeyword)
	require.NoError(t, err)
	assert.True(t, hit.Relevant)

	miss, err := gate.Decide(context.Background(), domain.Article{Title: "Soft robotics", Summary: "grippers", Source: "biorxiv"}, PolicyKeyword)
	require.NoError(t, err)
	assert.False(t, miss.Relevant)
	assert.Empty(t, llm.prompts)
}

func TestGateTrustedSourceSkipsKeywords(t *testing.T) {
	gate := NewGate(NewKeywordMatcher(catalog.MedicalKeywords), nil, catalog.TrustedSources)

	decision, err := gate.Decide(context.Background(), domain.Article{Title: "Editorial", Source: "The Lancet Digital Health"}, PolicyKeyword)
	require.NoError(t, err)
	assert.True(t, decision.Relevant)
	assert.False(t, gate.Trusted("Whole Foods Weekly"), "who must match as a whole word only")
}

func TestGateFailsClosed(t *testing.T) {
	gate := NewGate(nil, NewLLMChecker(&stubLLM{err: errors.New("quota")}, 0), nil)

	decision, err := gate.Decide(context.Background(), domain.Article{Title: "x", URL: "https://a/1"}, PolicyLLM)
	require.ErrorIs(t, err, domain.ErrRelevanceCheck)
	assert.False(t, decision.Relevant)
}

func TestGateKeywordThenLLM(t *testing.T) {
	llm := &stubLLM{reply: `{"is_directly_medical": true, "medical_application": "sepsis"}`}
	gate := NewGate(NewKeywordMatcher([]string{"sepsis"}), NewLLMChecker(llm, 0), nil)

	decision, err := gate.Decide(context.Background(), domain.Article{Title: "Robots"}, PolicyKeywordLLM)
	require.NoError(t, err)
	assert.False(t, decision.Relevant)
	assert.Empty(t, llm.prompts)

	decision, err = gate.Decide(context.Background(), domain.Article{Title: "Sepsis alerts"}, PolicyKeywordLLM)
	require.NoError(t, err)
	assert.True(t, decision.Relevant)
	assert.Equal(t, "sepsis", decision.ApplicationContext)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(" Keyword+LLM ")
	require.NoError(t, err)
	assert.Equal(t, PolicyKeywordLLM, p)
	_, err = ParsePolicy("magic")
	require.Error(t, err)
	assert.Equal(t, PolicyKeyword, DefaultPolicy("medrxiv"))
	assert.Equal(t, PolicyLLM, DefaultPolicy("rss"))
}
