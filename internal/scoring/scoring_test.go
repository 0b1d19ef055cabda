package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MedScanner/internal/domain"
)

var now = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func newRanker() *Ranker {
	return NewRanker(DefaultWeights(), DefaultVocabulary())
}

func TestRelevanceScore(t *testing.T) {
	r := newRanker()

	cases := []struct {
		name    string
		article domain.Article
		want    float64
	}{
		{
			name:    "high, medium and combo",
			article: domain.Article{Title: "AI radiology tool helps patients in hospital"},
			want:    0.9,
		},
		{
			name:    "negative only",
			article: domain.Article{Title: "Football club uses AI for scouting"},
			want:    0,
		},
		{
			name:    "clamped at one",
			article: domain.Article{Title: "Medical AI and clinical AI", Summary: "AI diagnosis gets FDA approval after clinical validation"},
			want:    1,
		},
		{
			name:    "ai must be a whole word",
			article: domain.Article{Title: "Hospital said it will expand"},
			want:    0.1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, r.RelevanceScore(tc.article), 1e-9)
		})
	}
}

func TestRecencyScoreBoundaries(t *testing.T) {
	r := newRanker()
	at := func(age time.Duration) domain.Article { return domain.Article{PublishedAt: now.Add(-age)} }

	assert.Equal(t, 1.0, r.RecencyScore(at(6*time.Hour), now))
	assert.Equal(t, 0.8, r.RecencyScore(at(6*time.Hour+time.Second), now))
	assert.Equal(t, 0.8, r.RecencyScore(at(24*time.Hour), now))
	assert.Equal(t, 0.6, r.RecencyScore(at(30*time.Hour), now))
	assert.Equal(t, 0.4, r.RecencyScore(at(72*time.Hour), now))
	assert.Equal(t, 0.2, r.RecencyScore(at(100*time.Hour), now))
	assert.Equal(t, 0.5, r.RecencyScore(domain.Article{}, now))
}

func TestEligibleAndCrossDomain(t *testing.T) {
	r := newRanker()

	assert.True(t, r.Eligible(0.2, 0.2))
	assert.True(t, r.Eligible(0.1, 0.8))
	assert.False(t, r.Eligible(0.1, 0.6))
	assert.False(t, r.Eligible(0.05, 1.0))

	assert.InDelta(t, 0.7*0.5+0.3*0.8, r.Combined(0.5, 0.8), 1e-9)
	assert.True(t, r.CrossDomain(0.59))
	assert.False(t, r.CrossDomain(0.6))
}

func TestRankDedupsFiltersAndSorts(t *testing.T) {
	r := newRanker()

	var candidates []domain.Article
	for i := 0; i < 12; i++ {
		candidates = append(candidates, domain.Article{
			Title:       fmt.Sprintf("AI healthcare startup %d", i),
			URL:         fmt.Sprintf("https://news/%d", i),
			PublishedAt: now.Add(-time.Duration(i*7) * time.Hour),
		})
	}
	for i := 0; i < 8; i++ {
		candidates = append(candidates, domain.Article{
			Title: "Duplicate",
			URL:   fmt.Sprintf("https://news/%d", i),
		})
	}
	for i := 0; i < 25; i++ {
		candidates = append(candidates, domain.Article{
			Title:       "Quarterly earnings report",
			URL:         fmt.Sprintf("https://other/%d", i),
			PublishedAt: now.Add(-96 * time.Hour),
		})
	}
	require.Len(t, candidates, 45)

	ranked := r.Rank(candidates, now)
	require.Len(t, ranked, 12)
	for i, s := range ranked {
		assert.Contains(t, s.Title, "AI healthcare startup")
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].CombinedScore, s.CombinedScore)
		}
	}
	assert.Equal(t, "https://news/0", ranked[0].URL)
}

func TestRankCapsAndKeepsTieOrder(t *testing.T) {
	r := newRanker()

	var candidates []domain.Article
	for i := 0; i < 50; i++ {
		candidates = append(candidates, domain.Article{
			Title:       "Clinical AI rollout",
			URL:         fmt.Sprintf("https://news/%d", i),
			PublishedAt: now.Add(-time.Hour),
		})
	}

	ranked := r.Rank(candidates, now)
	require.Len(t, ranked, 40)
	for i, s := range ranked {
		assert.Equal(t, fmt.Sprintf("https://news/%d", i), s.URL)
	}
}

func TestNewRankerZeroWeightsUseDefaults(t *testing.T) {
	r := NewRanker(Weights{}, DefaultVocabulary())
	assert.Equal(t, 40, r.Weights().MaxResults)
}
