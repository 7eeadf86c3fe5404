package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tramitalabs/convoca/internal/domain"
)

func newTestSelector() *Selector {
	return NewSelector(SelectorConfig{
		CheapModel:   "gpt-4o-mini",
		PremiumModel: "gpt-4o",
	})
}

func TestSelector_Select_BaseScores(t *testing.T) {
	s := newTestSelector()

	tests := []struct {
		intent     domain.Intent
		complexity int
		tier       domain.ModelTier
		escalate   bool
	}{
		{domain.IntentGreeting, 5, domain.TierCheap, false},
		{domain.IntentSearch, 10, domain.TierCheap, false},
		{domain.IntentOther, 20, domain.TierCheap, false},
		{domain.IntentExplain, 40, domain.TierCheap, true},
		{domain.IntentRecommend, 45, domain.TierCheap, true},
		{domain.IntentCompare, 50, domain.TierCheap, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			sel := s.Select(tt.intent, "ayudas", 5)
			assert.Equal(t, tt.complexity, sel.Complexity)
			assert.Equal(t, tt.tier, sel.Tier)
			assert.Equal(t, tt.escalate, sel.Escalatable)
		})
	}
}

func TestSelector_Select_KeywordsPushToPremium(t *testing.T) {
	s := newTestSelector()

	// COMPARE base 50 plus one comparison keyword crosses 60
	sel := s.Select(domain.IntentCompare, "compara estas ayudas", 5)
	assert.Equal(t, 60, sel.Complexity)
	assert.Equal(t, domain.TierPremium, sel.Tier)
	assert.False(t, sel.Escalatable)
}

func TestSelector_Select_LongQueryAndLargeContext(t *testing.T) {
	s := newTestSelector()

	long := strings.Repeat("palabra ", 25)
	// SEARCH base 10, +15 long query, +10 large context
	sel := s.Select(domain.IntentSearch, long, 12)
	assert.Equal(t, 35, sel.Complexity)
	assert.Equal(t, domain.TierCheap, sel.Tier)
	assert.True(t, sel.Escalatable)
}

func TestSelector_ShouldRetry(t *testing.T) {
	s := newTestSelector()

	assert.True(t, s.ShouldRetry(domain.TierCheap, 0.3))
	assert.True(t, s.ShouldRetry(domain.TierCheap, 0.59))
	assert.False(t, s.ShouldRetry(domain.TierCheap, 0.6))
	assert.False(t, s.ShouldRetry(domain.TierCheap, 0.9))
	assert.False(t, s.ShouldRetry(domain.TierPremium, 0.1))
}

func TestSelector_ModelName(t *testing.T) {
	s := newTestSelector()

	assert.Equal(t, "gpt-4o-mini", s.ModelName(domain.TierCheap))
	assert.Equal(t, "gpt-4o", s.ModelName(domain.TierPremium))
}
