package chat

import (
	"strings"

	"github.com/tramitalabs/convoca/internal/domain"
)

// Complexity scoring defaults. Base scores reflect how much reasoning
// each intent demands from the model; the thresholds split the scale
// into cheap, cheap-but-escalatable, and premium bands.
const (
	DefaultEscalateThreshold = 30
	DefaultPremiumThreshold  = 60
	DefaultMinConfidence     = 0.6

	longQueryWords     = 20
	largeContextGrants = 10
)

var intentBaseScore = map[domain.Intent]int{
	domain.IntentGreeting:  5,
	domain.IntentSearch:    10,
	domain.IntentExplain:   40,
	domain.IntentCompare:   50,
	domain.IntentRecommend: 45,
	domain.IntentOther:     20,
}

// Keywords that signal the user wants comparison or justification, not
// just a list. Each hit adds to the complexity score.
var complexityKeywords = []string{
	"compara", "comparar", "versus", " vs ", "diferencia", "diferencias",
	"por qué", "por que", "justifica", "justificar", "razona", "ventajas",
	"desventajas", "pros", "contras", "mejor", "peor", "frente a",
	"why", "compare", "better", "worse",
}

// Selector maps an (intent, query, context size) triple to a model
// tier plus the complexity score that produced it.
type Selector struct {
	cheapModel    string
	premiumModel  string
	escalateAbove int
	premiumAbove  int
	minConfidence float64
}

type SelectorConfig struct {
	CheapModel        string
	PremiumModel      string
	EscalateThreshold int
	PremiumThreshold  int
	MinConfidence     float64
}

func NewSelector(cfg SelectorConfig) *Selector {
	if cfg.EscalateThreshold <= 0 {
		cfg.EscalateThreshold = DefaultEscalateThreshold
	}
	if cfg.PremiumThreshold <= 0 {
		cfg.PremiumThreshold = DefaultPremiumThreshold
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	return &Selector{
		cheapModel:    cfg.CheapModel,
		premiumModel:  cfg.PremiumModel,
		escalateAbove: cfg.EscalateThreshold,
		premiumAbove:  cfg.PremiumThreshold,
		minConfidence: cfg.MinConfidence,
	}
}

// Selection is the tier decision for one turn.
type Selection struct {
	Tier       domain.ModelTier
	Complexity int
	// Escalatable marks the middle band: cheap tier now, one premium
	// retry allowed if the answer comes back under the confidence bar.
	Escalatable bool
}

// Select accumulates the complexity score and picks a tier. contextSize
// is the number of grants that will be fed to the model.
func (s *Selector) Select(intent domain.Intent, queryText string, contextSize int) Selection {
	score := intentBaseScore[intent]

	lowered := " " + strings.ToLower(queryText) + " "
	for _, kw := range complexityKeywords {
		if strings.Contains(lowered, kw) {
			score += 10
		}
	}
	if len(strings.Fields(queryText)) > longQueryWords {
		score += 15
	}
	if contextSize > largeContextGrants {
		score += 10
	}

	sel := Selection{Complexity: score, Tier: domain.TierCheap}
	switch {
	case score >= s.premiumAbove:
		sel.Tier = domain.TierPremium
	case score >= s.escalateAbove:
		sel.Escalatable = true
	}
	return sel
}

// ShouldRetry reports whether a completed cheap-tier call with the
// given confidence must be re-run once on the premium tier.
func (s *Selector) ShouldRetry(tier domain.ModelTier, confidence float64) bool {
	return tier == domain.TierCheap && confidence < s.minConfidence
}

// ModelName resolves a tier to the configured provider model name.
func (s *Selector) ModelName(tier domain.ModelTier) string {
	if tier == domain.TierPremium {
		return s.premiumModel
	}
	return s.cheapModel
}
