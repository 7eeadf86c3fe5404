package domain

// Intent is the classified purpose of a user utterance.
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentSearch    Intent = "search"
	IntentExplain   Intent = "explain"
	IntentCompare   Intent = "compare"
	IntentRecommend Intent = "recommend"
	IntentOther     Intent = "other"
)

// IntentResult carries the classification outcome plus any filters the
// classifier pulled out of the raw text.
type IntentResult struct {
	Intent     Intent
	Confidence float64 // in (0,1)
	Extracted  FilterSpec
}

// ModelTier is the cost/quality class of completion backend used for a turn.
type ModelTier string

const (
	TierCheap   ModelTier = "cheap"
	TierPremium ModelTier = "premium"
)

// Sentinel values reported in the model_used response field when no real
// model answered the turn.
const (
	ModelUsedClarification = "system-clarification"
	ModelUsedError         = "system-error"
)
