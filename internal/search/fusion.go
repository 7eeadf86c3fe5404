package search

import (
	"sort"
	"strings"

	"github.com/tramitalabs/convoca/internal/domain"
)

// Defaults for the retrieval tuning constants. The similarity threshold and
// boost multipliers were calibrated on a small labeled fixture set.
const (
	DefaultCandidatePoolSize = 50
	DefaultRRFConstant       = 60
	DefaultMinSimilarity     = 0.25
	DefaultTitleExactBoost   = 3.0
	DefaultTitleMatchBoost   = 2.0
	DefaultOrgMatchBoost     = 2.0

	// words shorter than this are ignored in overlap checks so articles
	// and prepositions ("de", "en") cannot trigger a boost
	minOverlapWordLen = 3
)

// FusionConfig tunes rank fusion and score boosting. Zero values fall back
// to the package defaults.
type FusionConfig struct {
	RRFConstant     int
	TitleExactBoost float64
	TitleMatchBoost float64
	OrgMatchBoost   float64
}

// Engine merges the semantic and filter candidate pools into one ranked
// list. It is stateless and safe for concurrent use.
type Engine struct {
	cfg FusionConfig
}

// NewEngine creates a fusion engine, filling unset config fields with defaults.
func NewEngine(cfg FusionConfig) *Engine {
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = DefaultRRFConstant
	}
	if cfg.TitleExactBoost <= 0 {
		cfg.TitleExactBoost = DefaultTitleExactBoost
	}
	if cfg.TitleMatchBoost <= 0 {
		cfg.TitleMatchBoost = DefaultTitleMatchBoost
	}
	if cfg.OrgMatchBoost <= 0 {
		cfg.OrgMatchBoost = DefaultOrgMatchBoost
	}
	return &Engine{cfg: cfg}
}

// Fuse combines the two candidate pools according to the query shape:
// filter-only requests keep the store's publication-date ordering,
// semantic-only requests keep similarity ordering plus boosts, and hybrid
// requests are merged with Reciprocal Rank Fusion. Explicit filters are
// re-enforced on the fused set: no output grant may violate one.
func (e *Engine) Fuse(query string, filters domain.FilterSpec, semanticPool, filterPool []domain.ScoredGrant) []domain.ScoredGrant {
	query = strings.TrimSpace(query)
	predicate := Compile(filters)

	if query == "" {
		// filter-only path: the pool arrives ordered by publication date
		return enforce(filterPool, filters, predicate)
	}

	var out []domain.ScoredGrant
	if filters.IsEmpty() {
		// semantic-only path
		out = make([]domain.ScoredGrant, len(semanticPool))
		copy(out, semanticPool)
		for i := range out {
			out[i].Final = out[i].Similarity
		}
	} else {
		out = e.reciprocalRankFusion(semanticPool, filterPool)
		out = enforce(out, filters, predicate)
	}

	e.applyBoosts(query, out)
	sortScored(out)
	return out
}

// reciprocalRankFusion scores every grant appearing in either pool by
// sum of 1/(K+rank) over the pools that contain it, rank counted from 1.
func (e *Engine) reciprocalRankFusion(semanticPool, filterPool []domain.ScoredGrant) []domain.ScoredGrant {
	k := float64(e.cfg.RRFConstant)
	merged := make(map[int64]*domain.ScoredGrant)
	order := make([]int64, 0, len(semanticPool)+len(filterPool))

	addPool := func(pool []domain.ScoredGrant) {
		for i := range pool {
			entry := &pool[i]
			cand, ok := merged[entry.GrantID]
			if !ok {
				cloned := *entry
				cloned.RRF = 0
				merged[entry.GrantID] = &cloned
				order = append(order, entry.GrantID)
				cand = merged[entry.GrantID]
			}
			cand.RRF += 1 / (k + float64(i+1))
			if entry.Similarity > cand.Similarity {
				cand.Similarity = entry.Similarity
			}
			if cand.Grant == nil && entry.Grant != nil {
				cand.Grant = entry.Grant
			}
		}
	}
	addPool(semanticPool)
	addPool(filterPool)

	out := make([]domain.ScoredGrant, 0, len(merged))
	for _, id := range order {
		cand := merged[id]
		cand.Final = cand.RRF
		out = append(out, *cand)
	}
	return out
}

// enforce drops every grant that violates an explicit filter. Grants whose
// record could not be loaded cannot be verified and are excluded as well.
func enforce(results []domain.ScoredGrant, filters domain.FilterSpec, predicate Predicate) []domain.ScoredGrant {
	if filters.IsEmpty() {
		return results
	}
	out := make([]domain.ScoredGrant, 0, len(results))
	for _, r := range results {
		if r.Grant == nil || !predicate(r.Grant) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// applyBoosts multiplies scores for title and organization keyword hits.
// Title and organization boosts compose when both apply.
func (e *Engine) applyBoosts(query string, results []domain.ScoredGrant) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return
	}
	qWords := overlapWords(q)

	for i := range results {
		g := results[i].Grant
		if g == nil {
			continue
		}
		boost := 1.0

		title := strings.ToLower(g.Title)
		switch {
		case title != "" && q == title:
			boost *= e.cfg.TitleExactBoost
		case title != "" && (strings.Contains(title, q) || wordsOverlap(qWords, title)):
			boost *= e.cfg.TitleMatchBoost
		}

		if org := strings.ToLower(g.Organization); org != "" && wordsOverlap(qWords, org) {
			boost *= e.cfg.OrgMatchBoost
		}

		results[i].Final *= boost
	}
}

func overlapWords(s string) []string {
	fields := strings.Fields(s)
	words := fields[:0]
	for _, w := range fields {
		if len(w) >= minOverlapWordLen {
			words = append(words, w)
		}
	}
	return words
}

func wordsOverlap(queryWords []string, text string) bool {
	textWords := strings.Fields(text)
	for _, qw := range queryWords {
		for _, tw := range textWords {
			if len(tw) >= minOverlapWordLen && qw == tw {
				return true
			}
		}
	}
	return false
}

// sortScored orders by final score descending, ties broken by grant id
// ascending for determinism.
func sortScored(results []domain.ScoredGrant) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Final != results[j].Final {
			return results[i].Final > results[j].Final
		}
		return results[i].GrantID < results[j].GrantID
	})
}
