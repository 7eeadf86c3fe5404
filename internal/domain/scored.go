package domain

// ScoredGrant pairs a grant with the scores accumulated through the search
// pipeline. Similarity is set on the semantic path only; RRF and Final are
// filled in by fusion. Output lists are sorted by Final descending, ties
// broken by GrantID ascending.
type ScoredGrant struct {
	GrantID    int64
	Grant      *Grant
	Similarity float64
	RRF        float64
	Final      float64
}
