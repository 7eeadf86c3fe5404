package domain

import "time"

// QueryLog is one recorded conversation or search turn. query_logs is
// the only table this service writes; inserts are best effort and never
// fail the request that produced them.
type QueryLog struct {
	ID         int64
	SessionID  string
	Message    string
	Intent     Intent
	TotalFound int
	ModelUsed  string
	Confidence float64
	Complexity int
	LatencyMs  int
	CreatedAt  time.Time
}
