package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tramitalabs/convoca/internal/domain"
)

// QueryLogRepository persists completed turns. query_logs is the only
// table this service writes.
type QueryLogRepository struct {
	db dbtx
}

func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{db: pool}
}

func (r *QueryLogRepository) InsertQueryLog(ctx context.Context, entry *domain.QueryLog) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO query_logs
			(session_id, message, intent, total_found, model_used, confidence, complexity, latency_ms, created_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		nullableString(entry.SessionID),
		entry.Message,
		string(entry.Intent),
		entry.TotalFound,
		entry.ModelUsed,
		entry.Confidence,
		entry.Complexity,
		entry.LatencyMs,
		createdAt,
	)
	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
