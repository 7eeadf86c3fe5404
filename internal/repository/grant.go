package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/tramitalabs/convoca/internal/domain"
)

// dbtx is the common surface of pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const grantColumns = `id, bdns_code, organization, is_open, regions, beneficiary_types,
	application_start, application_end, budget, sector, title, summary, published_at`

// GrantRepository reads the grant catalog. The tables are owned by the
// ingestion pipeline; this service never writes them.
type GrantRepository struct {
	db dbtx
}

func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{db: pool}
}

// SearchByEmbedding runs the native pgvector cosine query, joining each
// embedding row to its grant. Similarity is 1 minus cosine distance.
func (r *GrantRepository) SearchByEmbedding(ctx context.Context, vector []float32, limit int) ([]domain.ScoredGrant, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s, 1 - (ge.embedding <=> $1) AS similarity
		FROM grant_embeddings ge
		JOIN grants g ON g.id = ge.grant_id
		ORDER BY ge.embedding <=> $1
		LIMIT $2`, prefixColumns("g", grantColumns)),
		pgvector.NewVector(vector), limit,
	)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	var results []domain.ScoredGrant
	for rows.Next() {
		var g domain.Grant
		var similarity float64
		if err := scanGrant(rows, &g, &similarity); err != nil {
			return nil, err
		}
		results = append(results, domain.ScoredGrant{
			GrantID:    g.ID,
			Grant:      &g,
			Similarity: similarity,
			Final:      similarity,
		})
	}
	return results, rows.Err()
}

// SearchByFilters translates a FilterSpec into SQL. Ordering is newest
// publication first with the id as a stable tie-break, matching the
// in-memory filter semantics.
func (r *GrantRepository) SearchByFilters(ctx context.Context, filters domain.FilterSpec, limit int) ([]domain.ScoredGrant, error) {
	if limit <= 0 {
		limit = 200
	}

	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if org := strings.TrimSpace(filters.Organization); org != "" {
		conds = append(conds, fmt.Sprintf("organization ILIKE '%%' || %s || '%%'", arg(org)))
	}
	if len(filters.Regions) > 0 {
		// stored regions look like "ES213 - Bizkaia"; match the code as a substring
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(regions) AS region WHERE region ILIKE ANY(SELECT '%%' || code || '%%' FROM unnest(%s::text[]) AS code))",
			arg(filters.Regions)))
	}
	if filters.Open != nil {
		conds = append(conds, fmt.Sprintf("is_open = %s", arg(*filters.Open)))
	}
	if filters.DateFrom != nil {
		conds = append(conds, fmt.Sprintf("(application_end IS NULL OR application_end >= %s)", arg(*filters.DateFrom)))
	}
	if filters.DateTo != nil {
		conds = append(conds, fmt.Sprintf("(application_start IS NULL OR application_start <= %s)", arg(*filters.DateTo)))
	}
	if sector := strings.TrimSpace(filters.Sector); sector != "" {
		conds = append(conds, fmt.Sprintf("sector ILIKE %s", arg(sector)))
	}

	query := "SELECT " + grantColumns + ", 0 AS similarity FROM grants"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY published_at DESC, id ASC LIMIT %s", arg(limit))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	var results []domain.ScoredGrant
	for rows.Next() {
		var g domain.Grant
		var similarity float64
		if err := scanGrant(rows, &g, &similarity); err != nil {
			return nil, err
		}
		results = append(results, domain.ScoredGrant{GrantID: g.ID, Grant: &g})
	}
	return results, rows.Err()
}

// GetByID fetches one grant.
func (r *GrantRepository) GetByID(ctx context.Context, id int64) (*domain.Grant, error) {
	row := r.db.QueryRow(ctx, "SELECT "+grantColumns+", 0 AS similarity FROM grants WHERE id = $1", id)

	var g domain.Grant
	var similarity float64
	if err := scanGrant(row, &g, &similarity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGrantNotFound
		}
		return nil, storeError(err)
	}
	return &g, nil
}

// GetByIDs fetches grants in the order the ids were requested. Missing
// ids are silently dropped.
func (r *GrantRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Grant, error) {
	if len(ids) == 0 {
		return []*domain.Grant{}, nil
	}

	rows, err := r.db.Query(ctx, "SELECT "+grantColumns+", 0 AS similarity FROM grants WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	byID := make(map[int64]*domain.Grant, len(ids))
	for rows.Next() {
		var g domain.Grant
		var similarity float64
		if err := scanGrant(rows, &g, &similarity); err != nil {
			return nil, err
		}
		byID[g.ID] = &g
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.Grant, 0, len(ids))
	for _, id := range ids {
		if g, ok := byID[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// ListEmbeddings loads every embedding row for the in-memory ranker.
func (r *GrantRepository) ListEmbeddings(ctx context.Context) ([]domain.GrantEmbedding, error) {
	rows, err := r.db.Query(ctx, `SELECT grant_id, embedding, model_name FROM grant_embeddings`)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	var out []domain.GrantEmbedding
	for rows.Next() {
		var e domain.GrantEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&e.GrantID, &vec, &e.ModelName); err != nil {
			return nil, err
		}
		e.Embedding = vec.Slice()
		out = append(out, e)
	}
	return out, rows.Err()
}

// ProbeVectorSupport runs a no-op cosine query once at startup. An
// undefined-operator error means the store has no vector support and
// the in-memory ranker must be used; other errors propagate.
func (r *GrantRepository) ProbeVectorSupport(ctx context.Context) (bool, error) {
	_, err := r.db.Exec(ctx, `SELECT embedding <=> embedding FROM grant_embeddings LIMIT 1`)
	if err == nil {
		return true, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 42883 undefined_function, 42704 undefined_object (missing type)
		if pgErr.Code == "42883" || pgErr.Code == "42704" {
			return false, nil
		}
	}
	return false, storeError(err)
}

func scanGrant(row pgx.Row, g *domain.Grant, similarity *float64) error {
	return row.Scan(
		&g.ID,
		&g.BDNSCode,
		&g.Organization,
		&g.IsOpen,
		&g.Regions,
		&g.BeneficiaryTypes,
		&g.ApplicationStart,
		&g.ApplicationEnd,
		&g.Budget,
		&g.Sector,
		&g.Title,
		&g.Summary,
		&g.PublishedAt,
		similarity,
	)
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func storeError(err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeStoreQuery, "grant store query failed", err)
}
