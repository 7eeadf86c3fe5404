package search

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/tramitalabs/convoca/internal/domain"
)

// Ranker returns the top candidates for a query vector, descending by
// cosine similarity, with low-similarity noise already cut off.
type Ranker interface {
	Rank(ctx context.Context, vector []float32, poolSize int) ([]domain.ScoredGrant, error)
}

// VectorSearcher is the store contract of the primary ranker: a native
// vector-index query returning grants with their similarity.
type VectorSearcher interface {
	SearchByEmbedding(ctx context.Context, vector []float32, limit int) ([]domain.ScoredGrant, error)
}

// EmbeddingSource is the store contract of the fallback ranker.
type EmbeddingSource interface {
	ListEmbeddings(ctx context.Context) ([]domain.GrantEmbedding, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Grant, error)
}

// PrimaryRanker ranks through the store's native vector operator.
type PrimaryRanker struct {
	repo          VectorSearcher
	minSimilarity float64
}

// NewPrimaryRanker creates a ranker over a store with native vector support.
func NewPrimaryRanker(repo VectorSearcher, minSimilarity float64) *PrimaryRanker {
	return &PrimaryRanker{repo: repo, minSimilarity: minSimilarity}
}

func (r *PrimaryRanker) Rank(ctx context.Context, vector []float32, poolSize int) ([]domain.ScoredGrant, error) {
	if poolSize <= 0 {
		poolSize = DefaultCandidatePoolSize
	}
	results, err := r.repo.SearchByEmbedding(ctx, vector, poolSize)
	if err != nil {
		return nil, err
	}
	return cutBelowThreshold(results, r.minSimilarity), nil
}

// FallbackRanker computes cosine similarity in memory over every stored
// embedding. Functionally identical to the primary path; used when the
// store cannot execute vector operators.
type FallbackRanker struct {
	repo          EmbeddingSource
	minSimilarity float64
	dimensions    int
	logger        *zap.Logger
}

// NewFallbackRanker creates the in-memory ranker.
func NewFallbackRanker(repo EmbeddingSource, minSimilarity float64, dimensions int, logger *zap.Logger) *FallbackRanker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackRanker{
		repo:          repo,
		minSimilarity: minSimilarity,
		dimensions:    dimensions,
		logger:        logger,
	}
}

func (r *FallbackRanker) Rank(ctx context.Context, vector []float32, poolSize int) ([]domain.ScoredGrant, error) {
	if poolSize <= 0 {
		poolSize = DefaultCandidatePoolSize
	}

	embeddings, err := r.repo.ListEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredGrant, 0, len(embeddings))
	for i := range embeddings {
		e := &embeddings[i]
		if err := domain.ValidateGrantEmbedding(e, r.dimensions); err != nil {
			// malformed rows are skipped, never fatal on the search path
			r.logger.Warn("skipping embedding with invalid dimensions",
				zap.Int64("grant_id", e.GrantID), zap.Error(err))
			continue
		}
		sim := CosineSimilarity(vector, e.Embedding)
		if sim < r.minSimilarity {
			continue
		}
		scored = append(scored, domain.ScoredGrant{
			GrantID:    e.GrantID,
			Similarity: sim,
			Final:      sim,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].GrantID < scored[j].GrantID
	})
	if len(scored) > poolSize {
		scored = scored[:poolSize]
	}

	if err := r.attachGrants(ctx, scored); err != nil {
		return nil, err
	}
	return scored, nil
}

func (r *FallbackRanker) attachGrants(ctx context.Context, scored []domain.ScoredGrant) error {
	if len(scored) == 0 {
		return nil
	}
	ids := make([]int64, len(scored))
	for i, s := range scored {
		ids[i] = s.GrantID
	}
	grants, err := r.repo.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]*domain.Grant, len(grants))
	for _, g := range grants {
		byID[g.ID] = g
	}
	for i := range scored {
		scored[i].Grant = byID[scored[i].GrantID]
	}
	return nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func cutBelowThreshold(results []domain.ScoredGrant, min float64) []domain.ScoredGrant {
	out := results[:0]
	for _, r := range results {
		if r.Similarity >= min {
			out = append(out, r)
		}
	}
	return out
}
