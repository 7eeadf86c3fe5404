package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tramitalabs/convoca/internal/domain"
)

// MockVectorSearcher is a mock implementation of VectorSearcher
type MockVectorSearcher struct {
	mock.Mock
}

func (m *MockVectorSearcher) SearchByEmbedding(ctx context.Context, vector []float32, limit int) ([]domain.ScoredGrant, error) {
	args := m.Called(ctx, vector, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredGrant), args.Error(1)
}

// MockEmbeddingSource is a mock implementation of EmbeddingSource
type MockEmbeddingSource struct {
	mock.Mock
}

func (m *MockEmbeddingSource) ListEmbeddings(ctx context.Context) ([]domain.GrantEmbedding, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.GrantEmbedding), args.Error(1)
}

func (m *MockEmbeddingSource) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Grant, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Grant), args.Error(1)
}

func TestPrimaryRanker_CutsBelowThreshold(t *testing.T) {
	mockRepo := new(MockVectorSearcher)
	ranker := NewPrimaryRanker(mockRepo, DefaultMinSimilarity)
	ctx := context.Background()

	results := []domain.ScoredGrant{
		{GrantID: 1, Similarity: 0.45},
		{GrantID: 2, Similarity: 0.30},
		{GrantID: 3, Similarity: 0.24},
		{GrantID: 4, Similarity: 0.01},
	}
	mockRepo.On("SearchByEmbedding", ctx, mock.Anything, 50).Return(results, nil)

	out, err := ranker.Rank(ctx, []float32{0.1}, 50)

	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, r := range out {
		assert.GreaterOrEqual(t, r.Similarity, DefaultMinSimilarity)
	}
}

func TestPrimaryRanker_StoreErrorPropagates(t *testing.T) {
	mockRepo := new(MockVectorSearcher)
	ranker := NewPrimaryRanker(mockRepo, DefaultMinSimilarity)
	ctx := context.Background()

	storeErr := errors.New("connection reset")
	mockRepo.On("SearchByEmbedding", ctx, mock.Anything, mock.Anything).Return(nil, storeErr)

	_, err := ranker.Rank(ctx, []float32{0.1}, 50)
	assert.ErrorIs(t, err, storeErr)
}

func unitVec(dim int, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestFallbackRanker_RanksByCosineSimilarity(t *testing.T) {
	mockRepo := new(MockEmbeddingSource)
	ranker := NewFallbackRanker(mockRepo, DefaultMinSimilarity, 4, nil)
	ctx := context.Background()

	embeddings := []domain.GrantEmbedding{
		{GrantID: 1, Embedding: []float32{1, 0, 0, 0}, ModelName: "m"},
		{GrantID: 2, Embedding: []float32{0.9, 0.1, 0, 0}, ModelName: "m"},
		{GrantID: 3, Embedding: []float32{0, 1, 0, 0}, ModelName: "m"}, // orthogonal, below cutoff
	}
	mockRepo.On("ListEmbeddings", ctx).Return(embeddings, nil)
	mockRepo.On("GetByIDs", ctx, mock.Anything).Return([]*domain.Grant{
		{ID: 1, Title: "Uno"},
		{ID: 2, Title: "Dos"},
	}, nil)

	out, err := ranker.Rank(ctx, unitVec(4, 0), 50)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].GrantID)
	assert.InDelta(t, 1.0, out[0].Similarity, 1e-6)
	assert.Equal(t, int64(2), out[1].GrantID)
	require.NotNil(t, out[0].Grant)
	assert.Equal(t, "Uno", out[0].Grant.Title)
}

func TestFallbackRanker_SkipsWrongDimensions(t *testing.T) {
	mockRepo := new(MockEmbeddingSource)
	ranker := NewFallbackRanker(mockRepo, DefaultMinSimilarity, 4, nil)
	ctx := context.Background()

	embeddings := []domain.GrantEmbedding{
		{GrantID: 1, Embedding: []float32{1, 0, 0, 0}, ModelName: "m"},
		{GrantID: 2, Embedding: []float32{1, 0}, ModelName: "m"}, // wrong dimensions
	}
	mockRepo.On("ListEmbeddings", ctx).Return(embeddings, nil)
	mockRepo.On("GetByIDs", ctx, []int64{1}).Return([]*domain.Grant{{ID: 1}}, nil)

	out, err := ranker.Rank(ctx, unitVec(4, 0), 50)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].GrantID)
}

func TestFallbackRanker_PoolSizeCap(t *testing.T) {
	mockRepo := new(MockEmbeddingSource)
	ranker := NewFallbackRanker(mockRepo, 0.0, 2, nil)
	ctx := context.Background()

	embeddings := make([]domain.GrantEmbedding, 10)
	grants := make([]*domain.Grant, 0, 3)
	for i := range embeddings {
		embeddings[i] = domain.GrantEmbedding{GrantID: int64(i + 1), Embedding: []float32{1, float32(i) * 0.01}}
	}
	for i := 0; i < 3; i++ {
		grants = append(grants, &domain.Grant{ID: int64(i + 1)})
	}
	mockRepo.On("ListEmbeddings", ctx).Return(embeddings, nil)
	mockRepo.On("GetByIDs", ctx, mock.Anything).Return(grants, nil)

	out, err := ranker.Rank(ctx, []float32{1, 0}, 3)

	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestFallbackRanker_ListErrorPropagates(t *testing.T) {
	mockRepo := new(MockEmbeddingSource)
	ranker := NewFallbackRanker(mockRepo, DefaultMinSimilarity, 4, nil)
	ctx := context.Background()

	mockRepo.On("ListEmbeddings", ctx).Return(nil, errors.New("boom"))

	_, err := ranker.Rank(ctx, unitVec(4, 0), 50)
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// degenerate inputs score zero instead of dividing by zero
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

// MockProber is a mock implementation of CapabilityProber
type MockProber struct {
	mock.Mock
}

func (m *MockProber) ProbeVectorSupport(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func TestSelectRanker(t *testing.T) {
	primary := NewPrimaryRanker(new(MockVectorSearcher), DefaultMinSimilarity)
	fallback := NewFallbackRanker(new(MockEmbeddingSource), DefaultMinSimilarity, 4, nil)
	ctx := context.Background()

	t.Run("Supported", func(t *testing.T) {
		prober := new(MockProber)
		prober.On("ProbeVectorSupport", ctx).Return(true, nil)

		ranker, err := SelectRanker(ctx, prober, primary, fallback, nil)
		require.NoError(t, err)
		assert.Same(t, primary, ranker)
	})

	t.Run("Unsupported", func(t *testing.T) {
		prober := new(MockProber)
		prober.On("ProbeVectorSupport", ctx).Return(false, nil)

		ranker, err := SelectRanker(ctx, prober, primary, fallback, nil)
		require.NoError(t, err)
		assert.Same(t, fallback, ranker)
	})

	t.Run("ProbeError", func(t *testing.T) {
		prober := new(MockProber)
		prober.On("ProbeVectorSupport", ctx).Return(false, errors.New("dial error"))

		_, err := SelectRanker(ctx, prober, primary, fallback, nil)
		assert.Error(t, err)
	})
}
