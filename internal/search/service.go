package search

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tramitalabs/convoca/internal/domain"
	"github.com/tramitalabs/convoca/internal/metrics"
	"github.com/tramitalabs/convoca/internal/telemetry"
)

// Mode selects which retrieval paths feed fusion.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeFilter   Mode = "filter"
	ModeHybrid   Mode = "hybrid"
)

const (
	// DefaultPageSize bounds result pages when the caller does not ask for one.
	DefaultPageSize = 10
	// MaxPageSize is the hard cap on page_size.
	MaxPageSize = 100

	// the relational pool is wider than the semantic one so RRF sees
	// enough filter-matched candidates to fuse against
	filterPoolLimit = 200
)

// ParseMode normalizes a wire-level mode string. Empty means hybrid.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeHybrid):
		return ModeHybrid, nil
	case string(ModeSemantic):
		return ModeSemantic, nil
	case string(ModeFilter):
		return ModeFilter, nil
	default:
		return "", domain.ErrInvalidSearchMode
	}
}

// QueryEmbedder is the gateway contract consumed by the service.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FilterSearcher answers the relational candidate pool, ordered by
// publication date descending.
type FilterSearcher interface {
	SearchByFilters(ctx context.Context, filters domain.FilterSpec, limit int) ([]domain.ScoredGrant, error)
}

// Input is one search request.
type Input struct {
	Query    string
	Filters  domain.FilterSpec
	Mode     Mode
	Page     int
	PageSize int
}

// Output is one page of fused results plus the complete ordering, which the
// conversation layer caches for "show more" turns.
type Output struct {
	Results    []domain.ScoredGrant
	GrantIDs   []int64 // full fused ordering
	TotalFound int
	Page       int
	PageSize   int
	HasMore    bool
}

// Service runs the full retrieval pipeline for one request: embed the
// query, collect both candidate pools, fuse, paginate.
type Service struct {
	embedder QueryEmbedder
	ranker   Ranker
	repo     FilterSearcher
	engine   *Engine
	poolSize int
	logger   *zap.Logger
}

// NewService wires the retrieval pipeline.
func NewService(embedder QueryEmbedder, ranker Ranker, repo FilterSearcher, engine *Engine, poolSize int, logger *zap.Logger) *Service {
	if poolSize <= 0 {
		poolSize = DefaultCandidatePoolSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder: embedder,
		ranker:   ranker,
		repo:     repo,
		engine:   engine,
		poolSize: poolSize,
		logger:   logger,
	}
}

// Search validates the request, runs the paths the mode asks for, and
// returns one page of the fused list.
func (s *Service) Search(ctx context.Context, input Input) (*Output, error) {
	start := time.Now()

	query := strings.TrimSpace(input.Query)
	if err := input.Filters.Validate(); err != nil {
		return nil, err
	}
	if input.Mode == "" {
		input.Mode = ModeHybrid
	}

	ctx, span := telemetry.StartSpan(ctx, "search.Service.Search", telemetry.SpanAttributes{
		Mode:      string(input.Mode),
		Operation: "search",
	})
	defer span.End()

	if input.Mode == ModeSemantic && query == "" {
		return nil, domain.ErrEmptyQuery
	}
	page := input.Page
	if page < 1 {
		page = 1
	}
	pageSize := input.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, domain.ErrInvalidPageSize
	}

	var semanticPool []domain.ScoredGrant
	if input.Mode != ModeFilter && query != "" {
		vector, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		semanticPool, err = s.ranker.Rank(ctx, vector, s.poolSize)
		if err != nil {
			return nil, err
		}
	}

	var filterPool []domain.ScoredGrant
	needFilterPool := input.Mode == ModeFilter ||
		(input.Mode == ModeHybrid && (query == "" || !input.Filters.IsEmpty()))
	if needFilterPool {
		var err error
		filterPool, err = s.repo.SearchByFilters(ctx, input.Filters, filterPoolLimit)
		if err != nil {
			return nil, err
		}
	}

	var fused []domain.ScoredGrant
	switch input.Mode {
	case ModeSemantic:
		fused = s.engine.Fuse(query, domain.FilterSpec{}, semanticPool, nil)
		fused = enforce(fused, input.Filters, Compile(input.Filters))
	case ModeFilter:
		fused = s.engine.Fuse("", input.Filters, nil, filterPool)
	default:
		fused = s.engine.Fuse(query, input.Filters, semanticPool, filterPool)
	}

	metrics.SearchDuration.WithLabelValues(string(input.Mode)).Observe(time.Since(start).Seconds())

	ids := make([]int64, len(fused))
	for i, r := range fused {
		ids[i] = r.GrantID
	}

	total := len(fused)
	offset := (page - 1) * pageSize
	var pageItems []domain.ScoredGrant
	if offset < total {
		end := offset + pageSize
		if end > total {
			end = total
		}
		pageItems = fused[offset:end]
	}

	return &Output{
		Results:    pageItems,
		GrantIDs:   ids,
		TotalFound: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    offset+len(pageItems) < total,
	}, nil
}
