package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tramitalabs/convoca/internal/domain"
	"github.com/tramitalabs/convoca/internal/openai"
	"github.com/tramitalabs/convoca/internal/search"
)

// MockSearcher is a mock implementation of Searcher
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, input search.Input) (*search.Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Output), args.Error(1)
}

// MockProvider is a mock implementation of ModelProvider
type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) Model() string { return m.name }

func (m *MockProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (*openai.Completion, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.Completion), args.Error(1)
}

// MockSessionStore is a mock implementation of SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Put(ctx context.Context, sessionID string, grantIDs []int64) error {
	args := m.Called(ctx, sessionID, grantIDs)
	return args.Error(0)
}

func (m *MockSessionStore) Get(ctx context.Context, sessionID string) ([]int64, bool, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]int64), args.Bool(1), args.Error(2)
}

// MockGrantGetter is a mock implementation of GrantGetter
type MockGrantGetter struct {
	mock.Mock
}

func (m *MockGrantGetter) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Grant, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Grant), args.Error(1)
}

type orchestratorFixture struct {
	searcher *MockSearcher
	sessions *MockSessionStore
	grants   *MockGrantGetter
	cheap    *MockProvider
	premium  *MockProvider
	orch     *Orchestrator
}

func newOrchestratorFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		searcher: new(MockSearcher),
		sessions: new(MockSessionStore),
		grants:   new(MockGrantGetter),
		cheap:    &MockProvider{name: "gpt-4o-mini"},
		premium:  &MockProvider{name: "gpt-4o"},
	}
	selector := NewSelector(SelectorConfig{CheapModel: "gpt-4o-mini", PremiumModel: "gpt-4o"})
	f.orch = NewOrchestrator(
		NewClassifier(),
		selector,
		f.searcher,
		f.sessions,
		f.grants,
		map[domain.ModelTier]ModelProvider{
			domain.TierCheap:   f.cheap,
			domain.TierPremium: f.premium,
		},
		nil,
		OrchestratorConfig{},
		nil,
	)
	return f
}

func searchOutput(total int, shown ...*domain.Grant) *search.Output {
	results := make([]domain.ScoredGrant, 0, len(shown))
	ids := make([]int64, 0, total)
	for _, g := range shown {
		results = append(results, domain.ScoredGrant{GrantID: g.ID, Grant: g, Final: 1})
		ids = append(ids, g.ID)
	}
	for i := len(shown); i < total; i++ {
		ids = append(ids, int64(1000+i))
	}
	return &search.Output{
		Results:    results,
		GrantIDs:   ids,
		TotalFound: total,
		Page:       1,
		PageSize:   DefaultContextGrants,
		HasMore:    total > len(shown),
	}
}

func testGrant(id int64, title string) *domain.Grant {
	return &domain.Grant{ID: id, Title: title, Organization: "Organismo", IsOpen: true, Summary: "Resumen breve."}
}

func TestHandleTurn_EmptyMessage(t *testing.T) {
	f := newOrchestratorFixture()

	_, err := f.orch.HandleTurn(context.Background(), Request{Message: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestHandleTurn_ClarificationWhenTooManyResults(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(45, testGrant(1, "A"), testGrant(2, "B")), nil)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "busca subvenciones"})

	require.NoError(t, err)
	assert.Equal(t, domain.ModelUsedClarification, res.ModelUsed)
	assert.Equal(t, 45, res.TotalFound)
	assert.NotEmpty(t, res.Answer)
	// clarification is free: neither tier may be called
	f.cheap.AssertNumberOfCalls(t, "Complete", 0)
	f.premium.AssertNumberOfCalls(t, "Complete", 0)
}

func TestHandleTurn_ClarificationWhenTooFewResults(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(1, testGrant(1, "A")), nil)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "busca subvenciones"})

	require.NoError(t, err)
	assert.Equal(t, domain.ModelUsedClarification, res.ModelUsed)
	f.cheap.AssertNumberOfCalls(t, "Complete", 0)
	f.premium.AssertNumberOfCalls(t, "Complete", 0)
}

func TestHandleTurn_CompareNeverClarifies(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	// same 45 results that clarify for SEARCH must reach the model for COMPARE
	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(45, testGrant(1, "A"), testGrant(2, "B")), nil)
	f.premium.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "Comparación.", Confidence: 0.9}, nil)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "compara la primera con la segunda"})

	require.NoError(t, err)
	assert.Equal(t, domain.IntentCompare, res.Intent)
	assert.Equal(t, "gpt-4o", res.ModelUsed)
	assert.Equal(t, "Comparación.", res.Answer)
	f.premium.AssertNumberOfCalls(t, "Complete", 1)
}

func TestHandleTurn_CheapTierAnswers(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(5, testGrant(1, "A"), testGrant(2, "B"), testGrant(3, "C")), nil)
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "Aquí tienes un resumen.", Confidence: 0.9}, nil)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "busca subvenciones de cultura"})

	require.NoError(t, err)
	assert.Equal(t, domain.IntentSearch, res.Intent)
	assert.Equal(t, "gpt-4o-mini", res.ModelUsed)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, 3, res.Showing)
	f.premium.AssertNumberOfCalls(t, "Complete", 0)
}

func TestHandleTurn_LowConfidenceEscalatesExactlyOnce(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(4, testGrant(1, "A"), testGrant(2, "B")), nil)
	// EXPLAIN scores 40: cheap but escalatable
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "No estoy seguro.", Confidence: 0.3}, nil)
	f.premium.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "Respuesta detallada.", Confidence: 0.4}, nil)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "explica la primera convocatoria"})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", res.ModelUsed)
	assert.Equal(t, "Respuesta detallada.", res.Answer)
	// premium confidence is low too, but escalation never loops
	f.cheap.AssertNumberOfCalls(t, "Complete", 1)
	f.premium.AssertNumberOfCalls(t, "Complete", 1)
}

func TestHandleTurn_HighConfidenceDoesNotEscalate(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(4, testGrant(1, "A")), nil)
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "Explicación clara.", Confidence: 0.85}, nil)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "explica la primera convocatoria"})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", res.ModelUsed)
	f.premium.AssertNumberOfCalls(t, "Complete", 0)
}

func TestHandleTurn_ModelFailureBecomesSystemError(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(4, testGrant(1, "A")), nil)
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "explica la primera convocatoria"})

	// provider failure never propagates to the caller
	require.NoError(t, err)
	assert.Equal(t, domain.ModelUsedError, res.ModelUsed)
	assert.NotEmpty(t, res.Answer)
}

func TestHandleTurn_TransientProviderErrorRetriedOnce(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(4, testGrant(1, "A")), nil)
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrProviderTimeout).Once()
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "Recuperado.", Confidence: 0.9}, nil).Once()

	res, err := f.orch.HandleTurn(ctx, Request{Message: "explica la primera convocatoria"})

	require.NoError(t, err)
	assert.Equal(t, "Recuperado.", res.Answer)
	f.cheap.AssertNumberOfCalls(t, "Complete", 2)
}

func TestHandleTurn_SearchFailureBecomesSystemError(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.searcher.On("Search", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "busca subvenciones"})

	require.NoError(t, err)
	assert.Equal(t, domain.ModelUsedError, res.ModelUsed)
	f.cheap.AssertNumberOfCalls(t, "Complete", 0)
}

func TestHandleTurn_SessionStoresRemainingIDs(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	out := searchOutput(8, testGrant(1, "A"), testGrant(2, "B"))
	f.searcher.On("Search", mock.Anything, mock.Anything).Return(out, nil)
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "Listado.", Confidence: 0.9}, nil)
	f.sessions.On("Put", mock.Anything, "s-1", out.GrantIDs[2:]).Return(nil)

	_, err := f.orch.HandleTurn(ctx, Request{Message: "busca subvenciones de cultura", SessionID: "s-1"})

	require.NoError(t, err)
	f.sessions.AssertExpectations(t)
}

func TestHandleTurn_ShowMoreSkipsSearchAndModel(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	cached := []int64{7, 8, 9}
	fetched := []*domain.Grant{testGrant(7, "G7"), testGrant(8, "G8"), testGrant(9, "G9")}
	f.sessions.On("Get", mock.Anything, "s-1").Return(cached, true, nil)
	f.grants.On("GetByIDs", mock.Anything, cached).Return(fetched, nil)
	f.sessions.On("Put", mock.Anything, "s-1", []int64{}).Return(nil)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "muestra más", SessionID: "s-1"})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Showing)
	assert.False(t, res.HasMore)
	assert.Equal(t, domain.ModelUsedClarification, res.ModelUsed)
	f.searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	f.cheap.AssertNumberOfCalls(t, "Complete", 0)
}

func TestHandleTurn_ShowMoreWithExpiredSessionFallsThrough(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.sessions.On("Get", mock.Anything, "s-1").Return(nil, false, nil)
	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(5, testGrant(1, "A")), nil)
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "Nueva búsqueda.", Confidence: 0.9}, nil)
	f.sessions.On("Put", mock.Anything, "s-1", mock.Anything).Return(nil)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "muestra más", SessionID: "s-1"})

	require.NoError(t, err)
	assert.Equal(t, "Nueva búsqueda.", res.Answer)
	f.searcher.AssertNumberOfCalls(t, "Search", 1)
}

func TestHandleTurn_SuggestionsWhenManyResults(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.searcher.On("Search", mock.Anything, mock.Anything).Return(searchOutput(15, testGrant(1, "A"), testGrant(2, "B"), testGrant(3, "C")), nil)
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "Listado.", Confidence: 0.9}, nil)

	res, err := f.orch.HandleTurn(ctx, Request{Message: "busca subvenciones de empleo"})

	require.NoError(t, err)
	assert.NotEmpty(t, res.Suggestions)
}

func TestHandleTurn_ExplicitFiltersWinOverExtracted(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	var captured search.Input
	f.searcher.On("Search", mock.Anything, mock.MatchedBy(func(in search.Input) bool {
		captured = in
		return true
	})).Return(searchOutput(5, testGrant(1, "A")), nil)
	f.cheap.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(&openai.Completion{Text: "Listado.", Confidence: 0.9}, nil)

	// message mentions Madrid, caller filter says Bizkaia
	_, err := f.orch.HandleTurn(ctx, Request{
		Message: "busca subvenciones en madrid",
		Filters: domain.FilterSpec{Regions: []string{"ES213"}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"ES213"}, captured.Filters.Regions)
}
