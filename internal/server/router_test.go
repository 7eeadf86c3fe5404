package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tramitalabs/convoca/internal/api/handlers"
	"github.com/tramitalabs/convoca/internal/chat"
	"github.com/tramitalabs/convoca/internal/domain"
	"github.com/tramitalabs/convoca/internal/search"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input search.Input) (*search.Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Output), args.Error(1)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) HandleTurn(ctx context.Context, req chat.Request) (*chat.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Result), args.Error(1)
}

type MockGrantStore struct {
	mock.Mock
}

func (m *MockGrantStore) GetByID(ctx context.Context, id int64) (*domain.Grant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Grant), args.Error(1)
}

func newTestRouter(searchSvc *MockSearchService, chatSvc *MockChatService, store *MockGrantStore) http.Handler {
	return NewRouter(RouterConfig{
		ChatHandler:   handlers.NewChatHandler(chatSvc),
		SearchHandler: handlers.NewSearchHandler(searchSvc),
		GrantHandler:  handlers.NewGrantHandler(store),
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(new(MockSearchService), new(MockChatService), new(MockGrantStore))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRouter_Health_DatabaseDown(t *testing.T) {
	router := NewRouter(RouterConfig{
		ChatHandler:   handlers.NewChatHandler(new(MockChatService)),
		SearchHandler: handlers.NewSearchHandler(new(MockSearchService)),
		GrantHandler:  handlers.NewGrantHandler(new(MockGrantStore)),
		Pinger: pingerFunc(func(ctx context.Context) error {
			return context.DeadlineExceeded
		}),
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(new(MockSearchService), new(MockChatService), new(MockGrantStore))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Search(t *testing.T) {
	searchSvc := new(MockSearchService)
	searchSvc.On("Search", mock.Anything, mock.Anything).Return(&search.Output{
		Results: []domain.ScoredGrant{}, Page: 1, PageSize: 10,
	}, nil)

	router := newTestRouter(searchSvc, new(MockChatService), new(MockGrantStore))

	body, _ := json.Marshal(map[string]string{"query": "ayudas"})
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Chat(t *testing.T) {
	chatSvc := new(MockChatService)
	chatSvc.On("HandleTurn", mock.Anything, mock.Anything).Return(&chat.Result{
		Answer:    "Hola.",
		ModelUsed: domain.ModelUsedClarification,
		Intent:    domain.IntentGreeting,
	}, nil)

	router := newTestRouter(new(MockSearchService), chatSvc, new(MockGrantStore))

	body, _ := json.Marshal(map[string]string{"message": "hola"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_GrantByID(t *testing.T) {
	store := new(MockGrantStore)
	store.On("GetByID", mock.Anything, int64(3)).Return(&domain.Grant{
		ID: 3, BDNSCode: "BDNS-3", Organization: "Org", Title: "Ayuda", PublishedAt: time.Now(),
	}, nil)

	router := newTestRouter(new(MockSearchService), new(MockChatService), store)

	req := httptest.NewRequest(http.MethodGet, "/grants/3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(new(MockSearchService), new(MockChatService), new(MockGrantStore))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
