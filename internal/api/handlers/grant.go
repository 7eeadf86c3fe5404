package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tramitalabs/convoca/internal/api"
	"github.com/tramitalabs/convoca/internal/domain"
)

type GrantStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Grant, error)
}

type GrantHandler struct {
	store GrantStore
}

func NewGrantHandler(store GrantStore) *GrantHandler {
	return &GrantHandler{store: store}
}

// Get handles GET /grants/{id}.
func (h *GrantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.Error(w, http.StatusBadRequest, "invalid grant id")
		return
	}

	grant, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, grantResponse(grant))
}
