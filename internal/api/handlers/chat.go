package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tramitalabs/convoca/internal/api"
	"github.com/tramitalabs/convoca/internal/chat"
	"github.com/tramitalabs/convoca/internal/domain"
)

type ChatService interface {
	HandleTurn(ctx context.Context, req chat.Request) (*chat.Result, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	Filters   *FilterRequest `json:"filters,omitempty"`
}

type ChatMetadata struct {
	TotalFound      int    `json:"total_found"`
	Showing         int    `json:"showing"`
	HasMore         bool   `json:"has_more"`
	Intent          string `json:"intent"`
	ComplexityScore int    `json:"complexity_score"`
}

type ChatResponse struct {
	Answer      string           `json:"answer"`
	Grants      []*GrantResponse `json:"grants"`
	Metadata    ChatMetadata     `json:"metadata"`
	ModelUsed   string           `json:"model_used"`
	Confidence  float64          `json:"confidence"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

// Chat handles POST /chat: one full conversation turn.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var filters domain.FilterSpec
	if req.Filters != nil {
		var err error
		filters, err = req.Filters.toSpec()
		if err != nil {
			api.HandleError(w, err)
			return
		}
	}

	res, err := h.svc.HandleTurn(r.Context(), chat.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		Filters:   filters,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	grants := make([]*GrantResponse, 0, len(res.Grants))
	for _, g := range res.Grants {
		if resp := grantResponse(g); resp != nil {
			grants = append(grants, resp)
		}
	}

	api.Success(w, http.StatusOK, ChatResponse{
		Answer: res.Answer,
		Grants: grants,
		Metadata: ChatMetadata{
			TotalFound:      res.TotalFound,
			Showing:         res.Showing,
			HasMore:         res.HasMore,
			Intent:          string(res.Intent),
			ComplexityScore: res.Complexity,
		},
		ModelUsed:   res.ModelUsed,
		Confidence:  res.Confidence,
		Suggestions: res.Suggestions,
	})
}
