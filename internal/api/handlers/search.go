package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tramitalabs/convoca/internal/api"
	"github.com/tramitalabs/convoca/internal/domain"
	"github.com/tramitalabs/convoca/internal/search"
)

type SearchService interface {
	Search(ctx context.Context, input search.Input) (*search.Output, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// FilterRequest is the wire form of a FilterSpec. Dates use YYYY-MM-DD.
type FilterRequest struct {
	Organization string   `json:"organization,omitempty"`
	Regions      []string `json:"regions,omitempty"`
	Open         *bool    `json:"open,omitempty"`
	DateFrom     string   `json:"date_from,omitempty"`
	DateTo       string   `json:"date_to,omitempty"`
	Sector       string   `json:"sector,omitempty"`
}

func (f *FilterRequest) toSpec() (domain.FilterSpec, error) {
	spec := domain.FilterSpec{
		Organization: f.Organization,
		Regions:      f.Regions,
		Open:         f.Open,
		Sector:       f.Sector,
	}
	var err error
	if spec.DateFrom, err = parseDate(f.DateFrom); err != nil {
		return spec, err
	}
	if spec.DateTo, err = parseDate(f.DateTo); err != nil {
		return spec, err
	}
	return spec, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, domain.ErrInvalidDate
	}
	return &t, nil
}

type SearchRequest struct {
	Query    string         `json:"query"`
	Filters  *FilterRequest `json:"filters,omitempty"`
	Mode     string         `json:"mode,omitempty"`
	Page     int            `json:"page,omitempty"`
	PageSize int            `json:"page_size,omitempty"`
}

// GrantResponse is the wire form of a grant plus its scores.
type GrantResponse struct {
	ID               int64    `json:"id"`
	BDNSCode         string   `json:"bdns_code"`
	Organization     string   `json:"organization"`
	Title            string   `json:"title"`
	Summary          string   `json:"summary,omitempty"`
	Regions          []string `json:"regions,omitempty"`
	BeneficiaryTypes []string `json:"beneficiary_types,omitempty"`
	Sector           string   `json:"sector,omitempty"`
	IsOpen           bool     `json:"is_open"`
	ApplicationStart string   `json:"application_start,omitempty"`
	ApplicationEnd   string   `json:"application_end,omitempty"`
	Budget           *float64 `json:"budget,omitempty"`
	PublishedAt      string   `json:"published_at"`
	Similarity       float64  `json:"similarity,omitempty"`
	Score            float64  `json:"score,omitempty"`
}

type SearchResponse struct {
	Results    []*GrantResponse `json:"results"`
	TotalFound int              `json:"total_found"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	HasMore    bool             `json:"has_more"`
}

func grantResponse(g *domain.Grant) *GrantResponse {
	if g == nil {
		return nil
	}
	resp := &GrantResponse{
		ID:               g.ID,
		BDNSCode:         g.BDNSCode,
		Organization:     g.Organization,
		Title:            g.Title,
		Summary:          g.Summary,
		Regions:          g.Regions,
		BeneficiaryTypes: g.BeneficiaryTypes,
		Sector:           g.Sector,
		IsOpen:           g.IsOpen,
		Budget:           g.Budget,
		PublishedAt:      g.PublishedAt.Format(time.RFC3339),
	}
	if g.ApplicationStart != nil {
		resp.ApplicationStart = g.ApplicationStart.Format("2006-01-02")
	}
	if g.ApplicationEnd != nil {
		resp.ApplicationEnd = g.ApplicationEnd.Format("2006-01-02")
	}
	return resp
}

func scoredResponse(s domain.ScoredGrant) *GrantResponse {
	resp := grantResponse(s.Grant)
	if resp == nil {
		resp = &GrantResponse{ID: s.GrantID}
	}
	resp.Similarity = s.Similarity
	resp.Score = s.Final
	return resp
}

// Search handles POST /search: the direct retrieval endpoint, no
// classification or model involved.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
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

	mode, err := search.ParseMode(req.Mode)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out, err := h.svc.Search(r.Context(), search.Input{
		Query:    req.Query,
		Filters:  filters,
		Mode:     mode,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]*GrantResponse, len(out.Results))
	for i, s := range out.Results {
		results[i] = scoredResponse(s)
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results:    results,
		TotalFound: out.TotalFound,
		Page:       out.Page,
		PageSize:   out.PageSize,
		HasMore:    out.HasMore,
	})
}
