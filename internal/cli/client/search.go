package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// FilterParams is the wire form of the search filters. Dates use YYYY-MM-DD.
type FilterParams struct {
	Organization string   `json:"organization,omitempty"`
	Regions      []string `json:"regions,omitempty"`
	Open         *bool    `json:"open,omitempty"`
	DateFrom     string   `json:"date_from,omitempty"`
	DateTo       string   `json:"date_to,omitempty"`
	Sector       string   `json:"sector,omitempty"`
}

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query    string        `json:"query"`
	Filters  *FilterParams `json:"filters,omitempty"`
	Mode     string        `json:"mode,omitempty"`
	Page     int           `json:"page,omitempty"`
	PageSize int           `json:"page_size,omitempty"`
}

// GrantResult represents one grant in an API response.
type GrantResult struct {
	ID             int64    `json:"id"`
	BDNSCode       string   `json:"bdns_code"`
	Organization   string   `json:"organization"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary,omitempty"`
	Regions        []string `json:"regions,omitempty"`
	Sector         string   `json:"sector,omitempty"`
	IsOpen         bool     `json:"is_open"`
	ApplicationEnd string   `json:"application_end,omitempty"`
	Budget         *float64 `json:"budget,omitempty"`
	Similarity     float64  `json:"similarity,omitempty"`
	Score          float64  `json:"score,omitempty"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results    []GrantResult `json:"results"`
	TotalFound int           `json:"total_found"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	HasMore    bool          `json:"has_more"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		organization string
		regions      []string
		sector       string
		openOnly     bool
		dateFrom     string
		dateTo       string
		mode         string
		page         int
		pageSize     int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search grant opportunities",
		Long:  "Searches grants with hybrid semantic and filter retrieval. With no query, lists grants matching the filters.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}

			req := SearchRequest{
				Query:    query,
				Mode:     mode,
				Page:     page,
				PageSize: pageSize,
			}
			filters := FilterParams{
				Organization: organization,
				Regions:      regions,
				Sector:       sector,
				DateFrom:     dateFrom,
				DateTo:       dateTo,
			}
			if openOnly {
				filters.Open = &openOnly
			}
			if hasFilters(filters) {
				req.Filters = &filters
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringVar(&organization, "org", "", "Filter by granting organization")
	cmd.Flags().StringSliceVarP(&regions, "region", "r", nil, "Filter by region (repeatable)")
	cmd.Flags().StringVar(&sector, "sector", "", "Filter by sector")
	cmd.Flags().BoolVar(&openOnly, "open", false, "Only grants with an open application window")
	cmd.Flags().StringVar(&dateFrom, "from", "", "Published on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dateTo, "to", "", "Published on or before (YYYY-MM-DD)")
	cmd.Flags().StringVar(&mode, "mode", "", "Force retrieval mode: hybrid, semantic or filter")
	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	cmd.Flags().IntVarP(&pageSize, "limit", "n", 10, "Results per page")

	return cmd
}

func hasFilters(f FilterParams) bool {
	return f.Organization != "" || len(f.Regions) > 0 || f.Sector != "" ||
		f.Open != nil || f.DateFrom != "" || f.DateTo != ""
}

func runSearch(cmd *cobra.Command, req SearchRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No grants found.")
		return nil
	}

	fmt.Printf("Found %d grants (page %d):\n\n", searchResp.TotalFound, searchResp.Page)
	for i, grant := range searchResp.Results {
		printGrant(i+1, grant)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	if searchResp.HasMore {
		fmt.Printf("\n%s\n", strings.Repeat("-", 40))
		fmt.Printf("More results available. Use --page %d\n", searchResp.Page+1)
	}

	return nil
}

func printGrant(n int, grant GrantResult) {
	fmt.Printf("%d. %s\n", n, grant.Title)
	fmt.Printf("   %s\n", grant.Organization)
	if grant.Summary != "" {
		summary := grant.Summary
		if len(summary) > 100 {
			summary = summary[:97] + "..."
		}
		fmt.Printf("   %s\n", summary)
	}
	if len(grant.Regions) > 0 {
		fmt.Printf("   Regions: %s\n", strings.Join(grant.Regions, ", "))
	}
	status := "closed"
	if grant.IsOpen {
		status = "open"
		if grant.ApplicationEnd != "" {
			status = "open until " + grant.ApplicationEnd
		}
	}
	fmt.Printf("   Status: %s\n", status)
	if grant.Budget != nil {
		fmt.Printf("   Budget: %.0f EUR\n", *grant.Budget)
	}
	if grant.Score > 0 {
		fmt.Printf("   Score: %.4f\n", grant.Score)
	}
	fmt.Printf("   ID: %d (BDNS %s)\n", grant.ID, grant.BDNSCode)
}
