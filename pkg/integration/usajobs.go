package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/osinthq/sleuth/pkg/models"
)

const usajobsDefaultBaseURL = "https://data.usajobs.gov/api/search"

var usajobsMetadata = Metadata{
	ID:             "usajobs",
	DisplayName:    "USAJobs",
	Category:       "government_jobs",
	RequiresAPIKey: true,
	CostHint:       "free",
	LatencyHint:    "1-2s",
}

// usajobsKeywords gates the relevance heuristic: the federal job board only
// helps questions about hiring, staffing, or workforce signals.
var usajobsKeywords = []string{
	"job", "jobs", "hiring", "position", "vacancy", "vacancies",
	"workforce", "staffing", "recruit", "employment", "clearance",
}

// usaJobs is the USAJobs federal posting search adapter.
type usaJobs struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newUSAJobs(opts SourceOptions) (Integration, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key not configured")
	}
	base := opts.BaseURL
	if base == "" {
		base = usajobsDefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &usaJobs{
		apiKey:  opts.APIKey,
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (u *usaJobs) Metadata() Metadata { return usajobsMetadata }

func (u *usaJobs) IsRelevant(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range usajobsKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (u *usaJobs) GenerateQuery(_ context.Context, req QueryRequest) (*QueryPlan, error) {
	if !u.IsRelevant(req.Question) && !u.IsRelevant(req.TaskQuery) {
		return &QueryPlan{
			Applicable: false,
			Reasoning:  "question has no hiring or workforce angle",
		}, nil
	}
	q := req.TaskQuery
	if req.Hypothesis != nil && len(req.Hypothesis.Strategy.Signals) > 0 {
		q = strings.Join(req.Hypothesis.Strategy.Signals, " ")
	}
	return &QueryPlan{
		Applicable: true,
		Params:     map[string]any{"keyword": q},
		Reasoning:  "federal posting search by keyword",
	}, nil
}

// usajobsResponse is the subset of the USAJobs search payload we read.
type usajobsResponse struct {
	SearchResult struct {
		SearchResultCountAll int `json:"SearchResultCountAll"`
		SearchResultItems    []struct {
			MatchedObjectDescriptor struct {
				PositionTitle     string `json:"PositionTitle"`
				PositionURI       string `json:"PositionURI"`
				PublicationDate   string `json:"PublicationStartDate"`
				OrganizationName  string `json:"OrganizationName"`
				QualificationSumm string `json:"QualificationSummary"`
				PositionLocation  []struct {
					LocationName string `json:"LocationName"`
				} `json:"PositionLocation"`
			} `json:"MatchedObjectDescriptor"`
		} `json:"SearchResultItems"`
	} `json:"SearchResult"`
}

func (u *usaJobs) ExecuteSearch(ctx context.Context, params map[string]any, limit int) (*QueryResult, error) {
	keyword, _ := params["keyword"].(string)
	if keyword == "" {
		keyword, _ = params["query"].(string)
	}
	if keyword == "" {
		return nil, fmt.Errorf("usajobs: params missing keyword")
	}
	if limit <= 0 || limit > 25 {
		limit = 25
	}

	q := url.Values{}
	q.Set("Keyword", keyword)
	q.Set("ResultsPerPage", strconv.Itoa(limit))
	if org, ok := params["organization"].(string); ok && org != "" {
		q.Set("Organization", org)
	}
	if loc, ok := params["location"].(string); ok && loc != "" {
		q.Set("LocationName", loc)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Host", "data.usajobs.gov")
	req.Header.Set("Authorization-Key", u.apiKey)

	start := time.Now()
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usajobs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usajobs: status %d", resp.StatusCode)
	}

	var body usajobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("usajobs: decode response: %w", err)
	}

	results := make([]models.Result, 0, len(body.SearchResult.SearchResultItems))
	for _, item := range body.SearchResult.SearchResultItems {
		d := item.MatchedObjectDescriptor
		extra := map[string]any{"organization": d.OrganizationName}
		if len(d.PositionLocation) > 0 {
			locs := make([]string, 0, len(d.PositionLocation))
			for _, l := range d.PositionLocation {
				locs = append(locs, l.LocationName)
			}
			extra["locations"] = locs
		}
		results = append(results, models.Result{
			Title:       d.PositionTitle,
			URL:         d.PositionURI,
			Date:        d.PublicationDate,
			Source:      usajobsMetadata.DisplayName,
			Description: d.QualificationSumm,
			Extra:       extra,
		})
	}

	return &QueryResult{
		Success:      true,
		Total:        body.SearchResult.SearchResultCountAll,
		Results:      results,
		ResponseTime: time.Since(start),
	}, nil
}
