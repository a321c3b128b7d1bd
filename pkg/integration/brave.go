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

const braveDefaultBaseURL = "https://api.search.brave.com/res/v1/web/search"

var braveMetadata = Metadata{
	ID:             "brave",
	DisplayName:    "Brave Search",
	Category:       "web_search",
	RequiresAPIKey: true,
	CostHint:       "metered per query",
	LatencyHint:    "sub-second",
}

// braveSearch is the general-purpose web search adapter.
type braveSearch struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newBrave(opts SourceOptions) (Integration, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key not configured")
	}
	base := opts.BaseURL
	if base == "" {
		base = braveDefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &braveSearch{
		apiKey:  opts.APIKey,
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (b *braveSearch) Metadata() Metadata { return braveMetadata }

// IsRelevant always holds: general web search applies to any question.
func (b *braveSearch) IsRelevant(string) bool { return true }

// GenerateQuery builds a plain keyword query from the hypothesis strategy
// signals, falling back to the task query. Used when structured query
// generation is unavailable.
func (b *braveSearch) GenerateQuery(_ context.Context, req QueryRequest) (*QueryPlan, error) {
	q := req.TaskQuery
	if req.Hypothesis != nil && len(req.Hypothesis.Strategy.Signals) > 0 {
		q = strings.Join(req.Hypothesis.Strategy.Signals, " ")
	}
	if q == "" {
		q = req.Question
	}
	return &QueryPlan{
		Applicable: true,
		Params:     map[string]any{"query": q},
		Reasoning:  "keyword search over the open web",
	}, nil
}

// braveResponse is the subset of the Brave web search payload we read.
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			PageAge     string `json:"page_age"`
			Profile     struct {
				Name string `json:"name"`
			} `json:"profile"`
		} `json:"results"`
	} `json:"web"`
}

func (b *braveSearch) ExecuteSearch(ctx context.Context, params map[string]any, limit int) (*QueryResult, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("brave: params missing query")
	}
	if limit <= 0 || limit > 20 {
		limit = 20
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave: status %d", resp.StatusCode)
	}

	var body braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	results := make([]models.Result, 0, len(body.Web.Results))
	for _, r := range body.Web.Results {
		source := braveMetadata.DisplayName
		if r.Profile.Name != "" {
			source = r.Profile.Name
		}
		results = append(results, models.Result{
			Title:       r.Title,
			URL:         r.URL,
			Date:        r.PageAge,
			Source:      source,
			Description: r.Description,
		})
	}

	return &QueryResult{
		Success:      true,
		Total:        len(results),
		Results:      results,
		ResponseTime: time.Since(start),
	}, nil
}
