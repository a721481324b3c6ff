package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

const searchAPIPath = "/rcsbsearch/v2/query"

// searchRateLimit caps polling at RCSB's documented fair-use rate for the
// search API: one request per second, no burst.
const searchRateLimit = rate.Limit(1)

// Filters selects the additional AND clauses layered onto the mandatory
// release-date filter.
type Filters struct {
	Method     string  // experimental method, exact match; empty disables
	Resolution float64 // angstrom threshold, <=; 0 disables
	Organism   string  // substring match; empty disables
}

// SearchClient posts composite queries to the RCSB search API, rate-limited
// to stay within the API's fair-use policy across repeated watch cycles.
type SearchClient struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewSearchClient builds a client against baseURL (normally
// https://search.rcsb.org).
func NewSearchClient(client *http.Client, baseURL string) *SearchClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SearchClient{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limiter: rate.NewLimiter(searchRateLimit, 1),
	}
}

type queryNode struct {
	Type            string         `json:"type"`
	LogicalOperator string         `json:"logical_operator,omitempty"`
	Nodes           []queryNode    `json:"nodes,omitempty"`
	Service         string         `json:"service,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
}

type searchRequest struct {
	Query          queryNode      `json:"query"`
	ReturnType     string         `json:"return_type"`
	RequestOptions map[string]any `json:"request_options,omitempty"`
}

type searchResponse struct {
	ResultSet []struct {
		Identifier string `json:"identifier"`
	} `json:"result_set"`
	TotalCount int `json:"total_count"`
}

// BuildQuery constructs the composite AND query: a mandatory release-date
// filter plus any enabled Filters clauses. A single remaining clause is
// flattened rather than wrapped in a redundant group.
func BuildQuery(since time.Time, f Filters) queryNode {
	clauses := []queryNode{releaseDateClause(since)}
	if f.Method != "" {
		clauses = append(clauses, methodClause(f.Method))
	}
	if f.Resolution > 0 {
		clauses = append(clauses, resolutionClause(f.Resolution))
	}
	if f.Organism != "" {
		clauses = append(clauses, organismClause(f.Organism))
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return queryNode{Type: "group", LogicalOperator: "and", Nodes: clauses}
}

func releaseDateClause(since time.Time) queryNode {
	return queryNode{
		Type: "terminal", Service: "text",
		Parameters: map[string]any{
			"attribute": "rcsb_accession_info.initial_release_date",
			"operator":  "greater",
			"value":     since.Format("2006-01-02"),
		},
	}
}

func methodClause(method string) queryNode {
	return queryNode{
		Type: "terminal", Service: "text",
		Parameters: map[string]any{
			"attribute": "exptl.method",
			"operator":  "exact_match",
			"value":     method,
		},
	}
}

func resolutionClause(threshold float64) queryNode {
	return queryNode{
		Type: "terminal", Service: "text",
		Parameters: map[string]any{
			"attribute": "rcsb_entry_info.resolution_combined",
			"operator":  "less_or_equal",
			"value":     threshold,
		},
	}
}

func organismClause(organism string) queryNode {
	return queryNode{
		Type: "terminal", Service: "text",
		Parameters: map[string]any{
			"attribute": "rcsb_entity_source_organism.ncbi_scientific_name",
			"operator":  "contains_phrase",
			"value":     organism,
		},
	}
}

// Search posts the composite query and returns the lowercased identifiers
// found. A 204 or empty body is treated as zero results.
func (c *SearchClient) Search(ctx context.Context, since time.Time, f Filters) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, pdberr.Wrap(pdberr.SearchApi, "rate limit wait", err)
	}

	reqBody := searchRequest{
		Query:      BuildQuery(since, f),
		ReturnType: "entry",
		RequestOptions: map[string]any{
			"paginate": map[string]any{"start": 0, "rows": 10000},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, pdberr.Wrap(pdberr.SearchApi, "marshal query", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchAPIPath, bytes.NewReader(body))
	if err != nil {
		return nil, pdberr.Wrap(pdberr.SearchApi, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, pdberr.Wrap(pdberr.SearchApi, "post query", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pdberr.New(pdberr.SearchApi, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pdberr.Wrap(pdberr.SearchApi, "read response", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var sr searchResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, pdberr.Wrap(pdberr.SearchApi, "parse response", err)
	}

	ids := make([]string, 0, len(sr.ResultSet))
	for _, r := range sr.ResultSet {
		ids = append(ids, strings.ToLower(r.Identifier))
	}
	return ids, nil
}

var organismPattern = regexp.MustCompile(`^[A-Za-z0-9 ._()-]+$`)

// ValidateOrganism rejects organism filter strings longer than 200 chars or
// containing characters outside [A-Za-z0-9 ._()-].
func ValidateOrganism(s string) error {
	if len(s) > 200 {
		return pdberr.New(pdberr.InvalidInput, "organism filter exceeds 200 characters")
	}
	if s != "" && !organismPattern.MatchString(s) {
		return pdberr.New(pdberr.InvalidInput, "organism filter contains disallowed characters: "+s)
	}
	return nil
}

// ValidateResolution rejects NaN, infinite, or out-of-[0,100] resolution
// thresholds.
func ValidateResolution(r float64) error {
	if math.IsNaN(r) {
		return pdberr.New(pdberr.InvalidInput, "resolution is NaN")
	}
	if math.IsInf(r, 0) {
		return pdberr.New(pdberr.InvalidInput, "resolution is infinite")
	}
	if r < 0.0 || r > 100.0 {
		return pdberr.New(pdberr.InvalidInput, "resolution out of range [0, 100]")
	}
	return nil
}
