package person

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"casework/pkg/domain"
)

// HTTPClient resolves person summaries from the upstream case API. The
// upstream endpoint answers a batch of CRNs in one call; per-CRN access
// outcomes come back inline rather than as HTTP errors.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type caseSummaryRequest struct {
	CRNs              []string `json:"crns"`
	CheckRestrictions bool     `json:"checkRestrictions"`
}

type caseSummaryResponse struct {
	Cases []struct {
		CRN       string `json:"crn"`
		FirstName string `json:"forename"`
		Surname   string `json:"surname"`
		Access    string `json:"access"`
	} `json:"cases"`
	NotFound []string `json:"notFoundCrns"`
}

func (c *HTTPClient) Resolve(ctx context.Context, crns []domain.CRN, strategy AccessStrategy) ([]SummaryInfoResult, error) {
	reqBody := caseSummaryRequest{
		CRNs:              make([]string, 0, len(crns)),
		CheckRestrictions: strategy == StrategyCheckAccess,
	}
	for _, crn := range crns {
		reqBody.CRNs = append(reqBody.CRNs, crn.String())
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode case summary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cases/summaries", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build case summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call case summary api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("case summary api returned %d", resp.StatusCode)
	}

	var body caseSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode case summary response: %w", err)
	}

	out := make([]SummaryInfoResult, 0, len(body.Cases)+len(body.NotFound))
	for _, item := range body.Cases {
		if item.Access == "restricted" {
			out = append(out, Restricted(domain.CRN(item.CRN)))
			continue
		}
		out = append(out, Full(CaseSummary{
			CRN:       domain.CRN(item.CRN),
			FirstName: item.FirstName,
			Surname:   item.Surname,
		}))
	}
	for _, crn := range body.NotFound {
		out = append(out, NotFound(domain.CRN(crn)))
	}
	return out, nil
}
