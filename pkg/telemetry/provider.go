package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jordanlanch/leadintake/pkg/models"
)

// HTTPProvider looks the caller's context up against an ip-api style
// reverse-geolocation endpoint
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider against the given lookup URL
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// lookupResponse mirrors the ip-api.com JSON payload
type lookupResponse struct {
	Status     string `json:"status"`
	Query      string `json:"query"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
	Mobile     bool   `json:"mobile"`
}

// Lookup fetches the network-derived context. The timeout comes from the
// caller's context; this provider never retries.
func (p *HTTPProvider) Lookup(ctx context.Context) (models.TrackingContext, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return models.TrackingContext{}, fmt.Errorf("failed to build lookup request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.TrackingContext{}, fmt.Errorf("telemetry lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.TrackingContext{}, fmt.Errorf("telemetry lookup returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.TrackingContext{}, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return models.TrackingContext{}, fmt.Errorf("telemetry lookup rejected: %s", body.Status)
	}

	return models.TrackingContext{
		IPAddress: body.Query,
		Location: models.Location{
			City:    body.City,
			State:   body.RegionName,
			Country: body.Country,
		},
	}, nil
}
