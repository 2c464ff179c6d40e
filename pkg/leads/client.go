package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jordanlanch/leadintake/pkg/dedup"
	"github.com/jordanlanch/leadintake/pkg/models"
)

// Client is the REST client the intake pipeline uses against the lead
// collection API. It implements intake.Submitter and dedup.RemoteChecker.
// Both calls carry their own network-level timeout: a hanging duplicate
// check or create call must surface as an error, never as a silent success.
type Client struct {
	baseURL       string
	http          *http.Client
	createTimeout time.Duration
	checkTimeout  time.Duration
}

// NewClient creates a lead API client. baseURL points at the API v1 root.
func NewClient(baseURL string, createTimeout, checkTimeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		http:          &http.Client{},
		createTimeout: createTimeout,
		checkTimeout:  checkTimeout,
	}
}

// Create posts a lead record. A non-success envelope or transport error is
// a retryable submission failure for the caller.
func (c *Client) Create(ctx context.Context, rec models.LeadRecord) error {
	ctx, cancel := context.WithTimeout(ctx, c.createTimeout)
	defer cancel()

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal lead record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/leads", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lead create call failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode create response: %w", err)
	}
	if resp.StatusCode >= 400 || !envelope.Success {
		return fmt.Errorf("lead create rejected (status %d): %s", resp.StatusCode, envelope.Error)
	}
	return nil
}

// Exists queries the collection for an existing lead matching the
// fingerprint's mobile or email
func (c *Client) Exists(ctx context.Context, fp dedup.Fingerprint) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	params := url.Values{}
	if fp.Mobile != "" {
		params.Set("mobile", fp.Mobile)
	}
	if fp.Email != "" {
		params.Set("email", fp.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/leads/check?"+params.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to build check request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("duplicate check call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("duplicate check returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Exists bool `json:"exists"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return false, fmt.Errorf("failed to decode check response: %w", err)
	}
	if !envelope.Success {
		return false, fmt.Errorf("duplicate check rejected")
	}
	return envelope.Data.Exists, nil
}
