// Package directory is a REST client for the provider-directory and
// membership-update services. Responses are normalized into candidate
// records; transient gateway failures are retried.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deepnoodle-ai/dialogue"
	"github.com/deepnoodle-ai/dialogue/pcp"
)

const (
	defaultLimit      = "10"
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// ClientOptions configures a directory client.
type ClientOptions struct {
	BaseURL string

	// Paths below default to the provider search API's conventions.
	SearchByIDPath       string
	SearchByNamePath     string
	SearchByFiltersPath  string
	AssignmentPath       string
	Limit                string
	OnlyPCPs             bool
	StartingLocationZip  string
	MemberOverrideClass  string
	MemberOverridePlan   string
	GroupID              string
	SubscriberID         string
	MaxRetries           int
	RetryDelay           time.Duration
	HTTPClient           *http.Client
	Logger               *slog.Logger
}

// Client implements the pcp.Directory boundary over HTTP.
type Client struct {
	opts       ClientOptions
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new directory client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("directory base url required")
	}
	if opts.SearchByIDPath == "" {
		opts.SearchByIDPath = "/providers/search/by-id"
	}
	if opts.SearchByNamePath == "" {
		opts.SearchByNamePath = "/providers/search/by-name-location"
	}
	if opts.SearchByFiltersPath == "" {
		opts.SearchByFiltersPath = "/providers/search/by-filters"
	}
	if opts.AssignmentPath == "" {
		opts.AssignmentPath = "/members/pcp-assignments"
	}
	if opts.Limit == "" {
		opts.Limit = defaultLimit
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{opts: opts, httpClient: opts.HTTPClient, logger: opts.Logger}, nil
}

// formatAsOfDate ensures asOfDate is YYYYMMDD, defaulting to today.
func formatAsOfDate(asOfDate string) string {
	if asOfDate != "" {
		return asOfDate
	}
	return time.Now().Format("20060102")
}

func (c *Client) searchPayload() map[string]any {
	return map[string]any{
		"startingLocationZip": c.opts.StartingLocationZip,
		"memberOverrideClass": c.opts.MemberOverrideClass,
		"memberOverridePlan":  c.opts.MemberOverridePlan,
		"limit":               c.opts.Limit,
		"offset":              "0",
		"asOfDate":            formatAsOfDate(""),
		"onlyPcps":            fmt.Sprintf("%t", c.opts.OnlyPCPs),
		"groupId":             c.opts.GroupID,
		"subscriberId":        c.opts.SubscriberID,
	}
}

func (c *Client) LookupByIdentity(ctx context.Context, id string) ([]dialogue.Candidate, error) {
	payload := c.searchPayload()
	payload["id"] = id
	return c.search(ctx, c.opts.SearchByIDPath, payload)
}

func (c *Client) LookupByNameLocation(ctx context.Context, name, city, state string) ([]dialogue.Candidate, error) {
	payload := c.searchPayload()
	payload["providerName"] = name
	payload["city"] = city
	payload["state"] = state
	return c.search(ctx, c.opts.SearchByNamePath, payload)
}

func (c *Client) LookupByFilters(ctx context.Context, filters pcp.Filters) ([]dialogue.Candidate, error) {
	payload := c.searchPayload()
	payload["specialty"] = filters.Specialty
	payload["gender"] = filters.Gender
	payload["language"] = filters.Language
	if filters.ZipCode != "" {
		payload["startingLocationZip"] = filters.ZipCode
	}
	return c.search(ctx, c.opts.SearchByFiltersPath, payload)
}

func (c *Client) ApplyAssignment(ctx context.Context, subjectID, candidateID, reason string) (string, error) {
	data, err := c.post(ctx, c.opts.AssignmentPath, map[string]any{
		"subjectId":   subjectID,
		"providerId":  candidateID,
		"reason":      reason,
		"asOfDate":    formatAsOfDate(""),
	})
	if err != nil {
		return "", fmt.Errorf("pcp assignment failed: %w", err)
	}
	var response struct {
		Confirmation string `json:"confirmation"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return "", fmt.Errorf("failed to decode assignment response: %w", err)
	}
	if response.Confirmation != "" {
		return response.Confirmation, nil
	}
	return response.Message, nil
}

// search posts the payload and normalizes the providerDetails entries.
func (c *Client) search(ctx context.Context, path string, payload map[string]any) ([]dialogue.Candidate, error) {
	data, err := c.post(ctx, path, payload)
	if err != nil {
		return nil, fmt.Errorf("provider search failed: %w", err)
	}

	var response struct {
		ProviderDetails json.RawMessage `json:"providerDetails"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to decode provider search response: %w", err)
	}
	if len(response.ProviderDetails) == 0 || string(response.ProviderDetails) == "null" {
		return nil, nil
	}

	// The API returns a single object or a list depending on result count
	var details []map[string]any
	if err := json.Unmarshal(response.ProviderDetails, &details); err != nil {
		var single map[string]any
		if err := json.Unmarshal(response.ProviderDetails, &single); err != nil {
			return nil, fmt.Errorf("unexpected providerDetails shape: %w", err)
		}
		details = []map[string]any{single}
	}

	var candidates []dialogue.Candidate
	for _, detail := range details {
		candidate, ok := normalizeProviderDetail(detail)
		if !ok {
			// Skip malformed entries without failing the search
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.opts.RetryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying directory request", "path", path, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("directory returned status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("directory returned status %d: %s", resp.StatusCode, data)
		}
		return data, nil
	}
	return nil, fmt.Errorf("directory request failed after %d retries: %w", c.opts.MaxRetries, lastErr)
}

// normalizeProviderDetail flattens a providerDetails entry, which nests its
// fields under providerInfo and providerContact.
func normalizeProviderDetail(detail map[string]any) (dialogue.Candidate, bool) {
	info, _ := detail["providerInfo"].(map[string]any)
	contact, _ := detail["providerContact"].(map[string]any)
	if info == nil {
		return dialogue.Candidate{}, false
	}

	candidate := dialogue.Candidate{
		ProviderID:    stringField(info, "providerId"),
		Name:          stringField(info, "providerName"),
		NetworkStatus: stringField(info, "networkStatus"),
	}
	if candidate.Name == "" {
		candidate.Name = stringField(info, "providerFullName")
	}
	if candidate.ProviderID == "" {
		return dialogue.Candidate{}, false
	}
	candidate.AcceptingNewMembers = boolField(info, "isAcceptingNewMembers")
	candidate.PCPAssignable = stringField(info, "pcpAssnInd") == "Y" || boolField(info, "pcpAssnInd")
	if distance, ok := info["distanceInMiles"].(float64); ok {
		candidate.DistanceMiles = distance
	}

	if contact != nil {
		candidate.Address1 = stringField(contact, "addressLine1")
		candidate.Address2 = stringField(contact, "addressLine2")
		candidate.City = stringField(contact, "city")
		candidate.State = stringField(contact, "state")
		candidate.Zip = stringField(contact, "zip")
		candidate.County = stringField(contact, "county")
		candidate.Phone = stringField(contact, "phone")
	}
	return candidate, true
}

func stringField(m map[string]any, key string) string {
	value, _ := m[key].(string)
	return value
}

func boolField(m map[string]any, key string) bool {
	value, _ := m[key].(bool)
	return value
}
