// Package platform talks to the external community platform's member API.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ResultStatus tags a group-membership lookup outcome
type ResultStatus int

const (
	StatusOK ResultStatus = iota
	StatusNotFound
	StatusRateLimited
	StatusError
)

// GroupsResult is the total outcome of a group-membership lookup. Callers
// branch on Status instead of unwinding heterogeneous errors, which keeps
// the synchronizer's retry policy a total function over this type.
type GroupsResult struct {
	Status     ResultStatus
	Groups     []string
	RetryAfter time.Duration // Set when Status is StatusRateLimited
	Err        error         // Set when Status is StatusError
}

// Client fetches group memberships from the community platform
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new platform client
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
	}
}

type groupsResponse struct {
	Groups []string `json:"groups"`
}

// FetchGroupRoles returns the external group identifiers the member belongs
// to. A 404 means the identity is not a platform member and maps to
// StatusNotFound, not an error; a 429 carries the server's retry-after
// interval.
func (c *Client) FetchGroupRoles(ctx context.Context, externalID string) GroupsResult {
	endpoint := fmt.Sprintf("%s/api/members/%s/groups", c.baseURL, url.PathEscape(externalID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return GroupsResult{Status: StatusError, Err: fmt.Errorf("create group roles request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GroupsResult{Status: StatusError, Err: fmt.Errorf("fetch group roles: %w", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var parsed groupsResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return GroupsResult{Status: StatusError, Err: fmt.Errorf("decode group roles response: %w", err)}
		}
		return GroupsResult{Status: StatusOK, Groups: parsed.Groups}
	case http.StatusNotFound:
		return GroupsResult{Status: StatusNotFound}
	case http.StatusTooManyRequests:
		return GroupsResult{Status: StatusRateLimited, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		return GroupsResult{Status: StatusError, Err: fmt.Errorf("unexpected platform status %d", resp.StatusCode)}
	}
}

// defaultRetryAfter is used when the server sends no usable Retry-After
const defaultRetryAfter = 5 * time.Second

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}
