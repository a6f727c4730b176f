// Package cloudflare implements the provider interface for Cloudflare DNS.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/httputil"
	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for Cloudflare API v4.
	DefaultAPIEndpoint = "https://api.cloudflare.com/client/v4"

	zonePageSize   = 50
	recordPageSize = 1000
)

// Cloudflare error codes that mean the record is already present.
const (
	codeRecordExists    = 81053
	codeIdenticalRecord = 81058
	codeRecordNotFound  = 81044
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Count      int `json:"count"`
	TotalCount int `json:"total_count"`
}

// apiResponse is the standard Cloudflare API response wrapper.
type apiResponse struct {
	Success    bool            `json:"success"`
	Errors     []apiError      `json:"errors"`
	Result     json.RawMessage `json:"result"`
	ResultInfo *resultInfo     `json:"result_info"`
}

type zone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type dnsRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

// recordRequest is the body for creating or replacing a DNS record.
type recordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied *bool  `json:"proxied,omitempty"`
}

// Client is a Cloudflare DNS API client.
type Client struct {
	apiEndpoint string
	token       string
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAPIEndpoint sets a custom API endpoint (useful for testing).
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.apiEndpoint = endpoint
	}
}

// NewClient creates a new Cloudflare API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		token:       token,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(&httputil.ClientConfig{Logger: c.logger})
	}

	return c
}

// doRequest performs an HTTP request to the Cloudflare API and maps
// failures onto the provider error sentinels.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiEndpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var apiResp apiResponse
	parseErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, &apiResp, parseErr, respBody)
	}

	if parseErr != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", parseErr)
	}

	if !apiResp.Success {
		if len(apiResp.Errors) > 0 {
			return nil, codeError(apiResp.Errors[0])
		}
		return nil, fmt.Errorf("API request failed with unknown error")
	}

	return &apiResp, nil
}

func statusError(status int, apiResp *apiResponse, parseErr error, body []byte) error {
	detail := fmt.Sprintf("status %d", status)
	if parseErr == nil && len(apiResp.Errors) > 0 {
		e := apiResp.Errors[0]
		if e.Code == codeRecordExists || e.Code == codeIdenticalRecord || e.Code == codeRecordNotFound {
			return codeError(e)
		}
		detail = fmt.Sprintf("%s (code: %d, status %d)", e.Message, e.Code, status)
	} else if len(body) > 0 {
		detail = fmt.Sprintf("status %d: %s", status, truncate(string(body), 200))
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", provider.ErrUnauthorized, detail)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", provider.ErrNotFound, detail)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimited, detail)
	case status >= 500:
		return fmt.Errorf("%w: %s", provider.ErrProviderUnavailable, detail)
	default:
		return fmt.Errorf("API error: %s", detail)
	}
}

func codeError(e apiError) error {
	switch e.Code {
	case codeRecordExists, codeIdenticalRecord:
		return fmt.Errorf("%w: %s", provider.ErrConflict, e.Message)
	case codeRecordNotFound:
		return fmt.Errorf("%w: %s", provider.ErrNotFound, e.Message)
	default:
		return fmt.Errorf("API error: %s (code: %d)", e.Message, e.Code)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// paged calls fetch for consecutive pages until result_info reports the last page.
func paged[T any](ctx context.Context, c *Client, path string, params url.Values, perPage int) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(perPage))

		resp, err := c.doRequest(ctx, http.MethodGet, path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var items []T
		if err := json.Unmarshal(resp.Result, &items); err != nil {
			return nil, fmt.Errorf("parsing page %d: %w", page, err)
		}
		all = append(all, items...)

		if resp.ResultInfo == nil || page >= resp.ResultInfo.TotalPages || len(items) == 0 {
			return all, nil
		}
	}
}

// Ping checks connectivity and token validity.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/user/tokens/verify", nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// ListZones returns every active zone the token can access.
func (c *Client) ListZones(ctx context.Context) ([]zone, error) {
	params := url.Values{}
	params.Set("status", "active")

	zones, err := paged[zone](ctx, c, "/zones", params, zonePageSize)
	if err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}

	c.logger.Debug("listed zones", slog.Int("count", len(zones)))
	return zones, nil
}

// GetZone looks up an active zone by its exact name.
func (c *Client) GetZone(ctx context.Context, name string) (zone, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("status", "active")

	zones, err := paged[zone](ctx, c, "/zones", params, zonePageSize)
	if err != nil {
		return zone{}, fmt.Errorf("looking up zone %s: %w", name, err)
	}
	if len(zones) == 0 {
		return zone{}, fmt.Errorf("zone %s: %w", name, provider.ErrNotFound)
	}

	c.logger.Debug("found zone",
		slog.String("zone", name),
		slog.String("zone_id", zones[0].ID),
	)
	return zones[0], nil
}

// ListRecords returns all DNS records of recordType in the given zone.
func (c *Client) ListRecords(ctx context.Context, zoneID, recordType string) ([]dnsRecord, error) {
	params := url.Values{}
	params.Set("type", recordType)

	records, err := paged[dnsRecord](ctx, c, "/zones/"+zoneID+"/dns_records", params, recordPageSize)
	if err != nil {
		return nil, fmt.Errorf("listing %s records: %w", recordType, err)
	}

	c.logger.Debug("listed records",
		slog.String("zone_id", zoneID),
		slog.String("type", recordType),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// FindRecord returns the record matching name, type and content, or ErrNotFound.
func (c *Client) FindRecord(ctx context.Context, zoneID, recordType, name, content string) (*dnsRecord, error) {
	params := url.Values{}
	params.Set("type", recordType)
	params.Set("name", name)
	if content != "" {
		params.Set("content", content)
	}

	records, err := paged[dnsRecord](ctx, c, "/zones/"+zoneID+"/dns_records", params, recordPageSize)
	if err != nil {
		return nil, fmt.Errorf("finding record: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s %s: %w", recordType, name, provider.ErrNotFound)
	}
	return &records[0], nil
}

// CreateRecord creates a new DNS record in the specified zone.
func (c *Client) CreateRecord(ctx context.Context, zoneID string, req recordRequest) (*dnsRecord, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/zones/"+zoneID+"/dns_records", req)
	if err != nil {
		return nil, fmt.Errorf("creating record: %w", err)
	}

	var created dnsRecord
	if err := json.Unmarshal(resp.Result, &created); err != nil {
		return nil, fmt.Errorf("parsing created record: %w", err)
	}
	return &created, nil
}

// UpdateRecord replaces the record with recordID.
func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID string, req recordRequest) error {
	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	if _, err := c.doRequest(ctx, http.MethodPut, path, req); err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	return nil
}

// DeleteRecord deletes a DNS record by ID.
func (c *Client) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}
