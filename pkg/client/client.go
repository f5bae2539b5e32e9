// Package client is a Go client for the star monitor HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
)

// Client is the API client for github-star-monitor
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError is a non-200 response from the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error: %d %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Message)
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetStatus retrieves the monitor status
func (c *Client) GetStatus(ctx context.Context) (*domain.RepoStatus, error) {
	var response struct {
		Data *domain.RepoStatus `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/status", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetActivity retrieves up to limit recent events, newest first. A limit of 0 uses the server default.
func (c *Client) GetActivity(ctx context.Context, limit int) ([]*domain.ActivityEvent, error) {
	var params url.Values
	if limit > 0 {
		params = url.Values{"limit": {strconv.Itoa(limit)}}
	}

	var response struct {
		Data []*domain.ActivityEvent `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/activity", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetTrend retrieves the daily series for the trailing days
func (c *Client) GetTrend(ctx context.Context, days int) (*domain.Trend, error) {
	return c.getTrend(ctx, "/api/v1/trend", "days", days)
}

// GetHourlyTrend retrieves the hourly series for the trailing hours
func (c *Client) GetHourlyTrend(ctx context.Context, hours int) (*domain.Trend, error) {
	return c.getTrend(ctx, "/api/v1/trend/hourly", "hours", hours)
}

func (c *Client) getTrend(ctx context.Context, path, key string, n int) (*domain.Trend, error) {
	var params url.Values
	if n > 0 {
		params = url.Values{key: {strconv.Itoa(n)}}
	}

	var response struct {
		Data *domain.Trend `json:"data"`
	}
	if err := c.get(ctx, path, params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetExport retrieves the snapshot, counters and activity history
func (c *Client) GetExport(ctx context.Context) (*domain.Export, error) {
	var response struct {
		Data *domain.Export `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/export", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}
