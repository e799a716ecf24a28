// Package apiclient is the dashboard's HTTP client for the ticket API.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/developer-yasir/support-panel/internal/api/dto"
	"github.com/developer-yasir/support-panel/internal/domain"
)

const maxResponseBytes = 4 * 1024 * 1024

// Config holds the client settings.
type Config struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
}

// APIError is a non-2xx response decoded from the API's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Client calls the ticket API with a bearer token.
type Client struct {
	http   *http.Client
	config Config
}

// New constructs a Client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("apiclient: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("apiclient: parse BaseURL: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		config: cfg,
	}, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// FetchStats reads the ticket stats for window. It satisfies stats.Fetcher.
func (c *Client) FetchStats(ctx context.Context, window domain.FilterWindow) (domain.TicketCounts, error) {
	q := url.Values{}
	if p := window.StartParam(); p != "" {
		q.Set("startDate", p)
	}
	if p := window.EndParam(); p != "" {
		q.Set("endDate", p)
	}
	var out struct {
		Data domain.TicketCounts `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/tickets/stats", q, &out); err != nil {
		return domain.TicketCounts{}, err
	}
	return out.Data, nil
}

// SLASummary reads the SLA overview with at most limit urgent tickets.
func (c *Client) SLASummary(ctx context.Context, limit int) (dto.SLASummaryResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Data dto.SLASummaryResponse `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/tickets/sla/summary", q, &out); err != nil {
		return dto.SLASummaryResponse{}, err
	}
	return out.Data, nil
}

// ListTickets reads the newest tickets with any of statuses.
func (c *Client) ListTickets(ctx context.Context, statuses []domain.TicketStatus, limit int) ([]domain.Ticket, error) {
	q := url.Values{}
	if len(statuses) > 0 {
		parts := make([]string, len(statuses))
		for i, s := range statuses {
			parts[i] = string(s)
		}
		q.Set("status", strings.Join(parts, ","))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Data []dto.TicketResponse `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/tickets", q, &out); err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(out.Data))
	for _, t := range out.Data {
		tickets = append(tickets, t.Ticket())
	}
	return tickets, nil
}

// Ping checks the API liveness probe with a short timeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := c.doGet(pingCtx, "/health/live", nil)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	body, err := c.doGet(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string, q url.Values) ([]byte, error) {
	target := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		return &APIError{Status: status, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	return &APIError{Status: status, Message: truncate(body, 200)}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
