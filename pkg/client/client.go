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

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
	apperrors "github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/errors"
)

// Client is the API client for helpdesk-satisfaction-metrics
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TicketQuery filters ListTickets
type TicketQuery struct {
	Channel  string
	SatScore string
	Limit    int
	Offset   int
}

// ListTickets retrieves stored ticket summaries
func (c *Client) ListTickets(ctx context.Context, q TicketQuery) ([]domain.TicketSummary, error) {
	params := url.Values{}
	if q.Channel != "" {
		params.Set("channel", q.Channel)
	}
	if q.SatScore != "" {
		params.Set("sat_score", q.SatScore)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var response struct {
		Data []domain.TicketSummary `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/tickets", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetTicket retrieves one ticket summary
func (c *Client) GetTicket(ctx context.Context, id int64) (*domain.TicketSummary, error) {
	var response struct {
		Data *domain.TicketSummary `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/v1/tickets/%d", id), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetTicketMetrics retrieves the metrics of one ticket
func (c *Client) GetTicketMetrics(ctx context.Context, id int64) (*domain.TicketMetrics, error) {
	var response struct {
		Data *domain.TicketMetrics `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/v1/tickets/%d/metrics", id), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetTicketComments retrieves the comments of one ticket
func (c *Client) GetTicketComments(ctx context.Context, id int64) ([]domain.TicketComment, error) {
	var response struct {
		Data []domain.TicketComment `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/v1/tickets/%d/comments", id), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetSatisfactionSummary retrieves the overall satisfaction summary
func (c *Client) GetSatisfactionSummary(ctx context.Context) (*domain.SatisfactionSummary, error) {
	var response struct {
		Data *domain.SatisfactionSummary `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/satisfaction/summary", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetChannelBreakdown retrieves satisfaction per channel
func (c *Client) GetChannelBreakdown(ctx context.Context) ([]*domain.ChannelSatisfaction, error) {
	var response struct {
		Data []*domain.ChannelSatisfaction `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/satisfaction/channels", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// ListRuns retrieves recent collection runs
func (c *Client) ListRuns(ctx context.Context, limit int) ([]*domain.CollectionRun, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var response struct {
		Data []*domain.CollectionRun `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/runs", params, &response); err != nil {
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

type errorBody struct {
	Error struct {
		Code    apperrors.ErrCode `json:"code"`
		Message string            `json:"message"`
	} `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if len(params) > 0 {
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
		body, _ := io.ReadAll(resp.Body)
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error.Code != "" {
			return &apperrors.AppError{
				Code:    eb.Error.Code,
				Message: eb.Error.Message,
				Status:  resp.StatusCode,
				URL:     u.String(),
			}
		}
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
