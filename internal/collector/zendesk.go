package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/dataset"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
	apperrors "github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/errors"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/logger"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/normalize"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/session"
)

// SatisfactionQuery selects closed tickets that received a rating
const SatisfactionQuery = "type:ticket status:closed -satisfaction:offered -satisfaction:unoffered"

const (
	DefaultPageSize = 1000
	DefaultThrottle = time.Second
)

// Options configures the Zendesk collector
type Options struct {
	BaseURL        string
	Query          string
	PageSize       int
	Throttle       time.Duration
	RequestTimeout time.Duration
	Logger         *logger.Logger
}

// zendeskCollector implements Collector using the Zendesk API v2
type zendeskCollector struct {
	opts        Options
	provider    session.Provider
	fetcherOpts []FetcherOption
	log         *logger.Logger
}

// NewZendeskCollector creates a new Zendesk collector. Credentials are
// requested from provider once per collection run.
func NewZendeskCollector(opts Options, provider session.Provider, fetcherOpts ...FetcherOption) Collector {
	if opts.Query == "" {
		opts.Query = SatisfactionQuery
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Throttle <= 0 {
		opts.Throttle = DefaultThrottle
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &zendeskCollector{
		opts:        opts,
		provider:    provider,
		fetcherOpts: fetcherOpts,
		log:         log.WithComponent("collector"),
	}
}

// open acquires a session and a fetcher bound to it. The caller must
// close the session on every exit path.
func (c *zendeskCollector) open(ctx context.Context) (*session.Session, *Fetcher, error) {
	creds, err := c.provider.Credentials(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to obtain credentials: %w", err)
	}

	var sopts []session.Option
	if c.opts.RequestTimeout > 0 {
		sopts = append(sopts, session.WithTimeout(c.opts.RequestTimeout))
	}
	sess, err := session.Open(ctx, c.opts.BaseURL, creds, sopts...)
	if err != nil {
		return nil, nil, err
	}

	fopts := []FetcherOption{
		WithThrottle(NewRateLimiter(c.opts.Throttle)),
		WithFetcherLogger(c.log),
	}
	fopts = append(fopts, c.fetcherOpts...)
	return sess, NewFetcher(sess.Client(), fopts...), nil
}

type searchCountResponse struct {
	Count int `json:"count"`
}

type searchExportPage struct {
	Results []normalize.RawTicket `json:"results"`
	Meta    struct {
		HasMore     bool   `json:"has_more"`
		AfterCursor string `json:"after_cursor"`
	} `json:"meta"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// CollectTickets retrieves the ticket summaries matching the satisfaction query
func (c *zendeskCollector) CollectTickets(ctx context.Context, onProgress ProgressCallback) (*dataset.Table[domain.TicketSummary], error) {
	sess, fetcher, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	base := sess.BaseURL()

	// The count only feeds progress reporting
	var count searchCountResponse
	countURL := base + "/api/v2/search/count?" + url.Values{"query": {c.opts.Query}}.Encode()
	if err := fetcher.GetJSON(ctx, countURL, &count); err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	c.log.WithField("count", count.Count).Info("collecting tickets")

	q := url.Values{}
	q.Set("query", c.opts.Query)
	q.Set("filter[type]", "ticket")
	q.Set("page[size]", fmt.Sprint(c.opts.PageSize))
	exportURL := base + "/api/v2/search/export?" + q.Encode()

	asm := dataset.NewAssembler[domain.TicketSummary](domain.TicketSummaryColumns)
	err = fetcher.FollowCursor(ctx, exportURL, func(pageURL string, body []byte) (string, error) {
		var page searchExportPage
		if err := json.Unmarshal(body, &page); err != nil {
			return "", apperrors.NewMalformedError(pageURL, err)
		}

		batch := make([]domain.TicketSummary, 0, len(page.Results))
		for i := range page.Results {
			batch = append(batch, normalize.Ticket(&page.Results[i]))
		}
		asm.Add(batch)
		report(onProgress, Progress{Records: asm.Len(), Total: count.Count})

		if !page.Meta.HasMore {
			return "", nil
		}
		if page.Links.Next == "" {
			return "", apperrors.NewMalformedError(pageURL, fmt.Errorf("has_more set without links.next"))
		}
		return page.Links.Next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect tickets: %w", err)
	}

	table := asm.Table()
	rowsCollected.WithLabelValues(string(domain.DatasetTickets)).Add(float64(table.Len()))
	c.log.WithField("rows", table.Len()).WithField("pages", asm.Batches()).Info("tickets collected")
	return table, nil
}

type ticketMetricResponse struct {
	TicketMetric *normalize.RawTicketMetrics `json:"ticket_metric"`
}

// CollectMetrics retrieves the metrics of each ticket id
func (c *zendeskCollector) CollectMetrics(ctx context.Context, ids []int64, onProgress ProgressCallback) (*dataset.Table[domain.TicketMetrics], error) {
	sess, fetcher, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	base := sess.BaseURL()
	urlFor := func(id int64) string {
		return fmt.Sprintf("%s/api/v2/tickets/%d/metrics.json", base, id)
	}

	c.log.WithField("tickets", len(ids)).Info("collecting ticket metrics")
	asm := dataset.NewAssembler[domain.TicketMetrics](domain.TicketMetricsColumns)
	err = fetcher.ForEachEntity(ctx, ids, urlFor, func(id int64, pageURL string, body []byte) (string, error) {
		var resp ticketMetricResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", apperrors.NewMalformedError(pageURL, err)
		}
		if resp.TicketMetric == nil {
			return "", apperrors.NewMalformedError(pageURL, fmt.Errorf("missing ticket_metric"))
		}
		row := normalize.Metrics(resp.TicketMetric)
		if row.TicketID == 0 {
			row.TicketID = id
		}
		asm.Add([]domain.TicketMetrics{row})
		report(onProgress, Progress{Records: asm.Len(), Total: len(ids), Tickets: asm.Len(), TicketTotal: len(ids)})
		return "", nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect ticket metrics: %w", err)
	}

	table := asm.Table()
	rowsCollected.WithLabelValues(string(domain.DatasetMetrics)).Add(float64(table.Len()))
	c.log.WithField("rows", table.Len()).Info("ticket metrics collected")
	return table, nil
}

type commentsPage struct {
	Comments []normalize.RawComment `json:"comments"`
	NextPage *string                `json:"next_page"`
}

// CollectComments retrieves the comments of each ticket id
func (c *zendeskCollector) CollectComments(ctx context.Context, ids []int64, onProgress ProgressCallback) (*dataset.Table[domain.TicketComment], error) {
	sess, fetcher, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	base := sess.BaseURL()
	urlFor := func(id int64) string {
		return fmt.Sprintf("%s/api/v2/tickets/%d/comments.json?sort_order=asc", base, id)
	}

	c.log.WithField("tickets", len(ids)).Info("collecting ticket comments")
	asm := dataset.NewAssembler[domain.TicketComment](domain.TicketCommentColumns)
	done := 0
	err = fetcher.ForEachEntity(ctx, ids, urlFor, func(id int64, pageURL string, body []byte) (string, error) {
		var page commentsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return "", apperrors.NewMalformedError(pageURL, err)
		}

		// A ticket without comments yields an empty batch
		batch := make([]domain.TicketComment, 0, len(page.Comments))
		for i := range page.Comments {
			batch = append(batch, normalize.Comment(id, &page.Comments[i]))
		}
		asm.Add(batch)

		next := ""
		if page.NextPage != nil {
			next = *page.NextPage
		}
		if next == "" {
			done++
		}
		// the comment total is unknown until every ticket is drained
		report(onProgress, Progress{Records: asm.Len(), Tickets: done, TicketTotal: len(ids)})
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect ticket comments: %w", err)
	}

	table := asm.Table()
	rowsCollected.WithLabelValues(string(domain.DatasetComments)).Add(float64(table.Len()))
	c.log.WithField("rows", table.Len()).WithField("tickets", done).Info("ticket comments collected")
	return table, nil
}
