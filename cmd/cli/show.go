package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/aggregator"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
	apperrors "github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/errors"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/pkg/client"
)

var (
	remote    bool
	runsLimit int
)

// source is where show reads collected data from
type source interface {
	Summary(ctx context.Context) (*domain.SatisfactionSummary, error)
	Channels(ctx context.Context) ([]*domain.ChannelSatisfaction, error)
	Runs(ctx context.Context, limit int) ([]*domain.CollectionRun, error)
	Ticket(ctx context.Context, id int64) (*ticketDetail, error)
}

type ticketDetail struct {
	Ticket   *domain.TicketSummary  `json:"ticket"`
	Metrics  *domain.TicketMetrics  `json:"metrics,omitempty"`
	Comments []domain.TicketComment `json:"comments"`
}

func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show collected satisfaction data",
	}
	showCmd.PersistentFlags().BoolVar(&remote, "remote", false, "read from the API server instead of local storage")

	showCmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Show the satisfaction summary",
		RunE: withSource(func(ctx context.Context, src source, out io.Writer) error {
			summary, err := src.Summary(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(out, summary)
			}
			printSummary(out, summary)
			return nil
		}),
	})
	showCmd.AddCommand(&cobra.Command{
		Use:   "channels",
		Short: "Show ratings per intake channel",
		RunE: withSource(func(ctx context.Context, src source, out io.Writer) error {
			channels, err := src.Channels(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(out, channels)
			}
			printChannels(out, channels)
			return nil
		}),
	})

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent collection runs",
		RunE: withSource(func(ctx context.Context, src source, out io.Writer) error {
			runs, err := src.Runs(ctx, runsLimit)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(out, runs)
			}
			printRuns(out, runs)
			return nil
		}),
	}
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs")
	showCmd.AddCommand(runsCmd)

	showCmd.AddCommand(&cobra.Command{
		Use:   "ticket <id>",
		Short: "Show one ticket with its metrics and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid ticket id %q", args[0])
			}
			return withSource(func(ctx context.Context, src source, out io.Writer) error {
				detail, err := src.Ticket(ctx, id)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(out, detail)
				}
				printTicket(out, detail)
				return nil
			})(cmd, args)
		},
	})
	return showCmd
}

func withSource(fn func(ctx context.Context, src source, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if remote {
			return fn(cmd.Context(), &remoteSource{client: client.NewClient(cfg.APIEndpoint)}, cmd.OutOrStdout())
		}

		st, err := getStorage(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		if st == nil {
			return fmt.Errorf("storage is disabled; use --remote or set STORAGE_TYPE")
		}
		defer st.Close()
		return fn(cmd.Context(), newLocalSource(st), cmd.OutOrStdout())
	}
}

// localSource reads from the configured storage
type localSource struct {
	store storage.Storage
	agg   aggregator.Aggregator
}

func newLocalSource(st storage.Storage) *localSource {
	return &localSource{store: st, agg: aggregator.NewAggregator(st)}
}

func (s *localSource) Summary(ctx context.Context) (*domain.SatisfactionSummary, error) {
	return s.agg.SatisfactionSummary(ctx)
}

func (s *localSource) Channels(ctx context.Context) ([]*domain.ChannelSatisfaction, error) {
	return s.agg.ChannelBreakdown(ctx)
}

func (s *localSource) Runs(ctx context.Context, limit int) ([]*domain.CollectionRun, error) {
	return s.store.ListRuns(ctx, limit)
}

func (s *localSource) Ticket(ctx context.Context, id int64) (*ticketDetail, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics, err := s.store.GetMetrics(ctx, id)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	comments, err := s.store.GetComments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ticketDetail{Ticket: ticket, Metrics: metrics, Comments: comments}, nil
}

// remoteSource reads from a running API server
type remoteSource struct {
	client *client.Client
}

func (s *remoteSource) Summary(ctx context.Context) (*domain.SatisfactionSummary, error) {
	return s.client.GetSatisfactionSummary(ctx)
}

func (s *remoteSource) Channels(ctx context.Context) ([]*domain.ChannelSatisfaction, error) {
	return s.client.GetChannelBreakdown(ctx)
}

func (s *remoteSource) Runs(ctx context.Context, limit int) ([]*domain.CollectionRun, error) {
	return s.client.ListRuns(ctx, limit)
}

func (s *remoteSource) Ticket(ctx context.Context, id int64) (*ticketDetail, error) {
	ticket, err := s.client.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics, err := s.client.GetTicketMetrics(ctx, id)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	comments, err := s.client.GetTicketComments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ticketDetail{Ticket: ticket, Metrics: metrics, Comments: comments}, nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(out io.Writer, s *domain.SatisfactionSummary) {
	fmt.Fprintln(out, "\n=== Satisfaction Summary ===")

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Rated Tickets", fmt.Sprintf("%d", s.TotalTickets)})
	table.Append([]string{"Good", fmt.Sprintf("%d", s.Good)})
	table.Append([]string{"Bad", fmt.Sprintf("%d", s.Bad)})
	table.Append([]string{"Good Rate", fmt.Sprintf("%.1f%%", s.GoodRate*100)})
	table.Append([]string{"With Rating Comment", fmt.Sprintf("%d", s.WithComment)})
	table.Append([]string{"Tickets With Metrics", fmt.Sprintf("%d", s.TicketsWithMetric)})
	table.Append([]string{"Comments", fmt.Sprintf("%d", s.Comments)})
	for _, score := range sortedKeys(s.AvgFullResoMins) {
		table.Append([]string{"Avg Full Resolution (" + score + ")", fmt.Sprintf("%.0f min", s.AvgFullResoMins[score])})
	}
	for _, score := range sortedKeys(s.AvgReplyMins) {
		table.Append([]string{"Avg First Reply (" + score + ")", fmt.Sprintf("%.0f min", s.AvgReplyMins[score])})
	}
	table.Render()
}

func printChannels(out io.Writer, channels []*domain.ChannelSatisfaction) {
	fmt.Fprintln(out, "\n=== Ratings by Channel ===")

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Channel", "Tickets", "Good", "Bad", "Good Rate"})
	for _, c := range channels {
		table.Append([]string{
			c.Channel,
			fmt.Sprintf("%d", c.Tickets),
			fmt.Sprintf("%d", c.Good),
			fmt.Sprintf("%d", c.Bad),
			fmt.Sprintf("%.1f%%", c.GoodRate*100),
		})
	}
	table.Render()
}

func printRuns(out io.Writer, runs []*domain.CollectionRun) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Dataset", "Status", "Rows", "Started", "Error"})
	for _, r := range runs {
		table.Append([]string{
			r.ID,
			string(r.Kind),
			r.Status,
			fmt.Sprintf("%d", r.Rows),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Error,
		})
	}
	table.Render()
}

func printTicket(out io.Writer, d *ticketDetail) {
	fmt.Fprintf(out, "\n=== Ticket #%d ===\n", d.Ticket.ID)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Field", "Value"})
	values := d.Ticket.Values()
	for i, col := range domain.TicketSummaryColumns {
		table.Append([]string{col, values[i]})
	}
	if d.Metrics != nil {
		values = d.Metrics.Values()
		for i, col := range domain.TicketMetricsColumns {
			if values[i] != "" {
				table.Append([]string{col, values[i]})
			}
		}
	}
	table.Render()

	fmt.Fprintf(out, "\n%d comments\n", len(d.Comments))
	for _, c := range d.Comments {
		created := ""
		if c.CreatedAt != nil {
			created = *c.CreatedAt
		}
		fmt.Fprintf(out, "--- #%d %s\n%s\n", c.ID, created, c.PlainBody)
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
