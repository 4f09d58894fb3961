package aggregator

import (
	"context"
	"sort"
	"strings"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
)

// UnknownChannel labels tickets without an intake channel
const UnknownChannel = "unknown"

// Aggregator defines the interface for aggregating stored datasets
type Aggregator interface {
	// SatisfactionSummary aggregates ratings, comments and resolution times
	SatisfactionSummary(ctx context.Context) (*domain.SatisfactionSummary, error)

	// ChannelBreakdown splits ratings by intake channel
	ChannelBreakdown(ctx context.Context) ([]*domain.ChannelSatisfaction, error)
}

// aggregator implements the Aggregator interface
type aggregator struct {
	storage storage.Storage
}

// NewAggregator creates a new aggregator
func NewAggregator(storage storage.Storage) Aggregator {
	return &aggregator{
		storage: storage,
	}
}

// SatisfactionSummary aggregates the stored tickets and metrics
func (a *aggregator) SatisfactionSummary(ctx context.Context) (*domain.SatisfactionSummary, error) {
	tickets, err := a.storage.GetTickets(ctx, storage.TicketFilter{})
	if err != nil {
		return nil, err
	}
	metrics, err := a.storage.GetAllMetrics(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := a.storage.CountRows(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(tickets, metrics, counts[domain.DatasetComments]), nil
}

// ChannelBreakdown splits the stored tickets by channel
func (a *aggregator) ChannelBreakdown(ctx context.Context) ([]*domain.ChannelSatisfaction, error) {
	tickets, err := a.storage.GetTickets(ctx, storage.TicketFilter{})
	if err != nil {
		return nil, err
	}
	return ByChannel(tickets), nil
}

// Summarize computes a summary from in-memory datasets. Average times are
// keyed by satisfaction score and only cover tickets with metrics.
func Summarize(tickets []domain.TicketSummary, metrics []domain.TicketMetrics, comments int) *domain.SatisfactionSummary {
	summary := &domain.SatisfactionSummary{
		TotalTickets:    len(tickets),
		Comments:        comments,
		AvgFullResoMins: map[string]float64{},
		AvgReplyMins:    map[string]float64{},
	}

	byTicket := make(map[int64]*domain.TicketMetrics, len(metrics))
	for i := range metrics {
		byTicket[metrics[i].TicketID] = &metrics[i]
	}

	full := map[string]*mean{}
	reply := map[string]*mean{}
	for _, t := range tickets {
		score := ""
		if t.SatScore != nil {
			score = *t.SatScore
		}
		switch score {
		case domain.ScoreGood:
			summary.Good++
		case domain.ScoreBad:
			summary.Bad++
		}
		if t.SatComment != nil && strings.TrimSpace(*t.SatComment) != "" {
			summary.WithComment++
		}

		m, ok := byTicket[t.ID]
		if !ok {
			continue
		}
		summary.TicketsWithMetric++
		if score == "" {
			continue
		}
		if m.FullResoMins != nil {
			meanFor(full, score).add(*m.FullResoMins)
		}
		if m.ReplyMins != nil {
			meanFor(reply, score).add(*m.ReplyMins)
		}
	}

	summary.GoodRate = rate(summary.Good, summary.Bad)
	for score, m := range full {
		summary.AvgFullResoMins[score] = m.value()
	}
	for score, m := range reply {
		summary.AvgReplyMins[score] = m.value()
	}
	return summary
}

// ByChannel groups tickets by channel, busiest channel first
func ByChannel(tickets []domain.TicketSummary) []*domain.ChannelSatisfaction {
	channels := map[string]*domain.ChannelSatisfaction{}
	for _, t := range tickets {
		name := UnknownChannel
		if t.Channel != nil && *t.Channel != "" {
			name = *t.Channel
		}
		c, ok := channels[name]
		if !ok {
			c = &domain.ChannelSatisfaction{Channel: name}
			channels[name] = c
		}
		c.Tickets++
		if t.SatScore != nil {
			switch *t.SatScore {
			case domain.ScoreGood:
				c.Good++
			case domain.ScoreBad:
				c.Bad++
			}
		}
	}

	result := make([]*domain.ChannelSatisfaction, 0, len(channels))
	for _, c := range channels {
		c.GoodRate = rate(c.Good, c.Bad)
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Tickets != result[j].Tickets {
			return result[i].Tickets > result[j].Tickets
		}
		return result[i].Channel < result[j].Channel
	})
	return result
}

func rate(good, bad int) float64 {
	if good+bad == 0 {
		return 0
	}
	return float64(good) / float64(good+bad)
}

type mean struct {
	sum float64
	n   int
}

func meanFor(m map[string]*mean, key string) *mean {
	v, ok := m[key]
	if !ok {
		v = &mean{}
		m[key] = v
	}
	return v
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}
