package domain

// Satisfaction scores of a resolved rating
const (
	ScoreGood = "good"
	ScoreBad  = "bad"
)

// SatisfactionSummary aggregates the collected ticket datasets
type SatisfactionSummary struct {
	TotalTickets      int                `json:"total_tickets"`
	Good              int                `json:"good"`
	Bad               int                `json:"bad"`
	GoodRate          float64            `json:"good_rate"`
	WithComment       int                `json:"with_comment"`
	TicketsWithMetric int                `json:"tickets_with_metrics"`
	Comments          int                `json:"comments"`
	AvgFullResoMins   map[string]float64 `json:"avg_full_reso_mins"`
	AvgReplyMins      map[string]float64 `json:"avg_reply_mins"`
}

// ChannelSatisfaction is the rating split for one intake channel
type ChannelSatisfaction struct {
	Channel  string  `json:"channel"`
	Tickets  int     `json:"tickets"`
	Good     int     `json:"good"`
	Bad      int     `json:"bad"`
	GoodRate float64 `json:"good_rate"`
}
