package domain

import (
	"strconv"
)

// Record is a flat dataset row with a fixed column order
type Record interface {
	Values() []string
}

// TicketSummaryColumns is the column order of the ticket summary dataset
var TicketSummaryColumns = []string{
	"id", "type", "subject", "description", "status", "group_id",
	"recipient", "channel", "sat_score", "sat_comment",
}

// TicketSummary is one closed ticket with a resolved satisfaction rating
type TicketSummary struct {
	ID          int64   `json:"id"`
	Type        *string `json:"type"`
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	GroupID     *int64  `json:"group_id"`
	Recipient   *string `json:"recipient"`
	Channel     *string `json:"channel"`
	SatScore    *string `json:"sat_score"`
	SatComment  *string `json:"sat_comment"`
}

// Values returns the row in TicketSummaryColumns order
func (t TicketSummary) Values() []string {
	return []string{
		strconv.FormatInt(t.ID, 10),
		str(t.Type),
		t.Subject,
		t.Description,
		t.Status,
		int64Str(t.GroupID),
		str(t.Recipient),
		str(t.Channel),
		str(t.SatScore),
		str(t.SatComment),
	}
}

// TicketMetricsColumns is the column order of the ticket metrics dataset
var TicketMetricsColumns = []string{
	"id", "ticket_id", "url", "group_stations", "assignee_stations", "reopens", "replies",
	"assignee_updated_at", "requester_updated_at", "status_updated_at",
	"initially_assigned_at", "assigned_at", "solved_at", "latest_comment_added_at",
	"created_at", "updated_at",
	"reply_mins", "first_reso_mins", "full_reso_mins",
	"agent_wait_mins", "requester_wait_mins", "on_hold_mins",
}

// TicketMetrics holds lifecycle metrics of one ticket. Durations are
// calendar minutes, nil when the ticket never reached the milestone.
type TicketMetrics struct {
	ID                   int64    `json:"id"`
	TicketID             int64    `json:"ticket_id"`
	URL                  string   `json:"url"`
	GroupStations        *int64   `json:"group_stations"`
	AssigneeStations     *int64   `json:"assignee_stations"`
	Reopens              *int64   `json:"reopens"`
	Replies              *int64   `json:"replies"`
	AssigneeUpdatedAt    *string  `json:"assignee_updated_at"`
	RequesterUpdatedAt   *string  `json:"requester_updated_at"`
	StatusUpdatedAt      *string  `json:"status_updated_at"`
	InitiallyAssignedAt  *string  `json:"initially_assigned_at"`
	AssignedAt           *string  `json:"assigned_at"`
	SolvedAt             *string  `json:"solved_at"`
	LatestCommentAddedAt *string  `json:"latest_comment_added_at"`
	CreatedAt            *string  `json:"created_at"`
	UpdatedAt            *string  `json:"updated_at"`
	ReplyMins            *float64 `json:"reply_mins"`
	FirstResoMins        *float64 `json:"first_reso_mins"`
	FullResoMins         *float64 `json:"full_reso_mins"`
	AgentWaitMins        *float64 `json:"agent_wait_mins"`
	RequesterWaitMins    *float64 `json:"requester_wait_mins"`
	OnHoldMins           *float64 `json:"on_hold_mins"`
}

// Values returns the row in TicketMetricsColumns order
func (m TicketMetrics) Values() []string {
	return []string{
		strconv.FormatInt(m.ID, 10),
		strconv.FormatInt(m.TicketID, 10),
		m.URL,
		int64Str(m.GroupStations),
		int64Str(m.AssigneeStations),
		int64Str(m.Reopens),
		int64Str(m.Replies),
		str(m.AssigneeUpdatedAt),
		str(m.RequesterUpdatedAt),
		str(m.StatusUpdatedAt),
		str(m.InitiallyAssignedAt),
		str(m.AssignedAt),
		str(m.SolvedAt),
		str(m.LatestCommentAddedAt),
		str(m.CreatedAt),
		str(m.UpdatedAt),
		floatStr(m.ReplyMins),
		floatStr(m.FirstResoMins),
		floatStr(m.FullResoMins),
		floatStr(m.AgentWaitMins),
		floatStr(m.RequesterWaitMins),
		floatStr(m.OnHoldMins),
	}
}

// TicketCommentColumns is the column order of the ticket comments dataset
var TicketCommentColumns = []string{
	"id", "type", "author_id", "body", "html_body", "plain_body",
	"public", "audit_id", "created_at", "channel", "ticket_id",
}

// TicketComment is one comment of a ticket. TicketID references the parent
// TicketSummary for later joins.
type TicketComment struct {
	ID        int64   `json:"id"`
	Type      *string `json:"type"`
	AuthorID  *int64  `json:"author_id"`
	Body      string  `json:"body"`
	HTMLBody  string  `json:"html_body"`
	PlainBody string  `json:"plain_body"`
	Public    *bool   `json:"public"`
	AuditID   *int64  `json:"audit_id"`
	CreatedAt *string `json:"created_at"`
	Channel   *string `json:"channel"`
	TicketID  int64   `json:"ticket_id"`
}

// Values returns the row in TicketCommentColumns order
func (c TicketComment) Values() []string {
	public := ""
	if c.Public != nil {
		public = strconv.FormatBool(*c.Public)
	}
	return []string{
		strconv.FormatInt(c.ID, 10),
		str(c.Type),
		int64Str(c.AuthorID),
		c.Body,
		c.HTMLBody,
		c.PlainBody,
		public,
		int64Str(c.AuditID),
		str(c.CreatedAt),
		str(c.Channel),
		strconv.FormatInt(c.TicketID, 10),
	}
}

// TicketIDs returns the identifiers of rows in row order
func TicketIDs(rows []TicketSummary) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func int64Str(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func floatStr(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
