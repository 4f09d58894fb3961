package normalize

import "encoding/json"

// RawVia describes how a ticket or comment entered the helpdesk
type RawVia struct {
	Channel json.RawMessage `json:"channel"`
}

// RawSatisfaction is the satisfaction_rating sub-object of a ticket
type RawSatisfaction struct {
	Score   *string `json:"score"`
	Comment *string `json:"comment"`
}

// RawTicket is one ticket as returned by the search export endpoint
type RawTicket struct {
	ID                 int64            `json:"id"`
	Type               *string          `json:"type"`
	Subject            string           `json:"subject"`
	Description        string           `json:"description"`
	Status             string           `json:"status"`
	GroupID            *int64           `json:"group_id"`
	Recipient          *string          `json:"recipient"`
	Via                *RawVia          `json:"via"`
	SatisfactionRating *RawSatisfaction `json:"satisfaction_rating"`
}

// RawDuration is a dual-unit duration in minutes
type RawDuration struct {
	Calendar *float64 `json:"calendar"`
	Business *float64 `json:"business"`
}

// RawTicketMetrics is the ticket_metric object of the metrics endpoint
type RawTicketMetrics struct {
	ID                           int64        `json:"id"`
	TicketID                     int64        `json:"ticket_id"`
	URL                          string       `json:"url"`
	GroupStations                *int64       `json:"group_stations"`
	AssigneeStations             *int64       `json:"assignee_stations"`
	Reopens                      *int64       `json:"reopens"`
	Replies                      *int64       `json:"replies"`
	AssigneeUpdatedAt            *string      `json:"assignee_updated_at"`
	RequesterUpdatedAt           *string      `json:"requester_updated_at"`
	StatusUpdatedAt              *string      `json:"status_updated_at"`
	InitiallyAssignedAt          *string      `json:"initially_assigned_at"`
	AssignedAt                   *string      `json:"assigned_at"`
	SolvedAt                     *string      `json:"solved_at"`
	LatestCommentAddedAt         *string      `json:"latest_comment_added_at"`
	CreatedAt                    *string      `json:"created_at"`
	UpdatedAt                    *string      `json:"updated_at"`
	ReplyTimeInMinutes           *RawDuration `json:"reply_time_in_minutes"`
	FirstResolutionTimeInMinutes *RawDuration `json:"first_resolution_time_in_minutes"`
	FullResolutionTimeInMinutes  *RawDuration `json:"full_resolution_time_in_minutes"`
	AgentWaitTimeInMinutes       *RawDuration `json:"agent_wait_time_in_minutes"`
	RequesterWaitTimeInMinutes   *RawDuration `json:"requester_wait_time_in_minutes"`
	OnHoldTimeInMinutes          *RawDuration `json:"on_hold_time_in_minutes"`
}

// RawComment is one entry of the ticket comments endpoint. Metadata and
// Attachments are decoded but never projected.
type RawComment struct {
	ID          int64           `json:"id"`
	Type        *string         `json:"type"`
	AuthorID    *int64          `json:"author_id"`
	Body        string          `json:"body"`
	HTMLBody    string          `json:"html_body"`
	PlainBody   string          `json:"plain_body"`
	Public      *bool           `json:"public"`
	AuditID     *int64          `json:"audit_id"`
	CreatedAt   *string         `json:"created_at"`
	Via         *RawVia         `json:"via"`
	Metadata    json.RawMessage `json:"metadata"`
	Attachments json.RawMessage `json:"attachments"`
}
