// Package normalize projects decoded helpdesk API records into flat dataset
// rows. Every function is pure: the input is never mutated and the returned
// row shares no memory with it.
package normalize

import (
	"bytes"
	"encoding/json"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
)

// Ticket flattens a search export record into a TicketSummary
func Ticket(raw *RawTicket) domain.TicketSummary {
	row := domain.TicketSummary{
		ID:          raw.ID,
		Type:        cloneString(raw.Type),
		Subject:     raw.Subject,
		Description: raw.Description,
		Status:      raw.Status,
		GroupID:     cloneInt64(raw.GroupID),
		Recipient:   cloneString(raw.Recipient),
		Channel:     channel(raw.Via),
	}
	if sat := raw.SatisfactionRating; sat != nil {
		row.SatScore = cloneString(sat.Score)
		row.SatComment = cloneString(sat.Comment)
	}
	return row
}

// Metrics flattens a ticket_metric object, keeping the calendar value of
// every dual-unit duration.
func Metrics(raw *RawTicketMetrics) domain.TicketMetrics {
	return domain.TicketMetrics{
		ID:                   raw.ID,
		TicketID:             raw.TicketID,
		URL:                  raw.URL,
		GroupStations:        cloneInt64(raw.GroupStations),
		AssigneeStations:     cloneInt64(raw.AssigneeStations),
		Reopens:              cloneInt64(raw.Reopens),
		Replies:              cloneInt64(raw.Replies),
		AssigneeUpdatedAt:    cloneString(raw.AssigneeUpdatedAt),
		RequesterUpdatedAt:   cloneString(raw.RequesterUpdatedAt),
		StatusUpdatedAt:      cloneString(raw.StatusUpdatedAt),
		InitiallyAssignedAt:  cloneString(raw.InitiallyAssignedAt),
		AssignedAt:           cloneString(raw.AssignedAt),
		SolvedAt:             cloneString(raw.SolvedAt),
		LatestCommentAddedAt: cloneString(raw.LatestCommentAddedAt),
		CreatedAt:            cloneString(raw.CreatedAt),
		UpdatedAt:            cloneString(raw.UpdatedAt),
		ReplyMins:            calendar(raw.ReplyTimeInMinutes),
		FirstResoMins:        calendar(raw.FirstResolutionTimeInMinutes),
		FullResoMins:         calendar(raw.FullResolutionTimeInMinutes),
		AgentWaitMins:        calendar(raw.AgentWaitTimeInMinutes),
		RequesterWaitMins:    calendar(raw.RequesterWaitTimeInMinutes),
		OnHoldMins:           calendar(raw.OnHoldTimeInMinutes),
	}
}

// Comment flattens one comment of ticketID
func Comment(ticketID int64, raw *RawComment) domain.TicketComment {
	return domain.TicketComment{
		ID:        raw.ID,
		Type:      cloneString(raw.Type),
		AuthorID:  cloneInt64(raw.AuthorID),
		Body:      raw.Body,
		HTMLBody:  raw.HTMLBody,
		PlainBody: raw.PlainBody,
		Public:    cloneBool(raw.Public),
		AuditID:   cloneInt64(raw.AuditID),
		CreatedAt: cloneString(raw.CreatedAt),
		Channel:   channel(raw.Via),
		TicketID:  ticketID,
	}
}

func calendar(d *RawDuration) *float64 {
	if d == nil || d.Calendar == nil {
		return nil
	}
	v := *d.Calendar
	return &v
}

// channel reads via.channel, which is a string for most sources and a
// number for some legacy ones.
func channel(via *RawVia) *string {
	if via == nil {
		return nil
	}
	raw := bytes.TrimSpace(via.Channel)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	s = string(raw)
	return &s
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
