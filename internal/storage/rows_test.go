package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?, ?", Placeholders(3, false))
	assert.Equal(t, "$1, $2", Placeholders(2, true))
	assert.Equal(t, "", Placeholders(0, true))
}

func TestArgsMatchColumns(t *testing.T) {
	assert.Len(t, TicketArgs(&domain.TicketSummary{}), len(domain.TicketSummaryColumns))
	assert.Len(t, MetricArgs(&domain.TicketMetrics{}), len(domain.TicketMetricsColumns))
	assert.Len(t, CommentArgs(&domain.TicketComment{}), len(domain.TicketCommentColumns))
	assert.Len(t, RunArgs(&domain.CollectionRun{}), 7)
}

func TestGroupComments(t *testing.T) {
	order, byTicket := GroupComments([]domain.TicketComment{
		{ID: 1, TicketID: 20},
		{ID: 2, TicketID: 10},
		{ID: 3, TicketID: 20},
	})
	assert.Equal(t, []int64{20, 10}, order)
	assert.Equal(t, int64(1), byTicket[20][0].ID)
	assert.Equal(t, int64(3), byTicket[20][1].ID)
	assert.Len(t, byTicket[10], 1)
}
