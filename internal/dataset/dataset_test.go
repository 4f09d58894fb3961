package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
)

func tickets(ids ...int64) []domain.TicketSummary {
	rows := make([]domain.TicketSummary, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, domain.TicketSummary{ID: id})
	}
	return rows
}

func TestAssemblePreservesPageOrder(t *testing.T) {
	page1 := tickets(5, 2)
	page2 := tickets(9)
	page3 := tickets(1, 7, 3)

	table := Assemble(domain.TicketSummaryColumns, page1, page2, page3)

	assert.Equal(t, []int64{5, 2, 9, 1, 7, 3}, domain.TicketIDs(table.Rows))
	assert.Equal(t, domain.TicketSummaryColumns, table.Columns)
}

func TestAssembleZeroBatches(t *testing.T) {
	table := Assemble[domain.TicketComment](domain.TicketCommentColumns)

	require.NotNil(t, table.Rows)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, domain.TicketCommentColumns, table.Columns)
}

func TestAssembleDoesNotShareBatchMemory(t *testing.T) {
	page := tickets(1, 2)

	table := Assemble(domain.TicketSummaryColumns, page)
	page[0].ID = 99

	assert.Equal(t, int64(1), table.Rows[0].ID)
}

func TestAssemblerAccumulates(t *testing.T) {
	asm := NewAssembler[domain.TicketSummary](domain.TicketSummaryColumns)
	asm.Add(tickets(1))
	asm.Add(nil)
	asm.Add(tickets(2, 3))

	assert.Equal(t, 3, asm.Len())
	assert.Equal(t, 3, asm.Batches())
	assert.Equal(t, []int64{1, 2, 3}, domain.TicketIDs(asm.Table().Rows))
}
