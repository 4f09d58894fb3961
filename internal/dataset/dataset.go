package dataset

import (
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
)

// Table is the assembled output of one collector invocation
type Table[R domain.Record] struct {
	Columns []string
	Rows    []R
}

// Len returns the number of rows
func (t *Table[R]) Len() int {
	return len(t.Rows)
}

// Assembler accumulates row batches in fetch order
type Assembler[R domain.Record] struct {
	columns []string
	batches [][]R
	rows    int
}

// NewAssembler creates an assembler for a dataset with the given columns
func NewAssembler[R domain.Record](columns []string) *Assembler[R] {
	return &Assembler[R]{columns: columns}
}

// Add appends one batch. Empty batches are kept so that batch counts stay
// meaningful for progress reporting.
func (a *Assembler[R]) Add(batch []R) {
	a.batches = append(a.batches, batch)
	a.rows += len(batch)
}

// Len returns the number of rows accumulated so far
func (a *Assembler[R]) Len() int {
	return a.rows
}

// Batches returns the number of batches accumulated so far
func (a *Assembler[R]) Batches() int {
	return len(a.batches)
}

// Table concatenates the accumulated batches
func (a *Assembler[R]) Table() *Table[R] {
	return Assemble(a.columns, a.batches...)
}

// Assemble concatenates batches preserving batch order and row order within
// each batch. Zero batches yield an empty table that still carries columns.
func Assemble[R domain.Record](columns []string, batches ...[]R) *Table[R] {
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	rows := make([]R, 0, total)
	for _, b := range batches {
		rows = append(rows, b...)
	}

	cols := make([]string, len(columns))
	copy(cols, columns)

	return &Table[R]{
		Columns: cols,
		Rows:    rows,
	}
}
