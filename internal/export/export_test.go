package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/dataset"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func sampleTickets() *dataset.Table[domain.TicketSummary] {
	return dataset.Assemble(domain.TicketSummaryColumns,
		[]domain.TicketSummary{
			{ID: 101, Subject: "Printer, again", Status: "closed", Channel: ptr("email"), SatScore: ptr("good")},
			{ID: 102, Subject: "Login", Description: "line one\nline two", Status: "closed", GroupID: ptr(int64(7))},
		},
		[]domain.TicketSummary{
			{ID: 103, Status: "closed", SatScore: ptr("bad"), SatComment: ptr(`said "slow"`)},
		},
	)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("parquet")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTickets()))

	want := "id,type,subject,description,status,group_id,recipient,channel,sat_score,sat_comment\n" +
		"101,,\"Printer, again\",,closed,,,email,good,\n" +
		"102,,Login,\"line one\nline two\",closed,7,,,,\n" +
		"103,,,,closed,,,,bad,\"said \"\"slow\"\"\"\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	table := dataset.Assemble[domain.TicketComment](domain.TicketCommentColumns)
	require.NoError(t, WriteCSV(&buf, table))
	assert.Equal(t, "id,type,author_id,body,html_body,plain_body,public,audit_id,created_at,channel,ticket_id\n", buf.String())
}

func TestWriteAndReadBackIDs(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")

			path, err := Write(dir, domain.DatasetTickets, format, sampleTickets())
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "tickets."+string(format)), path)

			ids, err := ReadTicketIDs(path)
			require.NoError(t, err)
			assert.Equal(t, []int64{101, 102, 103}, ids)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "no temp files left behind")
		})
	}
}

func TestWriteXLSXContents(t *testing.T) {
	path, err := Write(t.TempDir(), domain.DatasetTickets, FormatXLSX, sampleTickets())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"tickets"}, f.GetSheetList())
	rows, err := f.GetRows("tickets")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, domain.TicketSummaryColumns, rows[0])
	assert.Equal(t, "Printer, again", rows[1][2])
	assert.Equal(t, "email", rows[1][7])
}

func TestReadTicketIDsErrors(t *testing.T) {
	dir := t.TempDir()

	noID := filepath.Join(dir, "no_id.csv")
	require.NoError(t, os.WriteFile(noID, []byte("subject,status\na,closed\n"), 0o644))
	_, err := ReadTicketIDs(noID)
	assert.ErrorContains(t, err, "no id column")

	badID := filepath.Join(dir, "bad_id.csv")
	require.NoError(t, os.WriteFile(badID, []byte("id,status\nabc,closed\n"), 0o644))
	_, err = ReadTicketIDs(badID)
	assert.ErrorContains(t, err, "row 2")

	_, err = ReadTicketIDs(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestWriteXLSXRejectsOversizedCell(t *testing.T) {
	table := dataset.Assemble(domain.TicketCommentColumns, []domain.TicketComment{
		{ID: 1, Body: "short", TicketID: 101},
		{ID: 2, HTMLBody: strings.Repeat("x", 40000), TicketID: 101},
	})

	var buf bytes.Buffer
	err := WriteXLSX(&buf, "comments", table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCellTooLong))
	assert.Contains(t, err.Error(), "row 2 column html_body")

	// CSV has no cell limit
	buf.Reset()
	require.NoError(t, WriteCSV(&buf, table))
	assert.Contains(t, buf.String(), strings.Repeat("x", 40000))
}

func TestWriteXLSXAtCellLimit(t *testing.T) {
	body := strings.Repeat("y", excelize.TotalCellChars)
	table := dataset.Assemble(domain.TicketCommentColumns, []domain.TicketComment{{ID: 1, HTMLBody: body, TicketID: 7}})

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "comments", table))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("comments")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[1][4], excelize.TotalCellChars)
}

func TestFailedWriteKeepsPreviousExport(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, domain.DatasetComments, FormatXLSX,
		dataset.Assemble(domain.TicketCommentColumns, []domain.TicketComment{{ID: 1, Body: "ok", TicketID: 5}}))
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Write(dir, domain.DatasetComments, FormatXLSX,
		dataset.Assemble(domain.TicketCommentColumns, []domain.TicketComment{{ID: 2, Body: strings.Repeat("z", 33000), TicketID: 5}}))
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestStageDiscard(t *testing.T) {
	dir := t.TempDir()
	staged, err := Stage(dir, domain.DatasetTickets, FormatCSV, sampleTickets())
	require.NoError(t, err)

	_, err = os.Stat(staged.Path)
	assert.True(t, os.IsNotExist(err), "staged export must not be visible before commit")

	staged.Discard()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageCommit(t *testing.T) {
	dir := t.TempDir()
	staged, err := Stage(dir, domain.DatasetTickets, FormatCSV, sampleTickets())
	require.NoError(t, err)
	require.NoError(t, staged.Commit())
	staged.Discard()

	ids, err := ReadTicketIDs(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102, 103}, ids)
}
