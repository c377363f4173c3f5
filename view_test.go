package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return buildReport([]Record{
		{Date: "2025-12-01", Associate: "Ana", MetricType: "Speeding", MetricSubtype: "Over 10", ReviewOutcome: stringPtr("None")},
		{Date: "2025-12-02", Associate: "Ana", MetricType: "Seatbelt", ReviewOutcome: stringPtr("Dispute Approved")},
		{Date: "2025-12-03", Associate: "Bo", MetricType: "Speeding", ReviewOutcome: stringPtr("Dispute Denied")},
		{Date: "2025-12-04", Associate: "Bo", MetricType: "Distraction", ReviewOutcome: stringPtr("Dispute Closed")},
	})
}

func rowKinds(rows []Row) []RowKind {
	kinds := []RowKind{}
	for _, row := range rows {
		kinds = append(kinds, row.Kind)
	}
	return kinds
}

func TestRowsExpanded(t *testing.T) {
	report := sampleReport()
	rows := Rows(report, ViewState{})

	assert.Equal(t, []RowKind{
		RowGroupHeader, RowDetail, RowDetail, RowSubtotal,
		RowGroupHeader, RowDetail, RowDetail, RowSubtotal,
		RowGrandTotal,
	}, rowKinds(rows))

	assert.Equal(t, []string{"▼", "Bo — Violations: 2", "", "", "", ""}, rows[0].Cells)
	assert.Equal(t, []string{"", "2025-12-03", "Bo", "Speeding", "", "Yes - Violation"}, rows[1].Cells)
	assert.Equal(t, []string{"", "Subtotal – Bo (counts Yes - Violation only)", "", "", "", "2"}, rows[3].Cells)
	assert.Equal(t, "No - Violation (Dispute Approved)", rows[6].Cells[5])
	assert.Equal(t, []string{"GRAND TOTAL (Yes - Violation only)", "", "", "", "", "3"}, rows[8].Cells)
	for _, row := range rows {
		assert.Len(t, row.Cells, len(TableHeader))
	}
}

func TestRowsCollapsedGroup(t *testing.T) {
	report := sampleReport()
	state := Reduce(ViewState{}, ToggleGroup{Group: 1})
	rows := Rows(report, state)

	assert.Equal(t, []RowKind{
		RowGroupHeader, RowDetail, RowDetail, RowSubtotal,
		RowGroupHeader,
		RowGrandTotal,
	}, rowKinds(rows))
	assert.Equal(t, "▶", rows[4].Cells[0])
}

func TestReduceToggleIsPure(t *testing.T) {
	start := ViewState{Identifier: "safety-2025-12.json"}
	once := Reduce(start, ToggleGroup{Group: 0})
	twice := Reduce(once, ToggleGroup{Group: 0})

	assert.False(t, start.Collapsed(0))
	assert.True(t, once.Collapsed(0))
	assert.False(t, twice.Collapsed(0))
	assert.Equal(t, "safety-2025-12.json", twice.Identifier)
}

func TestReduceCollapseAndExpandAll(t *testing.T) {
	state := Reduce(ViewState{Identifier: "x"}, CollapseAll{})
	assert.True(t, state.Collapsed(0))
	assert.True(t, state.Collapsed(5))

	state = Reduce(state, ToggleGroup{Group: 5})
	assert.False(t, state.Collapsed(5))

	state = Reduce(state, ExpandAll{})
	assert.False(t, state.Collapsed(0))
	assert.False(t, state.Collapsed(5))
	assert.Equal(t, "x", state.Identifier)

	rows := Rows(sampleReport(), Reduce(state, CollapseAll{}))
	assert.Equal(t, []RowKind{RowGroupHeader, RowGroupHeader, RowGrandTotal}, rowKinds(rows))
}

func TestReduceSelectMonthResets(t *testing.T) {
	state := Reduce(Reduce(ViewState{}, CollapseAll{}), SelectMonth{Identifier: "safety-2025-11.json"})
	assert.Equal(t, ViewState{Identifier: "safety-2025-11.json"}, state)
}

func TestRowsEmptyReport(t *testing.T) {
	rows := Rows(buildReport(nil), ViewState{})
	require.Len(t, rows, 1)
	assert.Equal(t, RowGrandTotal, rows[0].Kind)
	assert.Equal(t, "0", rows[0].Cells[5])
}
