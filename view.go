package main

import (
	"fmt"
	"maps"
)

// ViewState is the expand/collapse state of the violation table. Groups are
// addressed by their position in the report. A group is collapsed when
// AllCollapsed differs from its Flipped entry.
type ViewState struct {
	Identifier   string
	AllCollapsed bool
	Flipped      map[int]bool
}

// ViewEvent is an input to Reduce.
type ViewEvent interface {
	viewEvent()
}

type SelectMonth struct{ Identifier string }
type ToggleGroup struct{ Group int }
type ExpandAll struct{}
type CollapseAll struct{}

func (SelectMonth) viewEvent() {}
func (ToggleGroup) viewEvent() {}
func (ExpandAll) viewEvent()   {}
func (CollapseAll) viewEvent() {}

// Reduce returns the state that follows event. The input state is not
// modified.
func Reduce(state ViewState, event ViewEvent) ViewState {
	switch e := event.(type) {
	case SelectMonth:
		return ViewState{Identifier: e.Identifier}
	case ToggleGroup:
		next := ViewState{
			Identifier:   state.Identifier,
			AllCollapsed: state.AllCollapsed,
			Flipped:      maps.Clone(state.Flipped),
		}
		if next.Flipped == nil {
			next.Flipped = map[int]bool{}
		}
		if next.Flipped[e.Group] {
			delete(next.Flipped, e.Group)
		} else {
			next.Flipped[e.Group] = true
		}
		return next
	case ExpandAll:
		return ViewState{Identifier: state.Identifier}
	case CollapseAll:
		return ViewState{Identifier: state.Identifier, AllCollapsed: true}
	default:
		return state
	}
}

func (v ViewState) Collapsed(group int) bool {
	return v.AllCollapsed != v.Flipped[group]
}

type RowKind string

const (
	RowGroupHeader RowKind = "group_header"
	RowDetail      RowKind = "detail"
	RowSubtotal    RowKind = "subtotal"
	RowGrandTotal  RowKind = "grand_total"
)

const (
	toggleExpanded  = "▼"
	toggleCollapsed = "▶"
)

// TableHeader names the columns of every materialized row.
var TableHeader = []string{"", "Date", "Delivery Associate", "Metric Type", "Metric Subtype", "Violation"}

// Row is one materialized table row. Cells line up with TableHeader.
type Row struct {
	Kind  RowKind  `json:"kind"`
	Group int      `json:"group"`
	Cells []string `json:"cells"`
}

// Rows materializes the report as table rows. Collapsed groups contribute
// only their header row; the grand total row is always last.
func Rows(report Report, state ViewState) []Row {
	rows := []Row{}
	for idx, group := range report.Groups {
		collapsed := state.Collapsed(idx)
		toggle := toggleExpanded
		if collapsed {
			toggle = toggleCollapsed
		}
		rows = append(rows, Row{
			Kind:  RowGroupHeader,
			Group: idx,
			Cells: []string{toggle, fmt.Sprintf("%s — Violations: %d", group.Associate, group.ViolationSubtotal), "", "", "", ""},
		})
		if collapsed {
			continue
		}
		for _, record := range group.Records {
			rows = append(rows, Row{
				Kind:  RowDetail,
				Group: idx,
				Cells: []string{
					"",
					record.Date,
					group.Associate,
					record.MetricType,
					record.MetricSubtype,
					classifyRecord(record).Label,
				},
			})
		}
		rows = append(rows, Row{
			Kind:  RowSubtotal,
			Group: idx,
			Cells: []string{"", fmt.Sprintf("Subtotal – %s (counts Yes - Violation only)", group.Associate), "", "", "", fmt.Sprintf("%d", group.ViolationSubtotal)},
		})
	}
	rows = append(rows, Row{
		Kind:  RowGrandTotal,
		Group: -1,
		Cells: []string{"GRAND TOTAL (Yes - Violation only)", "", "", "", "", fmt.Sprintf("%d", report.GrandTotal)},
	})
	return rows
}
