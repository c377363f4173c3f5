package main

import (
	"slices"
)

// AssociateGroup is one associate's records with their violation subtotal.
// Records keep dataset order and include non-violations.
type AssociateGroup struct {
	Associate         string   `json:"associate"`
	Records           []Record `json:"records"`
	ViolationSubtotal int      `json:"violation_subtotal"`
}

// Report is the grouped violation table for one dataset.
type Report struct {
	Groups     []AssociateGroup `json:"groups"`
	GrandTotal int              `json:"grand_total"`
}

// buildReport groups records by associate in first-seen order, then orders
// groups by violation subtotal descending. Ties keep first-seen order.
func buildReport(records []Record) Report {
	index := map[string]int{}
	groups := []AssociateGroup{}
	for _, record := range records {
		key := record.AssociateKey()
		pos, exists := index[key]
		if !exists {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, AssociateGroup{Associate: key})
		}
		groups[pos].Records = append(groups[pos].Records, record)
		if classifyRecord(record).IsViolation {
			groups[pos].ViolationSubtotal++
		}
	}

	slices.SortStableFunc(groups, func(a, b AssociateGroup) int {
		return b.ViolationSubtotal - a.ViolationSubtotal
	})

	grandTotal := 0
	for _, group := range groups {
		grandTotal += group.ViolationSubtotal
	}
	return Report{Groups: groups, GrandTotal: grandTotal}
}
