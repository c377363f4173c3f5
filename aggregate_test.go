package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rec(associate string, outcome string) Record {
	return Record{Associate: associate, ReviewOutcome: stringPtr(outcome)}
}

func TestAggregateExample(t *testing.T) {
	records := []Record{
		rec("A", "None"),
		rec("A", "Dispute Approved"),
		rec("B", "Dispute Denied"),
	}
	got := aggregate(records)

	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, got.Violations)
	assert.Equal(t, 1, got.NonViolations)
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, got.ByAssociate)
	assert.Equal(t, map[string]int{"(Unknown)": 2}, got.ByMetricType)
}

func TestAggregateDefaultsMissingFields(t *testing.T) {
	got := aggregate([]Record{{}})
	assert.Equal(t, 1, got.Violations)
	assert.Equal(t, map[string]int{"(Unknown)": 1}, got.ByAssociate)
	assert.Equal(t, map[string]int{"(Unknown)": 1}, got.ByMetricType)
}

func TestAggregateUnknownOutcomeIsNotCounted(t *testing.T) {
	got := aggregate([]Record{rec("A", "Escalated"), rec("A", "Dispute Closed")})
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Violations)
	assert.Equal(t, 1, got.NonViolations)
}

func TestAggregateTotalsAlwaysBalance(t *testing.T) {
	outcomes := []string{"None", "Dispute Denied", "Dispute Closed", "Dispute Approved", "Other", ""}
	records := []Record{}
	for i := 0; i < 40; i++ {
		r := rec(string(rune('A'+i%5)), outcomes[i%len(outcomes)])
		if i%7 == 0 {
			r.ReviewOutcome = nil
		}
		records = append(records, r)

		got := aggregate(records)
		assert.Equal(t, len(records), got.Total)
		assert.Equal(t, len(records), got.Violations+got.NonViolations)
		assert.Equal(t, got.Violations, buildReport(records).GrandTotal)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := aggregate(nil)
	assert.Equal(t, 0, got.Total)
	assert.Empty(t, got.AssociateSeries())
	assert.Empty(t, got.MetricTypeSeries())
}

func TestAggregateSeriesAscendingByKey(t *testing.T) {
	records := []Record{
		{Associate: "Zed", MetricType: "Speeding"},
		{Associate: "Amy", MetricType: "Seatbelt"},
		{Associate: "Zed", MetricType: "Distraction"},
		{Associate: "Mia", MetricType: "Speeding"},
	}
	got := aggregate(records)

	assert.Equal(t, []Count{{"Amy", 1}, {"Mia", 1}, {"Zed", 2}}, got.AssociateSeries())
	assert.Equal(t, []Count{{"Distraction", 1}, {"Seatbelt", 1}, {"Speeding", 2}}, got.MetricTypeSeries())
}
