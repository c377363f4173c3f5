package main

import (
	"cmp"
	"slices"
)

// Aggregate holds the overall and per-key violation counts for one dataset.
type Aggregate struct {
	Total         int            `json:"total"`
	Violations    int            `json:"violations"`
	NonViolations int            `json:"non_violations"`
	ByAssociate   map[string]int `json:"by_associate"`
	ByMetricType  map[string]int `json:"by_metric_type"`
}

// Count is one bar of a chart series.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func aggregate(records []Record) Aggregate {
	result := Aggregate{
		Total:        len(records),
		ByAssociate:  map[string]int{},
		ByMetricType: map[string]int{},
	}
	for _, record := range records {
		if !classifyRecord(record).IsViolation {
			result.NonViolations++
			continue
		}
		result.Violations++
		result.ByAssociate[record.AssociateKey()]++
		result.ByMetricType[record.MetricTypeKey()]++
	}
	return result
}

// AssociateSeries returns violations per associate, ascending by associate.
func (a Aggregate) AssociateSeries() []Count {
	return sortedSeries(a.ByAssociate)
}

// MetricTypeSeries returns violations per metric type, ascending by type.
func (a Aggregate) MetricTypeSeries() []Count {
	return sortedSeries(a.ByMetricType)
}

func sortedSeries(counts map[string]int) []Count {
	series := make([]Count, 0, len(counts))
	for key, count := range counts {
		series = append(series, Count{Key: key, Count: count})
	}
	slices.SortFunc(series, func(a, b Count) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return series
}
