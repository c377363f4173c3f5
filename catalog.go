package main

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"time"
)

var (
	ErrEmptyCatalog   = errors.New("no datasets configured")
	ErrUnknownDataset = errors.New("unknown dataset")
)

var datasetPattern = regexp.MustCompile(`(?i)safety-(\d{4})-(\d{1,2})(?:\.[a-z0-9]+)?$`)

// DefaultDatasets is used when the configuration lists no datasets.
var DefaultDatasets = []string{
	"safety-2025-10.json",
	"safety-2025-11.json",
	"safety-2025-12.json",
}

// Dataset describes one selectable month.
type Dataset struct {
	Identifier string  `json:"identifier"`
	Year       int     `json:"year,omitempty"`
	Month      int     `json:"month,omitempty"`
	Label      string  `json:"label"`
	SortKey    float64 `json:"-"`
	Valid      bool    `json:"valid"`
}

// Catalog is the chronologically sorted list of datasets. It is built once
// and not modified afterwards.
type Catalog struct {
	entries []Dataset
}

// BuildCatalog parses identifiers into datasets sorted ascending by month.
// Identifiers that do not parse keep their raw name and sort last in input
// order.
func BuildCatalog(identifiers []string) Catalog {
	entries := make([]Dataset, 0, len(identifiers))
	for _, identifier := range identifiers {
		entries = append(entries, parseDataset(identifier))
	}
	slices.SortStableFunc(entries, func(a, b Dataset) int {
		switch {
		case a.SortKey < b.SortKey:
			return -1
		case a.SortKey > b.SortKey:
			return 1
		default:
			return 0
		}
	})
	return Catalog{entries: entries}
}

func parseDataset(identifier string) Dataset {
	invalid := Dataset{
		Identifier: identifier,
		Label:      identifier,
		SortKey:    math.Inf(1),
	}
	year, month, ok := parseYearMonth(identifier)
	if !ok {
		return invalid
	}
	return Dataset{
		Identifier: identifier,
		Year:       year,
		Month:      month,
		Label:      monthLabel(year, month),
		SortKey:    float64(year*100 + month),
		Valid:      true,
	}
}

func parseYearMonth(identifier string) (int, int, bool) {
	match := datasetPattern.FindStringSubmatch(identifier)
	if match == nil {
		return 0, 0, false
	}
	year, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(match[2])
	if err != nil {
		return 0, 0, false
	}
	if year == 0 || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

func monthLabel(year int, month int) string {
	return fmt.Sprintf("%s %04d", time.Month(month).String(), year)
}

// Entries returns a copy of the sorted datasets.
func (c Catalog) Entries() []Dataset {
	return slices.Clone(c.entries)
}

func (c Catalog) Len() int {
	return len(c.entries)
}

// Default returns the most recent dataset, the last entry after sorting.
func (c Catalog) Default() (Dataset, error) {
	if len(c.entries) == 0 {
		return Dataset{}, ErrEmptyCatalog
	}
	return c.entries[len(c.entries)-1], nil
}

func (c Catalog) Lookup(identifier string) (Dataset, error) {
	for _, entry := range c.entries {
		if entry.Identifier == identifier {
			return entry, nil
		}
	}
	return Dataset{}, fmt.Errorf("%w: %s", ErrUnknownDataset, identifier)
}

// Title renders the data-source heading for a dataset.
func (d Dataset) Title() string {
	return fmt.Sprintf("Data Source: %s (%s)", d.Label, d.Identifier)
}
