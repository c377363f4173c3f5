package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const unknownKey = "(Unknown)"

// Record is one safety event as it appears in a monthly dataset.
type Record struct {
	Date          string  `json:"date"`
	Associate     string  `json:"associate"`
	MetricType    string  `json:"metricType"`
	MetricSubtype string  `json:"metricSubtype"`
	ReviewOutcome *string `json:"reviewOutcome"`
}

var recordFields = map[string][]string{
	"date":          {"Date", "date"},
	"associate":     {"Delivery Associate", "associate"},
	"metricType":    {"Metric Type", "metricType"},
	"metricSubtype": {"Metric Subtype", "metricSubtype"},
	"reviewOutcome": {"Review Details", "reviewOutcome"},
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	r.Date, _ = lookupField(raw, recordFields["date"])
	r.Associate, _ = lookupField(raw, recordFields["associate"])
	r.MetricType, _ = lookupField(raw, recordFields["metricType"])
	r.MetricSubtype, _ = lookupField(raw, recordFields["metricSubtype"])
	r.ReviewOutcome = nil
	if review, ok := lookupField(raw, recordFields["reviewOutcome"]); ok {
		r.ReviewOutcome = &review
	}
	return nil
}

// lookupField returns the first present, non-null value among names.
func lookupField(raw map[string]json.RawMessage, names []string) (string, bool) {
	for _, name := range names {
		value, ok := raw[name]
		if !ok {
			continue
		}
		if text, ok := scalarString(value); ok {
			return text, true
		}
	}
	return "", false
}

func scalarString(value json.RawMessage) (string, bool) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return "", false
	}
	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return text, true
	}
	var number json.Number
	if err := json.Unmarshal(value, &number); err == nil {
		return number.String(), true
	}
	var flag bool
	if err := json.Unmarshal(value, &flag); err == nil {
		return strconv.FormatBool(flag), true
	}
	return string(value), true
}

// Review returns the review outcome, defaulting a missing value to "None".
func (r Record) Review() string {
	if r.ReviewOutcome == nil {
		return outcomeNone
	}
	return *r.ReviewOutcome
}

// AssociateKey is the grouping key for the record's associate.
func (r Record) AssociateKey() string {
	return keyOrUnknown(r.Associate)
}

// MetricTypeKey is the counting key for the record's metric type.
func (r Record) MetricTypeKey() string {
	return keyOrUnknown(r.MetricType)
}

func keyOrUnknown(value string) string {
	if value == "" {
		return unknownKey
	}
	return value
}

// decodeRecords accepts either a JSON array of objects or a single object.
func decodeRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty dataset payload")
	}
	if trimmed[0] != '[' {
		var single Record
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, err
		}
		return []Record{single}, nil
	}
	var records []Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func stringPtr(value string) *string {
	return &value
}
