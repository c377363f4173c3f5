package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var ErrSourceUnavailable = errors.New("dataset source unavailable")

// Source fetches the full record set for one dataset identifier.
type Source interface {
	Fetch(ctx context.Context, identifier string) ([]Record, error)
}

// SourceError reports a failed fetch with the location that was attempted.
type SourceError struct {
	Identifier string
	Location   string
	Status     int
	Err        error
}

func (e *SourceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d when loading %s", e.Status, e.Location)
	}
	return fmt.Sprintf("loading %s: %v", e.Location, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

type DirSource struct {
	Dir string
}

// datasetFile is the file name an identifier resolves to. Any directory
// prefix is dropped so every file source looks in the same place.
func datasetFile(identifier string) string {
	return path.Base(filepath.ToSlash(identifier))
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

func (s *DirSource) Fetch(ctx context.Context, identifier string) ([]Record, error) {
	path := filepath.Join(s.Dir, datasetFile(identifier))
	if err := ctx.Err(); err != nil {
		return nil, &SourceError{Identifier: identifier, Location: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceError{Identifier: identifier, Location: path, Err: err}
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, &SourceError{Identifier: identifier, Location: path, Err: err}
	}
	return records, nil
}

type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{BaseURL: strings.TrimRight(baseURL, "/"), Client: newHTTPClient(timeout)}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

func (s *HTTPSource) Fetch(ctx context.Context, identifier string) ([]Record, error) {
	location := s.BaseURL + "/" + url.PathEscape(datasetFile(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &SourceError{Identifier: identifier, Location: location, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &SourceError{Identifier: identifier, Location: location, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &SourceError{
			Identifier: identifier,
			Location:   location,
			Status:     resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceError{Identifier: identifier, Location: location, Err: err}
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, &SourceError{Identifier: identifier, Location: location, Err: err}
	}
	return records, nil
}

// PostgresSource reads datasets seeded into the events table. It never writes.
type PostgresSource struct {
	DB     *sql.DB
	Schema string
}

func NewPostgresSource(db *sql.DB, schema string) (*PostgresSource, error) {
	schema, err := sanitizeSchema(schema)
	if err != nil {
		return nil, err
	}
	return &PostgresSource{DB: db, Schema: schema}, nil
}

func (s *PostgresSource) Fetch(ctx context.Context, identifier string) ([]Record, error) {
	location := fmt.Sprintf("postgres %s.events (dataset=%s)", s.Schema, identifier)
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT event_date, associate, metric_type, metric_subtype, review_outcome
		FROM %s.events
		WHERE dataset = $1
		ORDER BY position`, s.Schema), identifier)
	if err != nil {
		return nil, &SourceError{Identifier: identifier, Location: location, Err: err}
	}
	defer rows.Close()

	records := []Record{}
	found := false
	for rows.Next() {
		found = true
		var (
			date, associate, metricType, metricSubtype sql.NullString
			review                                     sql.NullString
		)
		if err := rows.Scan(&date, &associate, &metricType, &metricSubtype, &review); err != nil {
			return nil, &SourceError{Identifier: identifier, Location: location, Err: err}
		}
		record := Record{
			Date:          date.String,
			Associate:     associate.String,
			MetricType:    metricType.String,
			MetricSubtype: metricSubtype.String,
		}
		if review.Valid {
			record.ReviewOutcome = stringPtr(review.String)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &SourceError{Identifier: identifier, Location: location, Err: err}
	}
	if !found {
		exists, err := s.datasetSeeded(ctx, identifier)
		if err != nil {
			return nil, &SourceError{Identifier: identifier, Location: location, Err: err}
		}
		if !exists {
			return nil, &SourceError{Identifier: identifier, Location: location, Err: os.ErrNotExist}
		}
	}
	return records, nil
}

func (s *PostgresSource) datasetSeeded(ctx context.Context, identifier string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT EXISTS (SELECT 1 FROM %s.datasets WHERE identifier = $1)`, s.Schema), identifier).Scan(&exists)
	return exists, err
}
