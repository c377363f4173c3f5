package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDataset = `[
	{"Date": "2025-12-01", "Delivery Associate": "Ana", "Metric Type": "Speeding", "Review Details": "None"},
	{"Date": "2025-12-02", "Delivery Associate": "Ana", "Metric Type": "Seatbelt", "Review Details": "Dispute Approved"},
	{"Date": "2025-12-03", "Delivery Associate": "Bo", "Metric Type": "Speeding", "Review Details": "Dispute Denied"},
	{"Date": "2025-12-04", "Delivery Associate": "Bo", "Metric Type": "Distraction", "Review Details": "Dispute Closed"}
]`

func writeDataset(t *testing.T, dir string, name string, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestDirSourceFetch(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "safety-2025-12.json", sampleDataset)

	records, err := NewDirSource(dir).Fetch(context.Background(), "safety-2025-12.json")
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestDirSourceMissingFile(t *testing.T) {
	_, err := NewDirSource(t.TempDir()).Fetch(context.Background(), "safety-2025-12.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var srcErr *SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, "safety-2025-12.json", srcErr.Identifier)
	assert.Contains(t, err.Error(), "safety-2025-12.json")
}

func TestDirSourceMalformedPayload(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "safety-2025-12.json", `{"broken":`)

	_, err := NewDirSource(dir).Fetch(context.Background(), "safety-2025-12.json")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestHTTPSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/safety-2025-12.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Delivery Associate": "Solo"}`))
	}))
	defer srv.Close()

	source := NewHTTPSource(srv.URL+"/data/", 5*time.Second)
	records, err := source.Fetch(context.Background(), "safety-2025-12.json")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Solo", records[0].Associate)
}

func TestSourcesDropDirectoryPrefix(t *testing.T) {
	const identifier = "data/safety-2025-7.json"
	body := `[{"Delivery Associate": "Ana", "Review Details": "Dispute Denied"}]`

	dir := t.TempDir()
	writeDataset(t, dir, "safety-2025-7.json", body)
	fromDir, err := NewDirSource(dir).Fetch(context.Background(), identifier)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/safety-2025-7.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	fromHTTP, err := NewHTTPSource(srv.URL, 5*time.Second).Fetch(context.Background(), identifier)
	require.NoError(t, err)
	assert.Equal(t, fromDir, fromHTTP)
}

func TestDatasetFile(t *testing.T) {
	assert.Equal(t, "safety-2025-7.json", datasetFile("safety-2025-7.json"))
	assert.Equal(t, "safety-2025-7.json", datasetFile("data/safety-2025-7.json"))
	assert.Equal(t, "safety-2025-7.json", datasetFile("../data/safety-2025-7.json"))
	assert.Equal(t, "safety 2025-7.json", datasetFile("a/b/safety 2025-7.json"))
}

func TestHTTPSourceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, 5*time.Second).Fetch(context.Background(), "safety-2025-11.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	var srcErr *SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, http.StatusNotFound, srcErr.Status)
	assert.Equal(t, "HTTP 404 when loading "+srv.URL+"/safety-2025-11.json", err.Error())
}

func TestNewPostgresSourceRejectsBadSchema(t *testing.T) {
	_, err := NewPostgresSource(nil, "drop table;")
	assert.Error(t, err)
}
