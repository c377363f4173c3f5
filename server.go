package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type serverMetrics struct {
	loads        *prometheus.CounterVec
	loadDuration prometheus.Histogram
	violations   *prometheus.GaugeVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safety_audit",
			Name:      "dataset_loads_total",
			Help:      "Dataset loads by outcome",
		}, []string{"status"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "safety_audit",
			Name:      "dataset_load_duration_seconds",
			Help:      "Time spent fetching a dataset",
			Buckets:   prometheus.DefBuckets,
		}),
		violations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "safety_audit",
			Name:      "dataset_violations",
			Help:      "Violations counted in the last load of each dataset",
		}, []string{"dataset"}),
	}
	reg.MustRegister(m.loads, m.loadDuration, m.violations)
	return m
}

// Server exposes the catalog, summaries, reports and the spreadsheet export
// over HTTP.
// Each request runs an independent load cycle.
type Server struct {
	catalog Catalog
	source  Source
	logger  *zap.Logger
	metrics *serverMetrics
	mux     *http.ServeMux
}

func NewServer(catalog Catalog, source Source, logger *zap.Logger) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	s := &Server{
		catalog: catalog,
		source:  source,
		logger:  logger,
		metrics: newServerMetrics(reg),
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/datasets", s.handleDatasets)
	s.mux.HandleFunc("GET /api/datasets/{id}/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/datasets/{id}/report", s.handleReport)
	s.mux.HandleFunc("GET /api/datasets/{id}/export.xlsx", s.handleExport(xlsxContentType, defaultExportName, writeRowsXLSX))
	s.mux.HandleFunc("GET /api/datasets/{id}/export.csv", s.handleExport("text/csv; charset=utf-8", defaultCSVName, writeRowsCSV))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type catalogResponse struct {
	Default  string    `json:"default"`
	Datasets []Dataset `json:"datasets"`
}

type summaryResponse struct {
	Dataset     Dataset   `json:"dataset"`
	Title       string    `json:"title"`
	Summary     Aggregate `json:"summary"`
	ByAssociate []Count   `json:"by_associate_series"`
	ByMetric    []Count   `json:"by_metric_type_series"`
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	def, err := s.catalog.Default()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSONResponse(w, http.StatusOK, catalogResponse{Default: def.Identifier, Datasets: s.catalog.Entries()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, summaryResponse{
		Dataset:     snapshot.Dataset,
		Title:       snapshot.Dataset.Title(),
		Summary:     snapshot.Aggregate,
		ByAssociate: snapshot.Aggregate.AssociateSeries(),
		ByMetric:    snapshot.Aggregate.MetricTypeSeries(),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, snapshot.Report)
}

// handleExport serves the materialized rows as an attachment. The workbook
// is buffered so a write failure still yields a clean 500.
func (s *Server) handleExport(contentType, filename string, write func(io.Writer, []Row) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, ok := s.load(w, r)
		if !ok {
			return
		}
		state, err := viewFromQuery(snapshot.Dataset.Identifier, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err, snapshot.Dataset.Identifier)
			return
		}
		var buf bytes.Buffer
		if err := write(&buf, Rows(snapshot.Report, state)); err != nil {
			s.logger.Warn("write export", zap.String("dataset", snapshot.Dataset.Identifier), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err, snapshot.Dataset.Identifier)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		_, _ = buf.WriteTo(w)
	}
}

// viewFromQuery builds the view state from ?collapse=all or
// ?collapsed=0,2 (group positions).
func viewFromQuery(identifier string, r *http.Request) (ViewState, error) {
	state := Reduce(ViewState{}, SelectMonth{Identifier: identifier})
	if r.URL.Query().Get("collapse") == "all" {
		state = Reduce(state, CollapseAll{})
	}
	raw := strings.TrimSpace(r.URL.Query().Get("collapsed"))
	if raw == "" {
		return state, nil
	}
	for _, part := range strings.Split(raw, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || idx < 0 {
			return ViewState{}, errors.New("collapsed must be a comma-separated list of group positions")
		}
		state = Reduce(state, ToggleGroup{Group: idx})
	}
	return state, nil
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (Snapshot, bool) {
	identifier := r.PathValue("id")
	if _, err := s.catalog.Lookup(identifier); err != nil {
		writeError(w, http.StatusNotFound, err, identifier)
		return Snapshot{}, false
	}

	session, err := NewSession(s.catalog)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, identifier)
		return Snapshot{}, false
	}

	start := time.Now()
	snapshot, err := session.Load(r.Context(), s.source, identifier)
	s.metrics.loadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.loads.WithLabelValues("error").Inc()
		s.logger.Warn("dataset load failed", zap.String("dataset", identifier), zap.Error(err))
		writeError(w, http.StatusBadGateway, err, identifier)
		return Snapshot{}, false
	}
	s.metrics.loads.WithLabelValues("ok").Inc()
	s.metrics.violations.WithLabelValues(identifier).Set(float64(snapshot.Aggregate.Violations))
	s.logger.Debug("dataset loaded",
		zap.String("dataset", identifier),
		zap.Int("records", snapshot.Aggregate.Total),
		zap.Int("violations", snapshot.Aggregate.Violations))
	return snapshot, true
}

type errorResponse struct {
	Error      string `json:"error"`
	Identifier string `json:"identifier,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error, identifier string) {
	writeJSONResponse(w, status, errorResponse{Error: err.Error(), Identifier: identifier})
}

func writeJSONResponse(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// serve runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, cfg ServerConfig, handler http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", zap.String("addr", cfg.ListenAddress))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
