// Package api exposes the tenant-facing HTTP surface: ingestion, analytics
// runs, report retrieval, and schedule management.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/mutsynchub/poslens/internal/classify"
	"github.com/mutsynchub/poslens/internal/ingest"
	"github.com/mutsynchub/poslens/internal/pipeline"
	"github.com/mutsynchub/poslens/internal/record"
	"github.com/mutsynchub/poslens/internal/storage"
)

const maxRequestBodySize = 10 << 20 // 10MB

// AnalyticsRunner is the pipeline surface the API needs.
type AnalyticsRunner interface {
	Run(ctx context.Context, tenantID, analytic string) (pipeline.Result, error)
	Classify(tenantID string) (classify.Result, error)
}

// StreamSink admits stream events into the micro-batch buffer.
type StreamSink interface {
	Offer(tenantID string, ev ingest.Event, arrivedAt time.Time) error
}

type Deps struct {
	Store  *storage.Store
	Runner AnalyticsRunner
	Stream StreamSink
	Token  string
}

// NewHandler builds the full router. /health is public; everything else sits
// behind bearer auth.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Post("/records", handlePushRecords(deps))
			r.Post("/upload", handleUpload(deps))
			r.Post("/events", handleStreamEvent(deps))
			r.Post("/run", handleRun(deps))
			r.Get("/report", handleLatestReport(deps))
			r.Get("/reports", handleListReports(deps))
			r.Get("/classification", handleClassification(deps))
			r.Post("/schedules", handleCreateSchedule(deps))
			r.Get("/schedules", handleListSchedules(deps))
		})
		r.Delete("/schedules/{id}", handleDeleteSchedule(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handlePushRecords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		recs, err := record.DecodeObjects(r.Body, time.Now().UTC())
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid record payload: %v", err)
			return
		}
		if err := appendRecords(deps.Store, tenantID, recs); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store records: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"ingested": len(recs)})
	}
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "missing file field: %v", err)
			return
		}
		defer file.Close()

		recs, err := ingest.ParseUpload(header.Filename, file, time.Now().UTC())
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "could not parse %s: %v", header.Filename, err)
			return
		}
		if err := appendRecords(deps.Store, tenantID, recs); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store records: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"ingested": len(recs)})
	}
}

func handleStreamEvent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var ev ingest.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid event envelope: %v", err)
			return
		}
		if err := deps.Stream.Offer(tenantID, ev, time.Now().UTC()); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to buffer event: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	}
}

type runRequest struct {
	Analytic string `json:"analytic"`
}

func handleRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Analytic == "" {
			req.Analytic = "eda"
		}

		res, err := deps.Runner.Run(r.Context(), tenantID, req.Analytic)
		if errors.Is(err, storage.ErrNoData) {
			httpError(w, http.StatusNotFound, "not_found", "no data ingested for tenant %s", tenantID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "analytics run failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

// reportResponse re-exposes a ledger entry with the stored report inlined as
// JSON instead of a quoted string.
type reportResponse struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	Analytic   string          `json:"analytic"`
	Industry   string          `json:"industry"`
	Confidence float64         `json:"confidence"`
	Report     json.RawMessage `json:"report"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toReportResponse(e storage.ReportEntry) reportResponse {
	return reportResponse{
		ID:         e.ID,
		TenantID:   e.TenantID,
		Analytic:   e.Analytic,
		Industry:   e.Industry,
		Confidence: e.Confidence,
		Report:     json.RawMessage(e.ReportJSON),
		CreatedAt:  e.CreatedAt,
	}
}

func handleLatestReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		entry, err := deps.Store.LatestReport(tenantID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no reports for tenant %s", tenantID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load report: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(toReportResponse(entry))
	}
}

func handleListReports(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		limit := parseIntParam(r, "limit", 20, 100)

		entries, err := deps.Store.ListReports(tenantID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list reports: %v", err)
			return
		}

		out := make([]reportResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, toReportResponse(e))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleClassification(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		res, err := deps.Runner.Classify(tenantID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "classification failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

type scheduleRequest struct {
	Analytic  string `json:"analytic"`
	Frequency string `json:"frequency"`
}

func handleCreateSchedule(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Analytic == "" {
			req.Analytic = "eda"
		}
		if !storage.ValidFrequency(req.Frequency) {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"frequency must be daily, weekly or monthly, got %q", req.Frequency)
			return
		}

		now := time.Now().UTC()
		sch := storage.Schedule{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			Analytic:  req.Analytic,
			Frequency: req.Frequency,
			NextRun:   now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := deps.Store.CreateSchedule(sch); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create schedule: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sch)
	}
}

func handleListSchedules(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")

		schedules, err := deps.Store.ListSchedules(tenantID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list schedules: %v", err)
			return
		}
		if schedules == nil {
			schedules = []storage.Schedule{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(schedules)
	}
}

func handleDeleteSchedule(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteSchedule(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "schedule not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete schedule: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func appendRecords(store *storage.Store, tenantID string, recs []record.Record) error {
	rows, err := ingest.RawRows(tenantID, recs)
	if err != nil {
		return err
	}
	return store.AppendRawBatch(rows)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
