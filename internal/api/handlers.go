// Package api exposes the HTTP surface for health-data ingestion and
// retrieval.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"example.com/healthdata/internal/domain"
	"example.com/healthdata/internal/observability"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health-data", h.healthData)
	mux.HandleFunc("/health-data/all", h.allHealthData)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) healthData(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.uploadHealthData(w, r)
	case http.MethodGet:
		h.getHealthData(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
	}
}

// uploadHealthData merges each date's delta into the stored record for that
// (subject, date) key. Deltas are additive: resubmitting a batch
// double-counts it, so callers must send true increments only.
func (h *Handler) uploadHealthData(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordMergeOutcome("validation_error")
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return
	}

	merged, err := h.service.IngestBatch(r.Context(), domain.Submission{
		SubjectID: req.SubjectID,
		Data:      req.Data,
	})
	if err != nil {
		var validation *domain.ValidationError
		if errors.As(err, &validation) {
			observability.RecordMergeOutcome("validation_error")
			writeError(w, http.StatusBadRequest, validation.Reason)
			return
		}
		// Earlier dates in the batch stay committed; report how far we got.
		observability.RecordMergesApplied(len(merged))
		observability.RecordMergeOutcome("storage_error")
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to save data (%d of %d dates saved): %v", len(merged), len(req.Data), err))
		return
	}

	observability.RecordMergesApplied(len(merged))
	writeJSON(w, http.StatusOK, UploadResponse{
		Message: fmt.Sprintf("data saved for subject %s (%d dates)", req.SubjectID, len(merged)),
	})
}

func (h *Handler) getHealthData(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		observability.RecordQueryOutcome("validation_error")
		writeError(w, http.StatusBadRequest, "missing subject_id parameter")
		return
	}

	startDate := r.URL.Query().Get("startDate")
	endDate := r.URL.Query().Get("endDate")

	records, err := h.service.Query(r.Context(), subjectID, startDate, endDate)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoRecords):
			observability.RecordQueryOutcome("not_found")
			writeError(w, http.StatusNotFound, "no data found for this subject")
		default:
			var validation *domain.ValidationError
			if errors.As(err, &validation) {
				observability.RecordQueryOutcome("validation_error")
				writeError(w, http.StatusBadRequest, validation.Reason)
				return
			}
			observability.RecordQueryOutcome("storage_error")
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	views := make([]RecordView, 0, len(records))
	for _, record := range records {
		views = append(views, toRecordView(record))
	}

	observability.RecordQueryOutcome("ok")
	writeJSON(w, http.StatusOK, QueryResponse{SubjectID: subjectID, Data: views})
}

func (h *Handler) allHealthData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
		return
	}

	records, err := h.service.ListAll(r.Context())
	if err != nil {
		observability.RecordQueryOutcome("storage_error")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]RecordView, 0, len(records))
	for _, record := range records {
		views = append(views, toRecordView(record))
	}

	observability.RecordQueryOutcome("ok")
	writeJSON(w, http.StatusOK, AllRecordsResponse{AllSubjects: views})
}

// UploadRequest is the payload for POST /health-data.
type UploadRequest struct {
	SubjectID string                        `json:"subject_id"`
	Data      map[string]domain.MetricDelta `json:"data"`
}

// UploadResponse confirms a stored batch.
type UploadResponse struct {
	Message string `json:"message"`
}

// RecordView is the externally visible shape of a merged record. Raw
// heart-rate samples stay internal; only the derived average is exposed.
type RecordView struct {
	SubjectID    string               `json:"subject_id"`
	Date         string               `json:"date"`
	StepCount    int64                `json:"step_count"`
	Distance     float64              `json:"distance"`
	ActiveEnergy float64              `json:"active_energy"`
	AvgHeartRate *float64             `json:"avg_heart_rate,omitempty"`
	Categories   map[string][]float64 `json:"categories"`
}

// QueryResponse packages a subject's records sorted ascending by date.
type QueryResponse struct {
	SubjectID string       `json:"subject_id"`
	Data      []RecordView `json:"data"`
}

// AllRecordsResponse packages every stored record across subjects.
type AllRecordsResponse struct {
	AllSubjects []RecordView `json:"all_subjects"`
}

func toRecordView(record domain.HealthRecord) RecordView {
	categories := record.Categories
	if categories == nil {
		categories = map[string][]float64{}
	}
	return RecordView{
		SubjectID:    record.SubjectID,
		Date:         record.Date,
		StepCount:    record.StepCount,
		Distance:     record.Distance,
		ActiveEnergy: record.ActiveEnergy,
		AvgHeartRate: record.AvgHeartRate,
		Categories:   categories,
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
