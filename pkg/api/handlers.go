package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/genolytics/labmetrics/pkg/api/reportstore"
	"github.com/go-chi/chi/v5"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// snapshotSummary is the list-view representation of a snapshot.
type snapshotSummary struct {
	ID               string `json:"id"`
	GeneratedAt      string `json:"generated_at"`
	TotalChecks      int    `json:"total_checks"`
	TotalWorkflows   int    `json:"total_workflows"`
	TotalRuns        int    `json:"total_runs"`
	BillableCount    int    `json:"billable_count"`
	UsageCount       int    `json:"usage_count"`
	IncludeMissingQC bool   `json:"include_missing_qc"`
	IndexedAt        string `json:"indexed_at"`
}

func toSnapshotSummary(snap *reportstore.Snapshot) snapshotSummary {
	return snapshotSummary{
		ID:               snap.ID,
		GeneratedAt:      snap.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
		TotalChecks:      snap.TotalChecks,
		TotalWorkflows:   snap.TotalWorkflows,
		TotalRuns:        snap.TotalRuns,
		BillableCount:    snap.BillableCount,
		UsageCount:       snap.UsageCount,
		IncludeMissingQC: snap.IncludeMissingQC,
		IndexedAt:        snap.IndexedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// handleListReports lists indexed report snapshots, newest first. An
// optional ?limit=N query parameter caps the result.
func (s *server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"invalid limit parameter"})

			return
		}

		limit = n
	}

	snaps, err := s.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("Failed to list snapshots")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	resp := make([]snapshotSummary, 0, len(snaps))
	for i := range snaps {
		resp = append(resp, toSnapshotSummary(&snaps[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLatestReport returns the full document of the most recently
// generated report.
func (s *server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LatestSnapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"no reports indexed"})

		return
	}

	writeReportPayload(w, snap)
}

// handleGetReport returns the full document of a report by ID.
func (s *server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"report id is required"})

		return
	}

	snap, err := s.store.GetSnapshot(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"report not found"})

		return
	}

	writeReportPayload(w, snap)
}

// writeReportPayload serves the stored report document verbatim.
func writeReportPayload(w http.ResponseWriter, snap *reportstore.Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(snap.Payload))
}
