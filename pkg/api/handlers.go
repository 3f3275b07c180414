package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethpandaops/backupoor/pkg/config"
	"github.com/ethpandaops/backupoor/pkg/report"
)

const defaultRunsLimit = 50

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// writeError logs err and sends a generic 500.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{"internal error"})
}

// queryInt reads a non-negative integer query parameter. A missing value
// yields zero.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}

	return n, nil
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSummary returns every aggregate.
func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "top")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	summary, err := s.agg.Summary(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleSites returns the mean backup per site.
func (s *server) handleSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.agg.SiteBackups(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, sites)
}

// handleTopAlarms returns the most frequent alarm names.
func (s *server) handleTopAlarms(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	top, err := s.agg.TopAlarms(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, top)
}

// handleRegions returns the top alarm of each region.
func (s *server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.agg.RegionTopAlarms(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, regions)
}

// handleJoined returns the joined table as JSON.
func (s *server) handleJoined(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListJoinedRows(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if rows == nil {
		writeJSON(w, http.StatusOK, []any{})

		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// handleJoinedCSV streams the joined table as a CSV download.
func (s *server) handleJoinedCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListJoinedRows(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", config.DefaultCSVFile))
	w.WriteHeader(http.StatusOK)

	if err := report.WriteJoinedCSV(w, rows); err != nil {
		s.log.WithError(err).Warn("Writing csv response failed")
	}
}

// handleRuns returns the most recent runs.
func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	if limit == 0 {
		limit = defaultRunsLimit
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if runs == nil {
		writeJSON(w, http.StatusOK, []any{})

		return
	}

	writeJSON(w, http.StatusOK, runs)
}
