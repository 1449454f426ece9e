package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/export"
	"github.com/sells-group/siteselect/internal/scorer"
	"github.com/sells-group/siteselect/internal/selector"
	"github.com/sells-group/siteselect/internal/session"
	"github.com/sells-group/siteselect/internal/store"
)

// maxBodyBytes caps a score request body.
const maxBodyBytes = 1 << 20

// ScoreRequest overlays a profile onto the current session configuration.
// Unset selection fields keep their current values.
type ScoreRequest struct {
	scorer.Profile
	NSites        *int     `json:"n_sites"`
	MinDistanceMi *float64 `json:"min_distance_mi"`
	Save          bool     `json:"save"`
}

// ConfigResponse is the current session configuration.
type ConfigResponse struct {
	Config        scorer.Config `json:"config"`
	NSites        int           `json:"n_sites"`
	MinDistanceMi float64       `json:"min_distance_mi"`
}

// ResultResponse is the last completed recomputation without per-tract rows.
type ResultResponse struct {
	RunID       string                  `json:"run_id,omitempty"`
	ComputedAt  time.Time               `json:"computed_at"`
	DurationMs  int64                   `json:"duration_ms"`
	Summary     scorer.Summary          `json:"summary"`
	Plan        scorer.Plan             `json:"plan"`
	Constraints []scorer.ConstraintStep `json:"constraints"`
	Selection   selector.Selection      `json:"selection"`
}

func newResultResponse(snap *session.Snapshot) ResultResponse {
	return ResultResponse{
		ComputedAt:  snap.ComputedAt,
		DurationMs:  snap.Duration.Milliseconds(),
		Summary:     snap.Result.Summary,
		Plan:        snap.Result.Plan,
		Constraints: snap.Result.Constraints,
		Selection:   snap.Selection,
	}
}

// GetConfig returns the configuration of the last recomputation.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, n, minMi := h.sess.Config()
	writeJSON(w, http.StatusOK, ConfigResponse{Config: cfg, NSites: n, MinDistanceMi: minMi})
}

// GetResult returns the summary and selected sites of the last
// recomputation.
func (h *Handler) GetResult(w http.ResponseWriter, _ *http.Request) {
	snap := h.sess.Snapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no result yet")
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(snap))
}

// GetRegions returns every scored tract as a GeoJSON feature collection.
// ?selected=true limits it to the selected sites.
func (h *Handler) GetRegions(w http.ResponseWriter, r *http.Request) {
	snap := h.sess.Snapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no result yet")
		return
	}

	var records []export.Record
	if selected, _ := strconv.ParseBool(r.URL.Query().Get("selected")); selected {
		records = export.SiteRecords(snap.Selection.Sites)
	} else {
		records = export.RegionRecords(snap.Result.Regions, snap.Selection.Sites)
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := export.WriteGeoJSON(w, records); err != nil {
		zap.L().Warn("api: write regions", zap.Error(err))
	}
}

// Score applies the request to the current configuration, rescores the
// session and optionally persists the run.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	base, n, minMi := h.sess.Config()
	cfg := req.Profile.Apply(base)
	if req.NSites != nil {
		n = *req.NSites
	}
	if req.MinDistanceMi != nil {
		minMi = *req.MinDistanceMi
	}
	if req.Save && h.store == nil {
		writeError(w, http.StatusBadRequest, "persistence is disabled")
		return
	}

	snap, err := h.sess.Rescore(r.Context(), cfg, n, minMi)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := newResultResponse(snap)
	if req.Save {
		id, err := h.save(r, snap)
		if err != nil {
			zap.L().Error("api: save run", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save run")
			return
		}
		resp.RunID = id
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) save(r *http.Request, snap *session.Snapshot) (string, error) {
	run, sites, err := store.NewRun(snap.Result, snap.Selection)
	if err != nil {
		return "", err
	}
	if err := h.store.SaveRun(r.Context(), run, sites); err != nil {
		return "", eris.Wrap(err, "api: save run")
	}
	return run.ID, nil
}

// ListRuns returns the most recent persisted runs. ?limit= caps the count.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "persistence is disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one persisted run with its sites.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "persistence is disabled")
		return
	}
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		zap.L().Error("api: get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
