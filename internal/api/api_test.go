package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteselect/internal/config"
	"github.com/sells-group/siteselect/internal/region"
	"github.com/sells-group/siteselect/internal/session"
	"github.com/sells-group/siteselect/internal/store"
)

const tracts = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-71.10, 42.30], [-71.00, 42.30], [-71.00, 42.40], [-71.10, 42.40], [-71.10, 42.30]]]},
     "properties": {"GEOID": "25025000100", "passenger_temporal_stability_score": 90, "passenger_peak_demand_score": 90, "equity_0_trips": 50}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-71.09, 42.30], [-70.99, 42.30], [-70.99, 42.40], [-71.09, 42.40], [-71.09, 42.30]]]},
     "properties": {"GEOID": "25025000200", "passenger_temporal_stability_score": 80, "passenger_peak_demand_score": 80, "equity_0_trips": 50}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-72.10, 42.30], [-72.00, 42.30], [-72.00, 42.40], [-72.10, 42.40], [-72.10, 42.30]]]},
     "properties": {"GEOID": "25027000300", "passenger_temporal_stability_score": 70, "passenger_peak_demand_score": 70, "equity_0_trips": 50}}
  ]
}`

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	tbl, err := region.DecodeGeoJSON(strings.NewReader(tracts))
	require.NoError(t, err)
	return session.New(tbl)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(t.Context()))
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestRouter(t *testing.T, st store.Store) (http.Handler, *session.Session) {
	t.Helper()
	sess := newTestSession(t)
	return NewRouter(sess, st, config.ServerConfig{AllowedOrigins: []string{"*"}}), sess
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rr := do(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetResult_BeforeScore(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rr := do(t, h, http.MethodGet, "/api/v1/result", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/regions", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestScore_ReturnsSelection(t *testing.T) {
	h, sess := newTestRouter(t, nil)
	rr := do(t, h, http.MethodPost, "/api/v1/score", map[string]any{
		"n_sites":         2,
		"min_distance_mi": 10,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp ResultResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Summary.Total)
	assert.Equal(t, 3, resp.Summary.Feasible)
	require.Len(t, resp.Selection.Sites, 2)
	assert.Equal(t, "25025000100", resp.Selection.Sites[0].GEOID)
	assert.Equal(t, "25027000300", resp.Selection.Sites[1].GEOID)
	assert.Empty(t, resp.RunID)

	_, n, minMi := sess.Config()
	assert.Equal(t, 2, n)
	assert.InDelta(t, 10.0, minMi, 1e-9)

	rr = do(t, h, http.MethodGet, "/api/v1/result", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestScore_AppliesConstraints(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rr := do(t, h, http.MethodPost, "/api/v1/score", map[string]any{
		"constraints": map[string]any{"min_person_trips": 100},
		"n_sites":     3,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp ResultResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Zero(t, resp.Summary.Feasible)
	assert.Empty(t, resp.Selection.Sites)
	assert.True(t, resp.Selection.Shortfall)

	rr = do(t, h, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cfg ConfigResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cfg))
	assert.InDelta(t, 100.0, cfg.Config.Constraints.MinPersonTrips, 1e-9)
}

func TestScore_InvalidRequests(t *testing.T) {
	h, sess := newTestRouter(t, nil)

	rr := do(t, h, http.MethodPost, "/api/v1/score", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/v1/score", map[string]any{"n_sites": -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/v1/score", map[string]any{"save": true})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Nil(t, sess.Snapshot())
}

func TestGetRegions_GeoJSON(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rr := do(t, h, http.MethodPost, "/api/v1/score", map[string]any{"n_sites": 1})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/regions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 3)

	rr = do(t, h, http.MethodGet, "/api/v1/regions?selected=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Len(t, fc.Features, 1)
}

func TestRuns_SaveListGet(t *testing.T) {
	h, _ := newTestRouter(t, newTestStore(t))

	rr := do(t, h, http.MethodPost, "/api/v1/score", map[string]any{
		"n_sites":         2,
		"min_distance_mi": 10,
		"save":            true,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp ResultResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)

	rr = do(t, h, http.MethodGet, "/api/v1/runs?limit=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []store.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, resp.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Selected)

	rr = do(t, h, http.MethodGet, "/api/v1/runs/"+resp.RunID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var run store.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	require.Len(t, run.Sites, 2)
	assert.Equal(t, "25025000100", run.Sites[0].GEOID)
	assert.Equal(t, 1, run.Sites[0].Rank)
}

func TestRuns_Errors(t *testing.T) {
	h, _ := newTestRouter(t, newTestStore(t))

	rr := do(t, h, http.MethodGet, "/api/v1/runs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestRuns_NoStore(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rr := do(t, h, http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCORS(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	h := NewRouter(newTestSession(t), nil, config.ServerConfig{RateLimit: 1, RateBurst: 1})

	rr := do(t, h, http.MethodGet, "/api/v1/config", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/config", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "rate limit exceeded")

	// Health is outside the limited routes.
	rr = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RateLimit(0, 0)(next)
	for range 5 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}
}
