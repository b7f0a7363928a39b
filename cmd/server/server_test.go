package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/config"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/ruleset"
)

const (
	leoChart   = `{"ascendant":{"sign":"Le"},"planets":[{"name":"Su","sign":"Le","house":1},{"name":"Mo","sign":"Sc","house":4},{"name":"Ma","sign":"Cp","house":6},{"name":"Ve","sign":"Cn","house":12}]}`
	ariesChart = `{"ascendant":{"sign":"Ar"},"planets":[{"name":"Su","sign":"Le","house":5},{"name":"Mo","sign":"Cn","house":4},{"name":"Ma","sign":"Vi","house":6},{"name":"Ve","sign":"Cp","house":10}]}`
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestServer builds the router with default configuration; mutate may
// adjust the config before wiring
func setupTestServer(t *testing.T, mutate func(*config.Config)) (*server, *gin.Engine) {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Redis.Addr = ""
	cfg.Security.AdminToken = "operator-secret"
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	rules, err := ruleset.LoadDefault()
	require.NoError(t, err)

	logger := monitoring.NewLoggerWithOutput(io.Discard, slog.LevelError)
	srv, err := newServer(cfg, rules, nil, logger)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	return srv, srv.setupRouter()
}

func pairBody(leftGender, rightGender, leftDate, rightDate string) string {
	return `{"left":{"chart":` + leoChart + `,"profile":{"gender":"` + leftGender + `","birthDateTime":"` + leftDate + `"}},` +
		`"right":{"chart":` + ariesChart + `,"profile":{"gender":"` + rightGender + `","birthDateTime":"` + rightDate + `"}}}`
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, w)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	return errBody["code"].(string)
}

func TestHealthEndpoint(t *testing.T) {
	srv, r := setupTestServer(t, nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET /health returns OK status", http.MethodGet, http.StatusOK},
		{"POST /health method not allowed", http.MethodPost, http.StatusNotFound},
		{"PUT /health method not allowed", http.MethodPut, http.StatusNotFound},
		{"DELETE /health method not allowed", http.MethodDelete, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, "/health", nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, srv.rules.Version, body["ruleset_version"])
	backends := body["backends"].(map[string]interface{})
	assert.Equal(t, "memory", backends["rate_limiter"])
	assert.NotEmpty(t, w.Header().Get(monitoring.RequestIDHeader))
}

func TestReportEndpoint(t *testing.T) {
	srv, r := setupTestServer(t, nil)
	body := pairBody("male", "female", "24.12.1980", "10.09.2000")

	w := postJSON(r, reportPath, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	resp := decodeBody(t, w)
	assert.Equal(t, srv.rules.Version, resp["ruleset_version"])
	report := resp["report"].(map[string]interface{})
	percent := report["percent"].(float64)
	assert.GreaterOrEqual(t, percent, 0.0)
	assert.LessOrEqual(t, percent, 100.0)
	assert.Equal(t, "male_female", report["orientation"])
	assert.NotEmpty(t, report["modules"])
	assert.Contains(t, report, "overlay_notes")
	assert.Contains(t, report, "expression")

	again := postJSON(r, reportPath, body)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.JSONEq(t, w.Body.String(), again.Body.String())
	assert.NotEqual(t, w.Header().Get(monitoring.RequestIDHeader), again.Header().Get(monitoring.RequestIDHeader))

	stats := srv.metrics.GetEvaluationStats()["by_kind"].(map[string]interface{})
	assert.Equal(t, int64(1), stats["report"].(map[string]interface{})["count"])
}

func TestDirectionalEndpoint(t *testing.T) {
	_, r := setupTestServer(t, nil)

	w := postJSON(r, directionalPath, pairBody("M", "F", "", ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decodeBody(t, w)["result"].(map[string]interface{})
	keys := []string{}
	for _, m := range result["modules"].([]interface{}) {
		keys = append(keys, m.(map[string]interface{})["key"].(string))
	}
	assert.Contains(t, keys, "sun_moon")
	assert.Contains(t, keys, "venus_mars")
	assert.NotContains(t, keys, "overlays")
	assert.NotContains(t, result, "expression")

	w = postJSON(r, directionalPath, pairBody("male", "male", "", ""))
	require.Equal(t, http.StatusOK, w.Code)
	result = decodeBody(t, w)["result"].(map[string]interface{})
	assert.Equal(t, "same", result["orientation"])
	assert.Equal(t, 0.0, result["bonus"])
}

func TestInvalidRequests(t *testing.T) {
	_, r := setupTestServer(t, nil)

	tests := []struct {
		name           string
		path           string
		contentType    string
		body           string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "malformed JSON",
			path:           reportPath,
			contentType:    "application/json",
			body:           `{"left":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "empty body",
			path:           directionalPath,
			contentType:    "application/json",
			body:           ``,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "chart of the wrong type",
			path:           reportPath,
			contentType:    "application/json",
			body:           `{"left":{"chart":"Leo rising"},"right":{}}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "unreadable birth date",
			path:           reportPath,
			contentType:    "application/json",
			body:           pairBody("male", "female", "sometime in spring", "21.02.1987"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "oversized birth date field",
			path:           directionalPath,
			contentType:    "application/json",
			body:           pairBody("male", "female", strings.Repeat("1", 200), ""),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "wrong content type",
			path:           reportPath,
			contentType:    "text/plain",
			body:           pairBody("male", "female", "", ""),
			expectedStatus: http.StatusUnsupportedMediaType,
			expectedCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedCode, errorCode(t, w))
		})
	}
}

func TestLargePayload(t *testing.T) {
	_, r := setupTestServer(t, func(cfg *config.Config) {
		cfg.Security.MaxBodyBytes = 256
	})

	w := postJSON(r, reportPath, pairBody("male", "female", "", ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestBatchEndpoint(t *testing.T) {
	_, r := setupTestServer(t, nil)

	body := `{
		"subject": {"chart": ` + leoChart + `, "profile": {"gender": "male", "birthDateTime": "24.12.1980"}},
		"candidates": [
			{"id": "bad-date", "party": {"chart": {"ascendant": {"sign": "Ta"}}, "profile": {"gender": "female", "birthDateTime": "next tuesday"}}},
			{"id": "aries", "party": {"chart": ` + ariesChart + `, "profile": {"gender": "female", "birthDateTime": "10.09.2000"}}},
			{"id": "empty", "party": {"profile": {"gender": "female"}}}
		]
	}`

	w := postJSON(r, batchPath, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody(t, w)
	assert.Equal(t, "report", resp["mode"])
	assert.Equal(t, 3.0, resp["count"])
	assert.Equal(t, 1.0, resp["failed"])
	assert.Equal(t, w.Header().Get(monitoring.RequestIDHeader), resp["request_id"])

	results := resp["results"].([]interface{})
	require.Len(t, results, 3)
	first := results[0].(map[string]interface{})
	second := results[1].(map[string]interface{})
	last := results[2].(map[string]interface{})
	assert.GreaterOrEqual(t, first["percent"].(float64), second["percent"].(float64))
	assert.Contains(t, first, "report")
	assert.Equal(t, "bad-date", last["id"])
	assert.Equal(t, "VALIDATION_ERROR", last["error"].(map[string]interface{})["code"])
}

func TestBatchCompression(t *testing.T) {
	srv, r := setupTestServer(t, nil)

	body := `{"subject":{"chart":` + leoChart + `,"profile":{"gender":"male"}},
		"candidates":[{"id":"aries","party":{"chart":` + ariesChart + `,"profile":{"gender":"female"}}},
		{"id":"leo","party":{"chart":` + leoChart + `,"profile":{"gender":"female"}}}]}`
	req := httptest.NewRequest(http.MethodPost, batchPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(zr).Decode(&resp))
	assert.Equal(t, 2.0, resp["count"])
	assert.Equal(t, int64(1), srv.compressor.GetStats()["compressed_requests"])
}

func TestBatchEndpointRejects(t *testing.T) {
	_, r := setupTestServer(t, func(cfg *config.Config) {
		cfg.Batch.MaxCandidates = 2
	})

	candidate := func(id string) string {
		return `{"id":"` + id + `","party":{"profile":{"gender":"female"}}}`
	}

	tests := []struct {
		name string
		body string
	}{
		{"no candidates", `{"subject":{},"candidates":[]}`},
		{"missing candidate id", `{"subject":{},"candidates":[{"party":{}}]}`},
		{"unknown mode", `{"subject":{},"mode":"ranked","candidates":[` + candidate("a") + `]}`},
		{"too many candidates", `{"subject":{},"candidates":[` + candidate("a") + `,` + candidate("b") + `,` + candidate("c") + `]}`},
		{"duplicate ids", `{"subject":{},"candidates":[` + candidate("a") + `,` + candidate("a") + `]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, batchPath, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
		})
	}
}

func TestBatchDirectionalMode(t *testing.T) {
	_, r := setupTestServer(t, nil)

	body := `{"subject":{"chart":` + leoChart + `,"profile":{"gender":"male"}},"mode":"directional",
		"candidates":[{"id":"aries","party":{"chart":` + ariesChart + `,"profile":{"gender":"female"}}}]}`
	w := postJSON(r, batchPath, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	item := decodeBody(t, w)["results"].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, item, "directional")
	assert.NotContains(t, item, "report")
}

func TestTablesEndpoint(t *testing.T) {
	srv, r := setupTestServer(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tablesPath, nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, srv.rules.Version, body["version"])
	assert.Len(t, body["affinity_by_distance"], 12)
	assert.Len(t, body["weights"], 8)
}

func TestRateLimit(t *testing.T) {
	_, r := setupTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.PerMinute = 1
		cfg.RateLimit.BurstMultiplier = 1
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tablesPath, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tablesPath, nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, w))

	// Operational routes sit outside the limited group.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	srv, r := setupTestServer(t, nil)
	postJSON(r, reportPath, pairBody("male", "female", "", ""))
	require.Equal(t, 1, srv.cache.Size())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/cache", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodDelete, "/admin/cache", nil)
	req.Header.Set("X-Admin-Token", "operator-secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, srv.cache.Size())

	req = httptest.NewRequest(http.MethodDelete, "/admin/ratelimit/ip/192.0.2.1", nil)
	req.Header.Set("X-Admin-Token", "operator-secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	_, closed := setupTestServer(t, func(cfg *config.Config) {
		cfg.Security.AdminToken = ""
	})
	w = httptest.NewRecorder()
	closed.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/cache", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoints(t *testing.T) {
	_, r := setupTestServer(t, nil)
	require.Equal(t, http.StatusOK, postJSON(r, reportPath, pairBody("male", "female", "", "")).Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body, "cache")
	assert.Contains(t, body, "evaluations")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `synastry_evaluations_total{kind="report",orientation="male_female"} 1`)
	assert.Contains(t, w.Body.String(), `synastry_cache_misses_total 1`)
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	_, r := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestConcurrentRequests(t *testing.T) {
	srv, r := setupTestServer(t, nil)

	var wg sync.WaitGroup
	codes := make([]int, 10)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, directionalPath, bytes.NewBufferString(pairBody("female", "male", "", "")))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			codes[i] = w.Code
		}()
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, int64(10), srv.metrics.RequestCount)
}

func BenchmarkReport(b *testing.B) {
	cfg, _ := config.Load("")
	cfg.Redis.Addr = ""
	cfg.RateLimit.PerMinute = 1 << 30
	rules, _ := ruleset.LoadDefault()
	srv, err := newServer(cfg, rules, nil, monitoring.NewLoggerWithOutput(io.Discard, slog.LevelError))
	if err != nil {
		b.Fatal(err)
	}
	defer srv.Close()
	srv.cache.Clear()
	r := srv.setupRouter()
	body := pairBody("male", "female", "24.12.1980", "10.09.2000")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		srv.cache.Clear()
		postJSON(r, reportPath, body)
	}
}
