// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/database"
	"github.com/eventlens/eventlens/internal/ingest"
	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/models"
	"github.com/eventlens/eventlens/internal/registry"
	"github.com/eventlens/eventlens/internal/rooms"
)

func TestMain(m *testing.M) {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
	os.Exit(m.Run())
}

// testServerSemaphore serializes tests holding a DuckDB connection, matching
// the constraint the database package tests operate under.
var testServerSemaphore = make(chan struct{}, 1)

type testServer struct {
	handler  http.Handler
	db       *database.DB
	registry *registry.Registry
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, Host: "127.0.0.1", Timeout: 30 * time.Second, ShutdownTimeout: 10 * time.Second},
		Database: config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"},
		Tracking: config.TrackingConfig{
			MoveSampleRate:      1.0,
			CursorBufferCap:     1000,
			InactivityTimeout:   5 * time.Minute,
			SweepInterval:       time.Minute,
			RetentionDays:       90,
			WSMessagesPerSecond: 100,
			WSMessageBurst:      200,
		},
		Security: config.SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitDisabled: true,
		},
		API: config.APIConfig{DefaultPageSize: 50, MaxPageSize: 500},
	}
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	testServerSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testServerSemaphore
	})

	cfg := testConfig()
	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	reg := registry.New()
	pipeline := ingest.NewPipeline(reg, rooms.NewBroadcaster(), db, ingest.AllowAllOracle{}, ingest.SampleAll)
	router := NewRouter(cfg, db, pipeline, reg)

	return &testServer{handler: router.Setup(), db: db, registry: reg}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var envelope models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response envelope: %v (body: %s)", err, rec.Body.String())
	}
	return envelope
}

func TestHealthEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Status != "success" {
		t.Errorf("health envelope status = %q, want success", envelope.Status)
	}

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		if rec := ts.do(t, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestTrackingStartValidation(t *testing.T) {
	ts := setupTestServer(t)

	// Missing event_id fails validation before any pipeline work.
	rec := ts.do(t, http.MethodPost, "/api/v1/tracking/start", map[string]string{"session_id": "sess-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", envelope.Error)
	}

	// Malformed JSON gets the same treatment.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracking/start", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestTrackingStartAndEnd(t *testing.T) {
	ts := setupTestServer(t)

	start := models.JoinRoomPayload{EventID: "event-1", SessionID: "sess-1"}
	rec := ts.do(t, http.MethodPost, "/api/v1/tracking/start", start)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d (body: %s), want 200", rec.Code, rec.Body.String())
	}

	// Starting the same pair again resumes rather than duplicating.
	rec = ts.do(t, http.MethodPost, "/api/v1/tracking/start", start)
	if rec.Code != http.StatusOK {
		t.Fatalf("restart status = %d, want 200", rec.Code)
	}

	end := models.EndSessionPayload{EventID: "event-1", SessionID: "sess-1"}
	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodPost, "/api/v1/tracking/end", end)
		if rec.Code != http.StatusOK {
			t.Fatalf("end #%d status = %d, want 200 (idempotent)", i+1, rec.Code)
		}
	}
}

func TestTrackingClickFeedsAnalytics(t *testing.T) {
	ts := setupTestServer(t)

	// Route-implied action: the body omits "action" entirely.
	click := map[string]interface{}{
		"event_id":   "event-1",
		"session_id": "sess-1",
		"x":          12.0,
		"y":          18.0,
		"page":       "/stage",
	}
	rec := ts.do(t, http.MethodPost, "/api/v1/tracking/click", click)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("click status = %d (body: %s), want 202", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/events/event-1/analytics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	data := envelope.Data.(map[string]interface{})
	if data["total_clicks"].(float64) != 1 {
		t.Errorf("total_clicks = %v, want 1", data["total_clicks"])
	}
	if data["total_sessions"].(float64) != 1 {
		t.Errorf("total_sessions = %v, want 1", data["total_sessions"])
	}
}

func TestTrackingPageVisit(t *testing.T) {
	ts := setupTestServer(t)

	visit := models.PageVisitPayload{EventID: "event-1", SessionID: "sess-1", Page: "/agenda", TimeSpentSeconds: 12.5}
	rec := ts.do(t, http.MethodPost, "/api/v1/tracking/pagevisit", visit)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("pagevisit status = %d (body: %s), want 202", rec.Code, rec.Body.String())
	}
}

func TestHeatmapEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	for _, c := range [][2]float64{{12, 18}, {14, 19}} {
		click := map[string]interface{}{
			"event_id": "event-1", "session_id": "sess-1",
			"x": c[0], "y": c[1], "page": "/stage",
		}
		if rec := ts.do(t, http.MethodPost, "/api/v1/tracking/click", click); rec.Code != http.StatusAccepted {
			t.Fatalf("click status = %d, want 202", rec.Code)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/events/event-1/analytics/heatmap?resolution=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("heatmap status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	data := envelope.Data.(map[string]interface{})
	if data["total_clicks"].(float64) != 2 {
		t.Errorf("total_clicks = %v, want 2", data["total_clicks"])
	}
	buckets := data["buckets"].([]interface{})
	if len(buckets) != 1 {
		t.Fatalf("buckets = %d, want 1", len(buckets))
	}
	bucket := buckets[0].(map[string]interface{})
	if bucket["bucket_x"].(float64) != 1 || bucket["bucket_y"].(float64) != 1 {
		t.Errorf("bucket = (%v,%v), want (1,1)", bucket["bucket_x"], bucket["bucket_y"])
	}

	// Resolution must be a positive integer.
	rec = ts.do(t, http.MethodGet, "/api/v1/events/event-1/analytics/heatmap?resolution=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("heatmap resolution=0 status = %d, want 400", rec.Code)
	}
}

func TestActiveSessionsMergesLiveAndStore(t *testing.T) {
	ts := setupTestServer(t)

	// One session known only to the store.
	start := models.JoinRoomPayload{EventID: "event-1", SessionID: "sess-store"}
	if rec := ts.do(t, http.MethodPost, "/api/v1/tracking/start", start); rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", rec.Code)
	}

	// The same session also live: the live entry wins the merge.
	ts.registry.Register("conn-1")
	ts.registry.AttachIdentity("conn-1", "sess-store", &models.Identity{UserID: "alice"})
	ts.registry.SetRoom("conn-1", "event-1")

	// A second session that is live only.
	ts.registry.Register("conn-2")
	ts.registry.AttachIdentity("conn-2", "sess-live", nil)
	ts.registry.SetRoom("conn-2", "event-1")

	rec := ts.do(t, http.MethodGet, "/api/v1/events/event-1/sessions/active", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("active sessions status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	data := envelope.Data.(map[string]interface{})
	if data["count"].(float64) != 2 {
		t.Fatalf("count = %v, want 2", data["count"])
	}

	sources := map[string]string{}
	for _, raw := range data["sessions"].([]interface{}) {
		s := raw.(map[string]interface{})
		sources[s["session_id"].(string)] = s["source"].(string)
	}
	if sources["sess-store"] != "live" {
		t.Errorf("sess-store source = %q, want live (live entry takes precedence)", sources["sess-store"])
	}
	if sources["sess-live"] != "live" {
		t.Errorf("sess-live source = %q, want live", sources["sess-live"])
	}
}

func TestActiveSessionsOrderingAndLimit(t *testing.T) {
	ts := setupTestServer(t)

	// Registered oldest-first; session ids chosen so most-recent-first is
	// the expected order.
	for _, pair := range [][2]string{{"conn-1", "sess-c"}, {"conn-2", "sess-b"}, {"conn-3", "sess-a"}} {
		ts.registry.Register(pair[0])
		ts.registry.AttachIdentity(pair[0], pair[1], nil)
		ts.registry.SetRoom(pair[0], "event-1")
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/events/event-1/sessions/active", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("active sessions status = %d, want 200", rec.Code)
	}
	data := decodeEnvelope(t, rec).Data.(map[string]interface{})
	var order []string
	for _, raw := range data["sessions"].([]interface{}) {
		order = append(order, raw.(map[string]interface{})["session_id"].(string))
	}
	want := []string{"sess-a", "sess-b", "sess-c"}
	if len(order) != len(want) {
		t.Fatalf("sessions = %v, want %d entries", order, len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v (most recent activity first)", order, want)
		}
	}

	// limit truncates the page; count still reports the full set.
	rec = ts.do(t, http.MethodGet, "/api/v1/events/event-1/sessions/active?limit=2", nil)
	data = decodeEnvelope(t, rec).Data.(map[string]interface{})
	if data["count"].(float64) != 3 {
		t.Errorf("count = %v, want 3", data["count"])
	}
	if got := len(data["sessions"].([]interface{})); got != 2 {
		t.Errorf("sessions = %d, want 2", got)
	}

	// A non-positive limit falls back to the default page size.
	rec = ts.do(t, http.MethodGet, "/api/v1/events/event-1/sessions/active?limit=0", nil)
	data = decodeEnvelope(t, rec).Data.(map[string]interface{})
	if got := len(data["sessions"].([]interface{})); got != 3 {
		t.Errorf("sessions with limit=0 = %d, want 3", got)
	}
}

func TestActiveSessionsLimitClamped(t *testing.T) {
	ts := setupTestServer(t)

	cfg := testConfig()
	cfg.API.MaxPageSize = 2
	handler := NewRouter(cfg, ts.db, ingest.NewPipeline(ts.registry, rooms.NewBroadcaster(), ts.db, ingest.AllowAllOracle{}, ingest.SampleAll), ts.registry).Setup()

	for _, pair := range [][2]string{{"conn-1", "sess-1"}, {"conn-2", "sess-2"}, {"conn-3", "sess-3"}} {
		ts.registry.Register(pair[0])
		ts.registry.AttachIdentity(pair[0], pair[1], nil)
		ts.registry.SetRoom(pair[0], "event-1")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/event-1/sessions/active?limit=99", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("active sessions status = %d, want 200", rec.Code)
	}
	data := decodeEnvelope(t, rec).Data.(map[string]interface{})
	if data["count"].(float64) != 3 {
		t.Errorf("count = %v, want 3", data["count"])
	}
	if got := len(data["sessions"].([]interface{})); got != 2 {
		t.Errorf("sessions = %d, want 2 (clamped to the configured maximum)", got)
	}
}

func TestExportFormats(t *testing.T) {
	ts := setupTestServer(t)

	start := models.JoinRoomPayload{EventID: "event-1", SessionID: "sess-1"}
	if rec := ts.do(t, http.MethodPost, "/api/v1/tracking/start", start); rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", rec.Code)
	}

	jsonRec := ts.do(t, http.MethodGet, "/api/v1/events/event-1/analytics/export", nil)
	if jsonRec.Code != http.StatusOK {
		t.Fatalf("json export status = %d, want 200", jsonRec.Code)
	}
	envelope := decodeEnvelope(t, jsonRec)
	data := envelope.Data.(map[string]interface{})
	jsonRows := data["sessions"].([]interface{})
	if len(jsonRows) != 1 {
		t.Fatalf("json export rows = %d, want 1", len(jsonRows))
	}
	jsonSession := jsonRows[0].(map[string]interface{})["session_id"].(string)

	csvRec := ts.do(t, http.MethodGet, "/api/v1/events/event-1/analytics/export?format=csv", nil)
	if csvRec.Code != http.StatusOK {
		t.Fatalf("csv export status = %d, want 200", csvRec.Code)
	}
	if ct := csvRec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("csv content type = %q, want text/csv", ct)
	}
	if cd := csvRec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("csv content disposition = %q, want attachment", cd)
	}

	records, err := csv.NewReader(csvRec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv export: %v", err)
	}
	// Header row plus one data row; both formats carry the same rows.
	if len(records) != 2 {
		t.Fatalf("csv records = %d, want 2", len(records))
	}
	if records[1][0] != jsonSession {
		t.Errorf("csv session = %q, json session = %q, want identical", records[1][0], jsonSession)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/events/event-1/analytics/export?format=xml", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", rec.Code)
	}
}

func TestUnknownEventReturns404(t *testing.T) {
	ts := setupTestServer(t)

	// Swap the pipeline's permissive oracle for one that knows nothing:
	// easiest done through a second router instance.
	cfg := testConfig()
	reg := registry.New()
	pipeline := ingest.NewPipeline(reg, rooms.NewBroadcaster(), ts.db, denyOracle{}, ingest.SampleAll)
	handler := NewRouter(cfg, ts.db, pipeline, reg).Setup()

	body, _ := json.Marshal(models.JoinRoomPayload{EventID: "ghost", SessionID: "sess-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracking/start", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", envelope.Error)
	}
}

type denyOracle struct{}

func (denyOracle) EventExists(_ context.Context, _ string) (bool, error) {
	return false, nil
}
