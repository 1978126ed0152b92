package web

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/customermatch/internal/config"
	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/JonMunkholm/customermatch/internal/metrics"
)

const dorothyCSV = "first_name,last_name,email,state,city,country,phone\n" +
	"Dorothy,Gale,dgale@emerald.city,New Jersey,Hoboken,United States,+1 555-362-2520\n"

func testConfig() *config.Config {
	return &config.Config{
		Normalize: config.NormalizeConfig{DefaultRegion: "US", BatchSize: 16},
		Lookup: config.LookupConfig{
			Backend:     config.BackendCSV,
			Concurrency: 2,
			Timeout:     time.Second,
			MaxRetries:  1,
			Seed:        1,
		},
		Server: config.ServerConfig{
			MaxUploadSize:     1 << 20,
			MaxConcurrentRuns: 2,
			MaxWaitTime:       time.Second,
			RequestTimeout:    time.Minute,
		},
		Security: config.SecurityConfig{EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "info", Format: "text"},
	}
}

var hobokenSource = core.ZipSourceFunc(func(_ context.Context, key core.PlaceKey) ([]string, error) {
	if key.City == "hoboken" {
		return []string{"07030"}, nil
	}
	return nil, nil
})

func newTestServer(t *testing.T, cfg *config.Config, source core.ZipSource) *Server {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	return NewServer(Deps{Config: cfg, Source: source})
}

// uploadRequest builds a multipart POST with a "file" part and form fields.
func uploadRequest(t *testing.T, path, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if content != "" {
		fw, err := mw.CreateFormFile("file", "contacts.csv")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleIndex(t *testing.T) {
	s := newTestServer(t, nil, hobokenSource)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="infer_zip"`) {
		t.Error("upload page should offer zip inference when a source is configured")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("CSP header missing")
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var got HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "ok" || got.Runs.MaxConcurrent != 2 || got.ZipBackend != "none" {
		t.Errorf("health = %+v", got)
	}
}

func TestHandleNormalize_CSV(t *testing.T) {
	s := newTestServer(t, nil, hobokenSource)
	req := uploadRequest(t, "/api/normalize", dorothyCSV, map[string]string{"infer_zip": "on"})
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if rec.Header().Get("X-Run-ID") == "" {
		t.Error("X-Run-ID missing")
	}
	if got := rec.Header().Get("X-Warning-Count"); got != "0" {
		t.Errorf("X-Warning-Count = %q, want 0", got)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "contacts_normalized.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := "dorothy,gale,+15553622520,dgale@emerald.city,US,07030"
	if len(rows) != 2 || strings.Join(rows[1], ",") != want {
		t.Errorf("rows = %v, want header + %s", rows, want)
	}
}

func TestHandleNormalize_JSONHashed(t *testing.T) {
	s := newTestServer(t, nil, hobokenSource)
	req := uploadRequest(t, "/api/normalize", dorothyCSV, map[string]string{"hash": "true"})
	req.Header.Set("Accept", "application/json")
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var got NormalizeResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(got.Rows))
	}
	if got.Rows[0][0] != core.HashValue("dorothy") {
		t.Errorf("First Name = %q, want sha256 of dorothy", got.Rows[0][0])
	}
	if got.Rows[0][5] != "" {
		t.Errorf("Zip = %q, want empty without inference", got.Rows[0][5])
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Field != "Zip" || got.Warnings[0].Kind != string(core.WarnMissingColumn) {
		t.Errorf("warnings = %+v, want one Zip missing_column", got.Warnings)
	}
	if got.HashedCells != 5 {
		t.Errorf("HashedCells = %d, want 5", got.HashedCells)
	}
}

func TestHandleNormalize_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		fields   map[string]string
		source   core.ZipSource
		wantCode int
		wantErr  string
	}{
		{name: "no file", wantCode: http.StatusBadRequest, wantErr: "FILE004"},
		{name: "empty file", content: "\n", wantCode: http.StatusBadRequest, wantErr: "FILE005"},
		{
			name:     "missing required columns",
			content:  "first_name,last_name,phone\nA,B,1\n",
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "HDR001",
		},
		{
			name:     "hash and format only",
			content:  dorothyCSV,
			fields:   map[string]string{"hash": "true", "format_only": "true"},
			wantCode: http.StatusBadRequest,
			wantErr:  "REQ001",
		},
		{
			name:     "bad region",
			content:  dorothyCSV,
			fields:   map[string]string{"region": "USA"},
			wantCode: http.StatusBadRequest,
			wantErr:  "REQ001",
		},
		{
			name:     "infer zip without source",
			content:  dorothyCSV,
			fields:   map[string]string{"infer_zip": "true"},
			wantCode: http.StatusBadRequest,
			wantErr:  "LKP001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, tt.source)
			rec := serve(s, uploadRequest(t, "/api/normalize", tt.content, tt.fields))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var got ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", got.Code, tt.wantErr)
			}
		})
	}
}

func TestHandleNormalize_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxUploadSize = 64
	s := newTestServer(t, cfg, nil)

	rec := serve(s, uploadRequest(t, "/api/normalize", dorothyCSV+strings.Repeat(dorothyCSV, 10), nil))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestHandleNormalize_Busy(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxConcurrentRuns = 1
	cfg.Server.MaxWaitTime = 10 * time.Millisecond
	s := newTestServer(t, cfg, nil)

	if !s.limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	defer s.limiter.Release()

	rec := serve(s, uploadRequest(t, "/api/normalize", dorothyCSV, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleHeaders(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := serve(s, uploadRequest(t, "/api/headers", "fname;surname;notes;email;phone;country\n", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got struct {
		Columns []struct {
			Header string `json:"header"`
			Field  string `json:"field"`
		} `json:"columns"`
		Missing []string `json:"missing"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Columns) != 6 {
		t.Fatalf("columns = %d, want 6", len(got.Columns))
	}
	if got.Columns[0].Field != "First Name" || got.Columns[2].Field != "" {
		t.Errorf("columns = %+v", got.Columns)
	}
	if len(got.Missing) != 1 || got.Missing[0] != "Zip" {
		t.Errorf("missing = %v, want [Zip]", got.Missing)
	}
}

func TestHandleHeaders_HTMX(t *testing.T) {
	s := newTestServer(t, nil, nil)
	req := uploadRequest(t, "/api/headers", "first_name,last_name\n", nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	body := rec.Body.String()
	if !strings.Contains(body, "<table>") || !strings.Contains(body, "HDR001") {
		t.Errorf("fragment = %s", body)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg, nil)

	req := uploadRequest(t, "/api/normalize", dorothyCSV, nil)
	if rec := serve(s, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}

	req = uploadRequest(t, "/api/normalize", dorothyCSV, nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without key", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	s := newTestServer(t, cfg, nil)
	defer s.Shutdown(context.Background())

	var last int
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.0.2.1:5000"
		last = serve(s, req).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.2:5000"
	if code := serve(s, req).Code; code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	s := NewServer(Deps{Config: testConfig(), Recorder: recorder, Gatherer: reg})

	serve(s, uploadRequest(t, "/api/normalize", dorothyCSV, nil))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "customermatch_rows_processed_total 1") {
		t.Errorf("metrics missing processed row:\n%s", rec.Body.String())
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"contacts.csv", "contacts_normalized.csv"},
		{"list", "list_normalized.csv"},
		{"", "contacts_normalized.csv"},
	}
	for _, tt := range tests {
		if got := outputName(tt.in); got != tt.want {
			t.Errorf("outputName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
