package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		want       string
	}{
		{name: "trusted proxy with X-Real-IP", remoteAddr: "10.0.0.5:4000", realIP: "203.0.113.9", want: "203.0.113.9"},
		{name: "trusted proxy with forwarded chain", remoteAddr: "10.0.0.5:4000", forwarded: "198.51.100.1, 10.0.0.5", want: "198.51.100.1"},
		{name: "untrusted client spoofing", remoteAddr: "192.0.2.7:4000", realIP: "203.0.113.9", want: "192.0.2.7:4000"},
		{name: "trusted proxy with garbage header", remoteAddr: "10.0.0.5:4000", realIP: "not-an-ip", want: "10.0.0.5:4000"},
		{name: "single address entry", remoteAddr: "127.0.0.1:80", realIP: "203.0.113.1", want: "203.0.113.1"},
	}

	var got string
	h := TrustedRealIP([]string{"10.0.0.0/8", "127.0.0.1", "bogus"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.RemoteAddr
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got := ParseTrustedProxies([]string{" 10.1.2.3/8 ", "::1", "", "nope"})
	if len(got) != 2 {
		t.Fatalf("ParseTrustedProxies len = %d, want 2", len(got))
	}
	if got[0].String() != "10.0.0.0/8" {
		t.Errorf("prefix[0] = %s, want 10.0.0.0/8", got[0])
	}
	if got[1].String() != "::1/128" {
		t.Errorf("prefix[1] = %s, want ::1/128", got[1])
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		required bool
		keys     []string
		header   string
		want     int
	}{
		{name: "disabled", required: false, want: http.StatusNoContent},
		{name: "missing key", required: true, keys: []string{"k1"}, want: http.StatusUnauthorized},
		{name: "wrong key", required: true, keys: []string{"k1"}, header: "k2", want: http.StatusForbidden},
		{name: "valid second key", required: true, keys: []string{"k1", "k2"}, header: "k2", want: http.StatusNoContent},
		{name: "no keys configured", required: true, header: "k1", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/normalize", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(tt.required, tt.keys)(ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Run-ID", "run-1")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("bad"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/normalize", nil))

	out := buf.String()
	for _, want := range []string{"level=WARN", "status=422", "bytes=3", "run_id=run-1", "path=/api/normalize"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}
