package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("brew"))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	t.Parallel()

	h := NewAPIKeyAuth([]string{" k1 ", "", "k2"}).Middleware(okHandler())
	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"none", "", "", http.StatusUnauthorized},
		{"wrong", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer k1", http.StatusTeapot},
		{"header", "X-API-Key", "k2", http.StatusTeapot},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}

	open := NewAPIKeyAuth(nil)
	if open.Enabled() {
		t.Fatal("auth without keys must be disabled")
	}
	rec := httptest.NewRecorder()
	open.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("open auth status = %d", rec.Code)
	}
}

func TestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	rec := httptest.NewRecorder()
	Telemetry(Logger(okHandler())).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	out := buf.String()
	for _, want := range []string{`"status":418`, `"path":"/health"`, `"bytes":4`, `"level":"warn"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %s: %s", want, out)
		}
	}
}
