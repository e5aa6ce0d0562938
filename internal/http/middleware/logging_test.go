package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/rid", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"generated when absent", "", false},
		{"reused when sane", "corr-42", true},
		{"replaced when too long", strings.Repeat("x", maxRequestIDLength+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rid", nil)
			if tc.incoming != "" {
				req.Header.Set(HeaderRequestID, tc.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if tc.reuse != (got == tc.incoming) {
				t.Fatalf("reuse=%v but got %q for incoming %q", tc.reuse, got, tc.incoming)
			}
		})
	}
}

func TestRecovery_StandardBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/api/v1/specialties", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/specialties", nil)
	req.Header.Set(HeaderRequestID, "rid-panic")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["request_id"] != "rid-panic" || body["code"] != "internal_error" {
		t.Fatalf("body = %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestRecovery_EnvelopeForFunctions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.POST("/api/v1/functions/:name", func(c *gin.Context) { panic("boom") })
	r.POST("/api/v1/webhooks/asaas", func(c *gin.Context) { panic("boom") })

	for _, p := range []string{"/api/v1/functions/orchestrator", "/api/v1/webhooks/asaas"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, p, nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: status = %d", p, w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		if body["success"] != false || body["error"] == "" {
			t.Fatalf("%s: body = %v", p, body)
		}
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	t.Run("falls back to global", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		lg := LoggerFrom(c)
		if lg == nil {
			t.Fatal("nil logger")
		}
		lg.Info().Msg("fallback")
		if !strings.Contains(buf.String(), "fallback") {
			t.Fatalf("global logger not used: %s", buf.String())
		}
	})

	t.Run("returns attached logger", func(t *testing.T) {
		var own bytes.Buffer
		l := zerolog.New(&own).With().Str("scope", "req").Logger()
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(loggerKey, &l)
		LoggerFrom(c).Info().Msg("scoped")
		if !strings.Contains(own.String(), `"scope":"req"`) {
			t.Fatalf("attached logger not used: %s", own.String())
		}
	})
}
