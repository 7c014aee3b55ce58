package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sentinal-assist/internal/transport/httpdto"
	"sentinal-assist/pkg/logger"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(logger.RequestIdKey).(string)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := w.Header().Get(RequestIDHeader)
	if len(generated) != 32 {
		t.Errorf("expected 32 hex chars, got %q", generated)
	}
	if seen != generated {
		t.Errorf("context id %q differs from header %q", seen, generated)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc" {
		t.Errorf("expected incoming id kept, got %q", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:5173"}))
	r.POST("/api/chat", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	preflight := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	preflight.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, preflight)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow-origin %q", got)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	other.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, other)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("origin should not be allowed, got %q", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("non-preflight request should pass through, got %d", w.Code)
	}
}

func TestCORSMiddlewareWildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"*"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://anything.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://anything.example" {
		t.Errorf("wildcard should echo origin, got %q", got)
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(logger.NewNop()))
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("upstream down"))
	})
	r.GET("/teapot", func(c *gin.Context) {
		c.Status(http.StatusServiceUnavailable)
		_ = c.Error(errors.New("redis down"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when no status was set, got %d", w.Code)
	}
	var body httpdto.Response[any]
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Success || body.Error != "upstream down" || body.Code != "INTERNAL_ERROR" {
		t.Errorf("unexpected body %+v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected handler status kept, got %d", w.Code)
	}
}

type recordedRequest struct {
	method string
	route  string
	status int
}

type fakeRecorder struct {
	seen []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	f.seen = append(f.seen, recordedRequest{method, route, status})
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	rec := &fakeRecorder{}
	r := gin.New()
	r.Use(MetricsMiddleware(rec))
	r.GET("/api/chat/stream", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/chat/stream?message=hi", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if len(rec.seen) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(rec.seen))
	}
	if rec.seen[0] != (recordedRequest{http.MethodGet, "/api/chat/stream", http.StatusOK}) {
		t.Errorf("unexpected first observation %+v", rec.seen[0])
	}
	if rec.seen[1].route != "" || rec.seen[1].status != http.StatusNotFound {
		t.Errorf("unexpected second observation %+v", rec.seen[1])
	}
}
