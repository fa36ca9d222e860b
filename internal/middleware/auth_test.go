package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/metrics"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/logger"
)

const testSecret = "test-secret"

func caller(n byte) util.Uint160 {
	var u util.Uint160
	u[0] = n
	return u
}

func testToken(t *testing.T, secret string, who util.Uint160, expired bool) string {
	t.Helper()
	exp := time.Now().Add(time.Hour)
	if expired {
		exp = time.Now().Add(-time.Hour)
	}
	token, err := Token(secret, who, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	return token
}

func captureCaller(got *util.Uint160) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, _ = CallerFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewAuthMiddleware(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logger.Discard(), []string{"/healthz", "/metrics"})
	if len(m.skipPaths) != 2 {
		t.Errorf("skipPaths length = %d, want 2", len(m.skipPaths))
	}
	if !m.skipPaths["/healthz"] {
		t.Error("skipPaths does not contain /healthz")
	}
}

func TestAuthMiddleware_SkipPaths(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logger.Discard(), []string{"/healthz"})
	var got util.Uint160
	rec := httptest.NewRecorder()
	m.Handler(captureCaller(&got)).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logger.Discard(), nil)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "token123"},
		{"wrong prefix", "Basic token123"},
		{"empty token", "Bearer "},
		{"expired", "Bearer " + testToken(t, testSecret, caller(1), true)},
		{"wrong secret", "Bearer " + testToken(t, "other", caller(1), false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/cut", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logger.Discard(), nil)
	var got util.Uint160

	req := httptest.NewRequest("POST", "/cut", nil)
	req.Header.Set("Authorization", "Bearer "+testToken(t, testSecret, caller(7), false))
	rec := httptest.NewRecorder()
	m.Handler(captureCaller(&got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if !got.Equals(caller(7)) {
		t.Errorf("caller = %s, want %s", got.StringLE(), caller(7).StringLE())
	}
}

func TestAuthMiddleware_HeaderMode(t *testing.T) {
	m := NewAuthMiddleware("", logger.Discard(), nil)

	var got util.Uint160
	req := httptest.NewRequest("POST", "/call/0x01020304", nil)
	req.Header.Set(CallerHeader, diamond.FormatAddress(caller(3)))
	rec := httptest.NewRecorder()
	m.Handler(captureCaller(&got)).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !got.Equals(caller(3)) {
		t.Errorf("got %d %s, want 200 %s", rec.Code, got.StringLE(), caller(3).StringLE())
	}

	req = httptest.NewRequest("POST", "/call/0x01020304", nil)
	req.Header.Set(CallerHeader, "not-an-address")
	rec = httptest.NewRecorder()
	m.Handler(captureCaller(&got)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.Discard())
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/loupe/facets", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// a different caller has its own bucket
	req := httptest.NewRequest("GET", "/loupe/facets", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req = req.WithContext(WithCaller(req.Context(), caller(9)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
	rl.Reset()
	if rl.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", rl.Len())
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 0, logger.Discard())
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
}

func TestMetricsAndRequestID(t *testing.T) {
	c := metrics.NewCollector("test")
	r := mux.NewRouter()
	r.Use(RequestID(logger.Discard()), MetricsMiddleware(c))

	var seen string
	r.HandleFunc("/loupe/selectors/{selector}", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/loupe/selectors/0x01020304", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen != "req-1" || rec.Header().Get(RequestIDHeader) != "req-1" {
		t.Errorf("request id = %q / %q, want req-1", seen, rec.Header().Get(RequestIDHeader))
	}

	n, err := testutil.GatherAndCount(c.Registry(), "test_http_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("http series = %d, want 1", n)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/loupe/selectors/0x05060708", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated request id")
	}
}
