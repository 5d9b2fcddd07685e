package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bryanwahyu/heartscan/internal/domain/users"
)

type stubResolver map[string]*users.Session

func (s stubResolver) Session(ctx context.Context, id string) (*users.Session, error) {
	if sess, ok := s[id]; ok {
		return sess, nil
	}
	return nil, users.ErrNoSession
}

func TestRequireSession(t *testing.T) {
	resolver := stubResolver{"abc": {ID: "abc", UserID: 7}}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSessionFromContext(r.Context()).UserID != 7 {
			t.Error("session not in context")
		}
		w.WriteHeader(http.StatusNoContent)
	})
	h := LoadSession(resolver)(RequireSession(ok))

	req := httptest.NewRequest(http.MethodGet, "/usuarios", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("anonymous: code=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodGet, "/usuarios", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("with session: code=%d", rec.Code)
	}

	api := LoadSession(resolver)(RequireSessionAPI(ok))
	req = httptest.NewRequest(http.MethodGet, "/api/usuarios", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "expired"})
	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("api stale cookie: code=%d", rec.Code)
	}
}

func TestRateLimit_PerIP(t *testing.T) {
	limiter := NewRateLimiter(2, 1)
	defer limiter.Stop()
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	for i := 0; i < 2; i++ {
		if code := do("10.0.0.1:5000"); code != http.StatusOK {
			t.Fatalf("request %d code=%d", i, code)
		}
	}
	if code := do("10.0.0.1:6000"); code != http.StatusTooManyRequests {
		t.Errorf("third request from same IP code=%d, want 429", code)
	}
	if code := do("10.0.0.2:5000"); code != http.StatusOK {
		t.Errorf("other IP code=%d", code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:1234"
	if got := ClientIP(req); got != "192.0.2.4" {
		t.Errorf("ClientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "192.0.2.4" {
		t.Errorf("ClientIP must ignore X-Forwarded-For, got %q", got)
	}
}

func TestRateLimit_IgnoresSpoofedForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(2, 1)
	defer limiter.Stop()
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	// one refill may land if the loop crosses a second boundary
	if allowed < 2 || allowed > 3 {
		t.Fatalf("allowed %d of 50 requests from one address, want 2", allowed)
	}
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	tp, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.5 ", ""})
	if err != nil {
		t.Fatalf("ParseTrustedProxies error: %v", err)
	}
	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"untrusted remote ignores header", "203.0.113.9:1", "198.51.100.7", "203.0.113.9"},
		{"trusted remote uses last hop", "10.1.2.3:1", "198.51.100.7", "198.51.100.7"},
		{"skips trusted hops from the right", "10.1.2.3:1", "6.6.6.6, 198.51.100.7, 192.168.1.5", "198.51.100.7"},
		{"no header keeps proxy address", "192.168.1.5:1", "", "192.168.1.5"},
		{"garbage hop stops the walk", "10.1.2.3:1", "198.51.100.7, not-an-ip", "10.1.2.3"},
		{"all hops trusted", "10.1.2.3:1", "10.9.9.9", "10.9.9.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := tp.ClientIP(req); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}

	if _, err := ParseTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Errorf("bad CIDR should fail")
	}
	if _, err := ParseTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Errorf("hostname should fail")
	}
}

func TestRateLimit_TrustedProxyKeysOnForwardedClient(t *testing.T) {
	tp, err := ParseTrustedProxies([]string{"10.0.0.1"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies error: %v", err)
	}
	limiter := NewRateLimiter(1, 1)
	defer limiter.Stop()
	limiter.TrustProxies(tp)
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = "10.0.0.1:443"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := do("198.51.100.1"); code != http.StatusOK {
		t.Fatalf("first client code=%d", code)
	}
	if code := do("198.51.100.2"); code != http.StatusOK {
		t.Errorf("second client behind the proxy should get its own bucket, code=%d", code)
	}
	if code := do("198.51.100.1"); code != http.StatusTooManyRequests {
		t.Errorf("repeat client code=%d, want 429", code)
	}
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"db":    CheckerFunc(func(ctx context.Context) error { return nil }),
		"redis": CheckerFunc(func(ctx context.Context) error { return errors.New("down") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", rec.Code)
	}

	ready := ReadinessHandler(map[string]HealthChecker{"uploads": PathChecker{Path: t.TempDir(), Dir: true}})
	rec = httptest.NewRecorder()
	ready.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready code = %d", rec.Code)
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("42"); err != nil || id != 42 {
		t.Errorf("ParseID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) should fail", bad)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Juan\x00\x07 45\n "); got != "Juan 45" {
		t.Errorf("SanitizeString = %q", got)
	}
}
