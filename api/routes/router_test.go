package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/beije/packet-storefront/api/controllers"
	"github.com/beije/packet-storefront/internal/auth"
	"github.com/beije/packet-storefront/internal/gateway"
	"github.com/beije/packet-storefront/internal/session"
	"github.com/beije/packet-storefront/internal/storage"
	"github.com/beije/packet-storefront/pkg/config"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/logger"
	"github.com/beije/packet-storefront/pkg/metrics"
)

type stubAuthService struct {
	logins int
}

func (s *stubAuthService) Login(context.Context, string, auth.LoginRequest) (*auth.LoginResponse, error) {
	s.logins++
	return &auth.LoginResponse{Authenticated: true}, nil
}

func (s *stubAuthService) Logout(context.Context, string) error { return nil }

func (s *stubAuthService) Profile(context.Context, string) (*gateway.Profile, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
}

func (s *stubAuthService) Token(context.Context, string) (string, error) {
	return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
}

type stubVerifier struct{}

func (stubVerifier) VerifyPacketPrice(context.Context, string, gateway.VerifyRequest) gateway.Result[gateway.Verification] {
	return gateway.Success(gateway.Verification{Verified: true})
}

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) RateLimitKey(scope string) string {
	return "pf:rl:" + scope
}

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Env: "dev", CORSOrigins: []string{"https://shop.example.com"}},
		Session: config.SessionConfig{Header: "X-Session-Id", CookieName: "pf_session"},
		Packets: config.PacketsConfig{IncrementStep: 10},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:     time.Minute,
			LoginIPLimit:    2,
			LoginEmailLimit: 5,
		},
	}
}

func newTestRouter(t *testing.T, rateStore rateLimitStore) (http.Handler, *stubAuthService) {
	t.Helper()
	svc := &stubAuthService{}
	kv := storage.NewMemory()
	promReg := prometheus.NewRegistry()
	reg, err := session.NewRegistry(session.RegistryParams{
		Storage:  kv,
		Verifier: stubVerifier{},
		Tokens:   svc,
		Metrics:  metrics.New(promReg),
		Logger:   logger.Nop(),
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	deps := Dependencies{
		Readiness:  map[string]controllers.Pinger{"storage": kv},
		Gatherer:   promReg,
		Auth:       svc,
		Workspaces: reg,
	}
	if rateStore != nil {
		deps.RateStore = rateStore
	}
	return NewRouter(testConfig(), logger.Nop(), deps), svc
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Session-Id") != "" {
			t.Fatalf("%s: health routes should not mint sessions", path)
		}
	}

	// touch a workspace so the gauge is exported
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/packets/selection", nil))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "session_workspaces") {
		t.Fatalf("expected workspace gauge in exposition")
	}
}

func TestRouterSessionRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/packets/selection/A", strings.NewReader(`{"quantity":3}`))
	req.Header.Set("X-Session-Id", "tab-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Session-Id") != "tab-1" {
		t.Fatalf("expected session header echoed, got %q", rec.Header().Get("X-Session-Id"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/packets/selection", nil)
	req.AddCookie(&http.Cookie{Name: "pf_session", Value: "tab-1"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env struct {
		Data struct {
			Selection map[string]int `json:"selection"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Selection["A"] != 3 {
		t.Fatalf("expected selection from cookie session, got %+v", env.Data.Selection)
	}
}

func TestRouterActivationRequiresLogin(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/packets", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/packets/checkout", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials allowed")
	}
}

func TestRouterLoginRateLimited(t *testing.T) {
	store := &fakeRateStore{counts: map[string]int64{}}
	router, svc := newTestRouter(t, store)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"secret"}`))
		req.RemoteAddr = "203.0.113.9:4000"
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %d", last.Code)
	}
	if svc.logins != 2 {
		t.Fatalf("expected two logins to reach the service, got %d", svc.logins)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
