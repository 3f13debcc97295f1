package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/secureform/internal/metrics"
	"github.com/hitoshi/secureform/internal/middleware"
	"github.com/hitoshi/secureform/internal/model"
	"github.com/hitoshi/secureform/internal/ratelimit"
	"github.com/hitoshi/secureform/internal/repository"
	"github.com/hitoshi/secureform/internal/security"
	"github.com/hitoshi/secureform/internal/submission"
	"github.com/hitoshi/secureform/internal/validation"
	"github.com/prometheus/client_golang/prometheus"
)

type testServer struct {
	router http.Handler
	store  *repository.MemoryStore
	now    *time.Time
}

// newTestServer は実際のサービスとメモリストアで構成したルーターを返す。
func newTestServer(t *testing.T, mutate func(*RouterDeps)) *testServer {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := repository.NewMemoryStore(repository.WithMemoryClock(clock))
	svc := submission.NewService(security.NewInputSanitizer(), validation.NewSubmissionValidator(), store)

	general := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), nil)
	t.Cleanup(general.Stop)

	deps := &RouterDeps{
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       general,
		SubmissionLimiter: ratelimit.NewWindowLimiter(ratelimit.DefaultWindow, ratelimit.DefaultMax, ratelimit.WithClock(clock)),
		SubmissionService: svc,
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(deps)
	}

	return &testServer{router: NewRouter(deps), store: store, now: &now}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func submitRequest(body, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/form-submission", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	return req
}

const validBody = `{
	"fullName": "  <b>Jane</b> Doe ",
	"email": " Jane@Example.com ",
	"phone": "+15551234567",
	"message": "<script>alert('xss')</script>Hello, this is a safe message.",
	"securityPreferences": ["2fa", "newsletter"]
}`

// TestRouter_SubmitAndListRoundTrip は送信結果・保存内容・一覧の値が一致することを検証する。
func TestRouter_SubmitAndListRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(submitRequest(validBody, "203.0.113.30:1234"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var submitted struct {
		SubmissionID  int64 `json:"submissionId"`
		SanitizedData struct {
			FullName            string   `json:"fullName"`
			Email               string   `json:"email"`
			Phone               *string  `json:"phone"`
			Message             string   `json:"message"`
			SecurityPreferences []string `json:"securityPreferences"`
		} `json:"sanitizedData"`
	}
	if err := json.NewDecoder(w.Body).Decode(&submitted); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	data := submitted.SanitizedData
	if data.FullName != "Jane Doe" {
		t.Errorf("fullName = %q, want %q", data.FullName, "Jane Doe")
	}
	if data.Email != "jane@example.com" {
		t.Errorf("email = %q", data.Email)
	}
	if data.Message != "Hello, this is a safe message." {
		t.Errorf("message = %q", data.Message)
	}
	if strings.ContainsAny(data.Message, "<>") {
		t.Errorf("message still contains markup: %q", data.Message)
	}

	stored, err := srv.store.FindByID(context.Background(), submitted.SubmissionID)
	if err != nil || stored == nil {
		t.Fatalf("FindByID = %v, %v", stored, err)
	}
	if stored.FullName != data.FullName || stored.Email != data.Email || stored.Message != data.Message {
		t.Errorf("stored = %+v, response = %+v", stored, data)
	}
	if stored.IPAddress == nil || *stored.IPAddress != "203.0.113.30" {
		t.Errorf("stored IPAddress = %v", stored.IPAddress)
	}

	w = srv.do(httptest.NewRequest(http.MethodGet, "/api/form-submissions", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list []model.FormSubmission
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list length = %d, want 1", len(list))
	}
	if list[0].ID != submitted.SubmissionID || list[0].Message != data.Message || list[0].FullName != data.FullName {
		t.Errorf("list[0] = %+v", list[0])
	}
	if len(list[0].SecurityPreferences) != 2 {
		t.Errorf("list[0].SecurityPreferences = %v", list[0].SecurityPreferences)
	}

	w = srv.do(httptest.NewRequest(http.MethodGet, "/api/form-submissions/1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("get status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRouter_FiveSubmissionsThenRateLimited は同一アドレスから60秒以内の6回目が
// 検証より前に429で拒否されることを検証する。
func TestRouter_FiveSubmissionsThenRateLimited(t *testing.T) {
	srv := newTestServer(t, nil)

	for i := 0; i < 5; i++ {
		// 不正な内容でも制限のカウントは進む
		body := validBody
		if i%2 == 1 {
			body = `{"fullName":"J"}`
		}
		w := srv.do(submitRequest(body, "198.51.100.60:1000"))
		if w.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d should not be rate limited", i+1)
		}
	}

	*srv.now = srv.now.Add(15 * time.Second)
	w := srv.do(submitRequest(`{"fullName":"J"}`, "198.51.100.60:1000"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("6th request status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	var body struct {
		Message    string `json:"message"`
		RetryAfter int    `json:"retryAfter"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Message != "Too many requests. Please try again later." {
		t.Errorf("message = %q", body.Message)
	}
	if body.RetryAfter != 45 {
		t.Errorf("retryAfter = %d, want 45", body.RetryAfter)
	}
	if w.Header().Get("Retry-After") != "45" {
		t.Errorf("Retry-After = %q, want 45", w.Header().Get("Retry-After"))
	}

	// 別アドレスは影響を受けない
	if w := srv.do(submitRequest(validBody, "198.51.100.61:1000")); w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want %d", w.Code, http.StatusOK)
	}

	// ウィンドウ経過後は再び受け付ける
	*srv.now = srv.now.Add(46 * time.Second)
	if w := srv.do(submitRequest(validBody, "198.51.100.60:1000")); w.Code != http.StatusOK {
		t.Errorf("status after window = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRouter_ListIsNewestFirst は一覧が送信時刻の降順であることを検証する。
func TestRouter_ListIsNewestFirst(t *testing.T) {
	srv := newTestServer(t, nil)

	for i, name := range []string{"Alice Smith", "Bob Jones", "Carol White"} {
		*srv.now = srv.now.Add(time.Duration(i) * time.Minute)
		body := strings.Replace(validBody, "  <b>Jane</b> Doe ", name, 1)
		if w := srv.do(submitRequest(body, "203.0.113.70:1")); w.Code != http.StatusOK {
			t.Fatalf("submit %s: status = %d", name, w.Code)
		}
	}

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/form-submissions", nil))
	var list []model.FormSubmission
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	want := []string{"Carol White", "Bob Jones", "Alice Smith"}
	for i := range want {
		if list[i].FullName != want[i] {
			t.Errorf("list[%d] = %q, want %q", i, list[i].FullName, want[i])
		}
	}
}

func TestRouter_ValidationErrorShape(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(submitRequest(`{"fullName":"J","email":"nope","message":"short"}`, "203.0.113.80:1"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var body struct {
		Message string             `json:"message"`
		Errors  []model.FieldError `json:"errors"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	fields := map[string]bool{}
	for _, e := range body.Errors {
		fields[e.Field] = true
	}
	for _, f := range []string{"fullName", "email", "message"} {
		if !fields[f] {
			t.Errorf("expected error for %s, got %+v", f, body.Errors)
		}
	}

	list, _ := srv.store.List(context.Background())
	if len(list) != 0 {
		t.Errorf("nothing should be stored, got %d", len(list))
	}
}

func TestRouter_SecurityStatus(t *testing.T) {
	for _, production := range []bool{false, true} {
		srv := newTestServer(t, func(d *RouterDeps) { d.Production = production })

		w := srv.do(httptest.NewRequest(http.MethodGet, "/api/security-status", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}

		var status map[string]bool
		if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		for _, key := range []string{"csrfProtection", "rateLimiting", "inputValidation", "sqlInjectionProtection", "xssProtection", "securityHeaders"} {
			if !status[key] {
				t.Errorf("%s = false, want true", key)
			}
		}
		if status["httpsOnly"] != production {
			t.Errorf("production=%v: httpsOnly = %v", production, status["httpsOnly"])
		}
		if hsts := w.Header().Get("Strict-Transport-Security"); (hsts != "") != production {
			t.Errorf("production=%v: Strict-Transport-Security = %q", production, hsts)
		}
	}
}

func TestRouter_CommonHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/form-submissions", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "X-Request-ID", "Access-Control-Allow-Origin"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestRouter_CSRFEnabled(t *testing.T) {
	srv := newTestServer(t, func(d *RouterDeps) { d.CSRFEnabled = true })

	if w := srv.do(submitRequest(validBody, "203.0.113.90:1")); w.Code != http.StatusForbidden {
		t.Fatalf("without token: status = %d, want %d", w.Code, http.StatusForbidden)
	}

	tokenResp := srv.do(httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	var token struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&token); err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}

	req := submitRequest(validBody, "203.0.113.90:1")
	for _, c := range tokenResp.Result().Cookies() {
		req.AddCookie(c)
	}
	req.Header.Set("X-CSRF-Token", token.Token)
	if w := srv.do(req); w.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want %d", w.Code, http.StatusOK)
	}
}

type fakeHealthChecker struct{ err error }

func (f fakeHealthChecker) CheckHealth(ctx context.Context) error { return f.err }

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{"no checker", nil, http.StatusOK},
		{"healthy", fakeHealthChecker{}, http.StatusOK},
		{"unhealthy", fakeHealthChecker{err: errors.New("db down")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(d *RouterDeps) { d.HealthChecker = tt.checker })

			w := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// TestRouter_MetricsEndpoint は送信結果とステータスコードが/metricsに反映されることを検証する。
func TestRouter_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	srv := newTestServer(t, func(d *RouterDeps) {
		d.Metrics = collector
		d.MetricsGatherer = reg
	})

	srv.do(submitRequest(validBody, "203.0.113.100:1"))
	srv.do(submitRequest(`{"fullName":"J"}`, "203.0.113.100:1"))

	w := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.Bytes()
	for _, want := range []string{
		"secureform_submissions_accepted_total 1",
		"secureform_submissions_rejected_total 1",
		`secureform_http_status_total{status_code="400"} 1`,
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
