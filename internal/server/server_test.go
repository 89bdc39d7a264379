package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pageguard/pageguard/internal/analysis"
	"github.com/pageguard/pageguard/internal/breach"
	"github.com/pageguard/pageguard/internal/cache"
	"github.com/pageguard/pageguard/internal/config"
	"github.com/pageguard/pageguard/internal/quota"
	"github.com/pageguard/pageguard/internal/service"
)

type stubAnalyzer struct {
	result analysis.Result
	err    error
	up     bool
}

func (a *stubAnalyzer) Analyze(_ context.Context, sig analysis.PageSignal) (analysis.Result, error) {
	if a.err != nil {
		return analysis.Result{}, a.err
	}
	res := a.result
	res.URL = sig.URL
	return res, nil
}

func (a *stubAnalyzer) TestConnectivity(context.Context) bool { return a.up }

type stubBreach struct {
	result breach.Result
}

func (b *stubBreach) Lookup(_ context.Context, email string) breach.Result {
	res := b.result
	res.Email = email
	return res
}

func newTestServer(t *testing.T, az *stubAnalyzer, bc *stubBreach, limits map[quota.Class]int) *httptest.Server {
	t.Helper()
	if limits == nil {
		limits = map[quota.Class]int{quota.ClassAnalyze: 50, quota.ClassBreach: 5}
	}

	cfg := &config.Config{}
	svc := service.New(service.Dependencies{
		Cache:    cache.New(5 * time.Minute),
		Quota:    quota.New(limits),
		Analyzer: az,
		Breach:   bc,
	})

	ts := httptest.NewServer(New(cfg, svc).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	az := &stubAnalyzer{result: analysis.Result{
		RiskScore: 72,
		IsSafe:    false,
		Summary:   "credential harvesting page",
	}}
	ts := newTestServer(t, az, &stubBreach{}, nil)

	body := `{"url":"https://phish.example/login","title":"Sign in"}`
	resp, err := http.Post(ts.URL+"/api/analyze", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var res analysis.Result
	decodeBody(t, resp, &res)
	if res.RiskScore != 72 {
		t.Errorf("risk_score = %d, want 72", res.RiskScore)
	}
	if res.URL != "https://phish.example/login" {
		t.Errorf("url = %q", res.URL)
	}
}

func TestAnalyzeMissingURL(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{}, &stubBreach{}, nil)

	resp, err := http.Post(ts.URL+"/api/analyze", "application/json", strings.NewReader(`{"title":"no url"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var eb struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	decodeBody(t, resp, &eb)
	if eb.Error.Type != "validation_error" {
		t.Errorf("error type = %q, want validation_error", eb.Error.Type)
	}
}

func TestAnalyzeQuotaExceeded(t *testing.T) {
	az := &stubAnalyzer{result: analysis.Result{IsSafe: true}}
	ts := newTestServer(t, az, &stubBreach{}, map[quota.Class]int{
		quota.ClassAnalyze: 1,
		quota.ClassBreach:  5,
	})

	post := func(url string) *http.Response {
		resp, err := http.Post(ts.URL+"/api/analyze", "application/json",
			strings.NewReader(`{"url":"`+url+`"}`))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		return resp
	}

	first := post("https://a.example")
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.StatusCode)
	}

	second := post("https://b.example")
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.StatusCode)
	}
	var eb struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, second, &eb)
	if !strings.Contains(eb.Error.Message, "1/day") {
		t.Errorf("message %q should state the daily limit", eb.Error.Message)
	}
}

func TestAnalyzeBackendFailureStill200(t *testing.T) {
	az := &stubAnalyzer{err: context.DeadlineExceeded}
	ts := newTestServer(t, az, &stubBreach{}, nil)

	resp, err := http.Post(ts.URL+"/api/analyze", "application/json",
		strings.NewReader(`{"url":"https://slow.example"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res analysis.Result
	decodeBody(t, resp, &res)
	if res.RiskScore != 0 || !res.IsSafe {
		t.Errorf("fallback = score %d safe %v, want 0/true", res.RiskScore, res.IsSafe)
	}
}

func TestBreachEndpoint(t *testing.T) {
	bc := &stubBreach{result: breach.Result{
		Breached:    true,
		BreachCount: 2,
		Breaches: []breach.Record{
			{Name: "ExampleCo", Date: "2023-01-15"},
			{Name: "OtherSite", Date: "2024-06-02"},
		},
	}}
	ts := newTestServer(t, &stubAnalyzer{}, bc, nil)

	resp, err := http.Post(ts.URL+"/api/breach", "application/json",
		strings.NewReader(`{"email":"user@example.com"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var res breach.Result
	decodeBody(t, resp, &res)
	if !res.Breached || res.BreachCount != 2 {
		t.Errorf("breached=%v count=%d, want true/2", res.Breached, res.BreachCount)
	}
	if res.Email != "user@example.com" {
		t.Errorf("email = %q", res.Email)
	}
}

func TestBreachInvalidEmail(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{}, &stubBreach{}, nil)

	resp, err := http.Post(ts.URL+"/api/breach", "application/json",
		strings.NewReader(`{"email":"nodomain"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{up: true}, &stubBreach{}, nil)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var hr healthResponse
	decodeBody(t, resp, &hr)
	if hr.Status != "healthy" {
		t.Errorf("status = %q", hr.Status)
	}
	if hr.ModelAPI != "connected" {
		t.Errorf("model_api = %q, want connected", hr.ModelAPI)
	}
	if hr.Version != config.Version {
		t.Errorf("version = %q, want %q", hr.Version, config.Version)
	}
}

func TestHealthBackendDown(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{up: false}, &stubBreach{}, nil)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var hr healthResponse
	decodeBody(t, resp, &hr)
	if hr.ModelAPI != "unreachable" {
		t.Errorf("model_api = %q, want unreachable", hr.ModelAPI)
	}
}

func TestHistoryDisabled(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{}, &stubBreach{}, nil)

	resp, err := http.Get(ts.URL + "/api/history")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRootServiceDescriptor(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{}, &stubBreach{}, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var info map[string]string
	decodeBody(t, resp, &info)
	if info["service"] != config.AppName {
		t.Errorf("service = %q, want %q", info["service"], config.AppName)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{}, &stubBreach{}, nil)

	resp, err := http.Get(ts.URL + "/api/analyze")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{}, &stubBreach{}, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/analyze", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "X-Client-ID") {
		t.Error("preflight should allow X-Client-ID")
	}
}

func TestRateLimitBurst(t *testing.T) {
	az := &stubAnalyzer{up: true}
	cfg := &config.Config{}
	cfg.Server.RequestsPerSecond = 1
	cfg.Server.Burst = 2
	svc := service.New(service.Dependencies{
		Cache:    cache.New(time.Minute),
		Quota:    quota.New(map[quota.Class]int{quota.ClassAnalyze: 50, quota.ClassBreach: 5}),
		Analyzer: az,
		Breach:   &stubBreach{},
	})
	ts := httptest.NewServer(New(cfg, svc).Handler())
	defer ts.Close()

	saw429 := false
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			saw429 = true
		}
	}
	if !saw429 {
		t.Error("burst of 5 requests against burst=2 limiter should trip 429")
	}
}
