package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pageguard/pageguard/internal/analysis"
	"github.com/pageguard/pageguard/internal/config"
	"github.com/pageguard/pageguard/internal/provider"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load("testdata/does-not-exist.yaml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestAnalyze_MissingCredentialFailsOpen(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Gemini.APIKeyEnv = "PAGEGUARD_TEST_MISSING_KEY"
	t.Setenv("PAGEGUARD_TEST_MISSING_KEY", "")

	c := New(cfg)
	res, err := c.Analyze(context.Background(), analysis.PageSignal{URL: "https://a.test"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !res.IsSafe || res.RiskScore != 0 {
		t.Errorf("missing credential must fail open, got %+v", res)
	}
	if !strings.Contains(res.Summary, "PAGEGUARD_TEST_MISSING_KEY") {
		t.Errorf("summary should name the missing configuration: %q", res.Summary)
	}
	if c.TestConnectivity(context.Background()) {
		t.Error("connectivity must be false without a backend")
	}
}

func TestAnalyze_UnknownProviderFailsOpen(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "oracle-of-delphi"

	res, err := New(cfg).Analyze(context.Background(), analysis.PageSignal{URL: "https://a.test"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !res.IsSafe || !strings.Contains(res.Summary, "oracle-of-delphi") {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestAnalyze_ParsesBackendOutput(t *testing.T) {
	fake := provider.NewFake(`{"risk_score": 88, "is_safe": false, "ai_summary": "bad page"}`)
	c := NewWithProvider(fake)

	res, err := c.Analyze(context.Background(), analysis.PageSignal{URL: "https://bad.test"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.RiskScore != 88 || res.IsSafe || res.Summary != "bad page" {
		t.Errorf("unexpected result: %+v", res)
	}
	if fake.Calls != 1 {
		t.Errorf("backend called %d times", fake.Calls)
	}
	if fake.LastSystem != systemInstruction {
		t.Error("system instruction not passed to backend")
	}
}

func TestAnalyze_BackendErrorPropagates(t *testing.T) {
	fake := provider.NewFake("")
	fake.Err = errors.New("upstream exploded")

	_, err := NewWithProvider(fake).Analyze(context.Background(), analysis.PageSignal{URL: "https://a.test"})
	if err == nil || !strings.Contains(err.Error(), "upstream exploded") {
		t.Fatalf("expected propagated backend error, got %v", err)
	}
}

func TestBuildPrompt_AppliesBudget(t *testing.T) {
	sig := analysis.PageSignal{
		URL:              "https://long.test",
		Title:            "Long page",
		TextContent:      strings.Repeat("a", 5000),
		HasPasswordField: true,
		MetaTags:         map[string]string{"description": "stuff"},
	}
	for i := 0; i < 15; i++ {
		sig.Forms = append(sig.Forms, analysis.FormDescriptor{Action: fmt.Sprintf("/form-%d", i)})
		sig.Iframes = append(sig.Iframes, fmt.Sprintf("https://frame-%d.test", i))
	}
	for i := 0; i < 30; i++ {
		sig.ExternalScripts = append(sig.ExternalScripts, fmt.Sprintf("https://cdn.test/s-%d.js", i))
	}

	prompt := buildPrompt(sig)

	if !strings.Contains(prompt, "password input field") {
		t.Error("password warning missing")
	}
	if strings.Contains(prompt, strings.Repeat("a", 3001)) {
		t.Error("text content not truncated to 3000 chars")
	}
	if strings.Contains(prompt, "/form-10") {
		t.Error("more than 10 forms serialized")
	}
	if !strings.Contains(prompt, "/form-9") {
		t.Error("10th form missing")
	}
	if strings.Contains(prompt, "s-20.js") || !strings.Contains(prompt, "s-19.js") {
		t.Error("script list not capped at 20")
	}
	if strings.Contains(prompt, "frame-10.test") || !strings.Contains(prompt, "frame-9.test") {
		t.Error("iframe list not capped at 10")
	}
	if !strings.Contains(prompt, `"description":"stuff"`) {
		t.Error("meta tags missing")
	}
}

func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	prompt := buildPrompt(analysis.PageSignal{URL: "https://bare.test", Title: "Bare"})

	for _, section := range []string{"Forms Found", "External Scripts", "Iframes", "Meta Tags", "Page Text"} {
		if strings.Contains(prompt, section) {
			t.Errorf("empty section %q should be omitted", section)
		}
	}
}
