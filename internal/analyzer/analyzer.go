// Package analyzer is the threat-model client: it turns a page signal
// into a prompt, dispatches it to the configured reasoning-model backend,
// and interprets the raw output into a bounded analysis result.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pageguard/pageguard/internal/analysis"
	"github.com/pageguard/pageguard/internal/config"
	"github.com/pageguard/pageguard/internal/provider"
)

// systemInstruction constrains both backends to a single JSON object with
// a fixed schema. Kept identical across providers so results stay
// comparable when the deployment switches backends.
const systemInstruction = `You are PageGuard, a cybersecurity assistant that inspects web pages for threats. You examine page content, URLs, forms, scripts, and behavior patterns to protect users.

For every page you MUST answer with a single JSON object of EXACTLY this shape (no markdown, no commentary, only JSON):

{
  "risk_score": <integer 0-100>,
  "is_safe": <true|false>,
  "is_phishing": <true|false>,
  "phishing_confidence": <0.0-1.0>,
  "impersonating": <"BrandName" or null>,
  "ai_summary": "<one or two sentences on the page's security posture>",
  "threats": [
    {
      "type": "<phishing|malware|tracker|suspicious_script|cryptomining|clickjacking|data_exfiltration|deceptive_ui>",
      "severity": "<low|medium|high|critical>",
      "description": "<specific, actionable description>",
      "confidence": <0.0-1.0>
    }
  ],
  "privacy_concerns": ["<concern>", "<concern>"]
}

RULES:
1. Compare the URL domain against the page branding and content; mismatches suggest phishing.
2. Flag password forms on non-HTTPS pages or lookalike domains.
3. Identify trackers, analytics and fingerprinting scripts.
4. Watch for urgency language ("your account will be suspended", "act now").
5. Look for hidden iframes, suspicious redirects and obfuscated scripts.
6. Assess what user data the page collects.
7. Be precise and avoid false positives; well-known safe sites score 0-10.
8. Respond with the JSON object only, no code fences.`

// Client dispatches page analyses to a single configured backend.
type Client struct {
	prov provider.Provider

	// unavailable holds the human-readable reason no backend can be
	// used. When set, Analyze fails open instead of calling anything.
	unavailable string
}

// New builds the client for the backend selected in the configuration.
// A missing credential or unknown provider does not fail construction;
// analyses will fail open with a summary naming the problem, since a
// misconfigured backend must never show up as a threat.
func New(cfg *config.Config) *Client {
	name := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	switch name {
	case "gemini":
		b := cfg.LLM.Gemini
		key := b.APIKey()
		if key == "" {
			return &Client{unavailable: fmt.Sprintf("Gemini API key not configured. Set %s in the environment.", b.APIKeyEnv)}
		}
		return &Client{prov: provider.NewGemini(b.BaseURL, key, b.Model, b.Timeout())}
	case "groq":
		b := cfg.LLM.Groq
		key := b.APIKey()
		if key == "" {
			return &Client{unavailable: fmt.Sprintf("Groq API key not configured. Set %s in the environment.", b.APIKeyEnv)}
		}
		return &Client{prov: provider.NewGroq(b.BaseURL, key, b.Model, b.Timeout())}
	default:
		return &Client{unavailable: fmt.Sprintf("Unknown model provider: %s", name)}
	}
}

// NewWithProvider wires an explicit backend. Used by tests and by any
// caller that constructs providers itself.
func NewWithProvider(p provider.Provider) *Client {
	return &Client{prov: p}
}

// Analyze runs one page analysis. Backend errors are returned to the
// caller untouched; only missing-backend and malformed-output cases are
// converted to safe results here.
func (c *Client) Analyze(ctx context.Context, sig analysis.PageSignal) (analysis.Result, error) {
	if c.prov == nil {
		return analysis.SafeResult(sig.URL, c.unavailable), nil
	}

	raw, err := c.prov.Complete(ctx, systemInstruction, buildPrompt(sig))
	if err != nil {
		return analysis.Result{}, fmt.Errorf("model analysis: %w", err)
	}

	return analysis.ParseModelResponse(raw, sig.URL), nil
}

// TestConnectivity reports whether the configured backend answers a
// minimal request. All errors collapse to false; this is health
// reporting, not an operation.
func (c *Client) TestConnectivity(ctx context.Context) bool {
	if c.prov == nil {
		return false
	}
	return c.prov.Ping(ctx) == nil
}
