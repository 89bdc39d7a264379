// Package analysis defines the normalized page-analysis data model shared
// by the threat-model client, the result cache, and the HTTP layer.
package analysis

// Threat type vocabulary. The reasoning model is instructed to pick from
// this list, but unknown values coming back from it are kept as-is.
const (
	ThreatPhishing         = "phishing"
	ThreatMalware          = "malware"
	ThreatTracker          = "tracker"
	ThreatSuspiciousScript = "suspicious_script"
	ThreatCryptomining     = "cryptomining"
	ThreatClickjacking     = "clickjacking"
	ThreatDataExfiltration = "data_exfiltration"
	ThreatDeceptiveUI      = "deceptive_ui"
	ThreatUnknown          = "unknown"
)

// Severity levels for a single threat.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// FormDescriptor summarizes one form found on the page.
type FormDescriptor struct {
	Action string   `json:"action,omitempty"`
	Method string   `json:"method,omitempty"`
	Inputs []string `json:"inputs,omitempty"`
}

// PageSignal is the raw material extracted from a page by the extension.
// It is owned by the request that carries it and is never mutated here.
type PageSignal struct {
	URL              string            `json:"url"`
	Title            string            `json:"title,omitempty"`
	TextContent      string            `json:"text_content,omitempty"`
	Forms            []FormDescriptor  `json:"forms,omitempty"`
	ExternalScripts  []string          `json:"external_scripts,omitempty"`
	MetaTags         map[string]string `json:"meta_tags,omitempty"`
	HasPasswordField bool              `json:"has_password_field,omitempty"`
	Iframes          []string          `json:"iframes,omitempty"`
}

// Threat is a single issue the model identified on a page.
type Threat struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Result is the structured outcome of a page analysis.
//
// Cached is set only when a result is served from the cache, never when
// one is stored.
type Result struct {
	URL                string   `json:"url"`
	RiskScore          int      `json:"risk_score"`
	IsSafe             bool     `json:"is_safe"`
	Threats            []Threat `json:"threats"`
	Summary            string   `json:"ai_summary"`
	PrivacyConcerns    []string `json:"privacy_concerns"`
	IsPhishing         bool     `json:"is_phishing"`
	PhishingConfidence float64  `json:"phishing_confidence"`
	Impersonating      string   `json:"impersonating,omitempty"`
	Cached             bool     `json:"cached"`
}

// SafeResult returns a zero-risk result for url with the given summary.
// Used on every fail-open path: an unavailable or unreadable backend must
// never be reported as a threat.
func SafeResult(url, summary string) Result {
	return Result{
		URL:             url,
		RiskScore:       0,
		IsSafe:          true,
		Threats:         []Threat{},
		Summary:         summary,
		PrivacyConcerns: []string{},
	}
}

// Clone returns a deep copy so the caller can hold or modify the result
// without aliasing cached state.
func (r Result) Clone() Result {
	out := r
	out.Threats = make([]Threat, len(r.Threats))
	copy(out.Threats, r.Threats)
	out.PrivacyConcerns = make([]string, len(r.PrivacyConcerns))
	copy(out.PrivacyConcerns, r.PrivacyConcerns)
	return out
}
