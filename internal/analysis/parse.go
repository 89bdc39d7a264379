package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// rawExcerptLimit bounds how much raw model output is echoed back in a
// fallback summary.
const rawExcerptLimit = 200

// defaultThreatConfidence is used when the model omits a per-threat
// confidence value.
const defaultThreatConfidence = 0.5

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// ParseModelResponse turns raw reasoning-model output into a bounded Result.
//
// Models are instructed to return bare JSON but routinely wrap it in a
// fenced code block anyway, so the fence is stripped before decoding.
// Any decode or coercion failure yields a safe zero-risk result carrying
// an excerpt of the raw text for diagnosis; a broken model response is
// never treated as a threat signal.
func ParseModelResponse(raw, url string) Result {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpen.ReplaceAllString(cleaned, "")
		cleaned = fenceClose.ReplaceAllString(cleaned, "")
	}

	res, err := decodeModelPayload(cleaned, url)
	if err != nil {
		return SafeResult(url, fmt.Sprintf("Model response could not be parsed. Raw output: %s", Truncate(raw, rawExcerptLimit)))
	}
	return res
}

func decodeModelPayload(cleaned, url string) (Result, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return Result{}, fmt.Errorf("decode model payload: %w", err)
	}

	score, err := asInt(payload["risk_score"], 0)
	if err != nil {
		return Result{}, err
	}
	isSafe, err := asBool(payload["is_safe"], true)
	if err != nil {
		return Result{}, err
	}
	summary, err := asString(payload["ai_summary"], "")
	if err != nil {
		return Result{}, err
	}
	concerns, err := asStringSlice(payload["privacy_concerns"])
	if err != nil {
		return Result{}, err
	}
	isPhishing, err := asBool(payload["is_phishing"], false)
	if err != nil {
		return Result{}, err
	}
	phishingConf, err := asFloat(payload["phishing_confidence"], 0)
	if err != nil {
		return Result{}, err
	}
	impersonating, err := asString(payload["impersonating"], "")
	if err != nil {
		return Result{}, err
	}
	threats, err := asThreats(payload["threats"])
	if err != nil {
		return Result{}, err
	}

	return Result{
		URL:                url,
		RiskScore:          clampScore(score),
		IsSafe:             isSafe,
		Threats:            threats,
		Summary:            summary,
		PrivacyConcerns:    concerns,
		IsPhishing:         isPhishing,
		PhishingConfidence: phishingConf,
		Impersonating:      impersonating,
	}, nil
}

func asThreats(v any) ([]Threat, error) {
	if v == nil {
		return []Threat{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("threats is not a list")
	}

	threats := make([]Threat, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("threat entry is not an object")
		}
		typ, err := asString(obj["type"], ThreatUnknown)
		if err != nil {
			return nil, err
		}
		severity, err := asString(obj["severity"], SeverityMedium)
		if err != nil {
			return nil, err
		}
		description, err := asString(obj["description"], "")
		if err != nil {
			return nil, err
		}
		confidence, err := asFloat(obj["confidence"], defaultThreatConfidence)
		if err != nil {
			return nil, err
		}
		threats = append(threats, Threat{
			Type:        typ,
			Severity:    severity,
			Description: description,
			Confidence:  confidence,
		})
	}
	return threats, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func asInt(v any, def int) (int, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case float64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("coerce %q to int: %w", t, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("coerce %T to int", v)
	}
}

func asFloat(v any, def float64) (float64, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("coerce %q to float: %w", t, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("coerce %T to float", v)
	}
}

func asBool(v any, def bool) (bool, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case bool:
		return t, nil
	default:
		return false, fmt.Errorf("coerce %T to bool", v)
	}
}

func asString(v any, def string) (string, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("coerce %T to string", v)
	}
}

func asStringSlice(v any) ([]string, error) {
	if v == nil {
		return []string{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of strings, got %T", v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string element, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// Truncate caps s at max characters.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
