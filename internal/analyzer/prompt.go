package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pageguard/pageguard/internal/analysis"
)

// Prompt budget. Everything beyond these limits is dropped before the
// signal reaches the model, to keep token cost per analysis bounded.
const (
	maxPromptTextChars = 3000
	maxPromptForms     = 10
	maxPromptScripts   = 20
	maxPromptIframes   = 10
)

// buildPrompt serializes the interesting parts of a page signal into the
// user prompt. Sections with no data are omitted entirely.
func buildPrompt(sig analysis.PageSignal) string {
	parts := []string{
		"Analyze this web page for security threats:\n",
		"URL: " + sig.URL,
		"Title: " + sig.Title,
	}

	if sig.HasPasswordField {
		parts = append(parts, "NOTE: the page has a password input field")
	}

	if sig.TextContent != "" {
		parts = append(parts, "\nPage Text (truncated):\n"+analysis.Truncate(sig.TextContent, maxPromptTextChars))
	}

	if len(sig.Forms) > 0 {
		parts = append(parts, "\nForms Found: "+marshalForPrompt(capForms(sig.Forms, maxPromptForms)))
	}

	if len(sig.ExternalScripts) > 0 {
		parts = append(parts, "\nExternal Scripts: "+marshalForPrompt(capStrings(sig.ExternalScripts, maxPromptScripts)))
	}

	if len(sig.Iframes) > 0 {
		parts = append(parts, "\nIframes: "+marshalForPrompt(capStrings(sig.Iframes, maxPromptIframes)))
	}

	if len(sig.MetaTags) > 0 {
		parts = append(parts, "\nMeta Tags: "+marshalForPrompt(sig.MetaTags))
	}

	return strings.Join(parts, "\n")
}

func capForms(forms []analysis.FormDescriptor, max int) []analysis.FormDescriptor {
	if len(forms) > max {
		return forms[:max]
	}
	return forms
}

func capStrings(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}

func marshalForPrompt(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Page signals are plain data; this only fires on a programming
		// error, and the model still gets something readable.
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
