// Package provider abstracts the reasoning-model backends PageGuard can
// dispatch analyses to. Exactly one backend is selected at construction
// time; callers never branch on the provider kind.
package provider

import "context"

// Generation settings shared by every backend. Kept low and capped to
// bound cost and latency per analysis.
const (
	Temperature     = 0.1
	MaxOutputTokens = 1024
)

// Provider is the interface for all upstream reasoning-model backends.
type Provider interface {
	// Complete sends the system instruction and user prompt to the
	// backend and returns its raw text output.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Ping issues a minimal low-cost request to verify the backend is
	// reachable with the configured credential.
	Ping(ctx context.Context) error
}
