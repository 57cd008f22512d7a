// Package llm is the provider gateway: it selects a live completion backend
// for a run, bounds and retries each call, and degrades to a deterministic
// mock when no usable credential exists or a live call keeps failing.
package llm

import (
	"context"
	"strings"
)

// ProviderID names a completion backend.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGemini    ProviderID = "gemini"
	ProviderMock      ProviderID = "mock"
)

// Providers lists the live providers in display order.
var Providers = []ProviderID{ProviderOpenAI, ProviderAnthropic, ProviderGemini}

// ProviderChoices lists the accepted provider ids, live ones first, for
// help text and validation errors.
func ProviderChoices() string {
	names := make([]string, 0, len(Providers)+1)
	for _, p := range Providers {
		names = append(names, string(p))
	}
	return strings.Join(append(names, string(ProviderMock)), ", ")
}

// DisplayName returns the label shown to users.
func (p ProviderID) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI GPT-4"
	case ProviderAnthropic:
		return "Anthropic Claude"
	case ProviderGemini:
		return "Google Gemini"
	default:
		return "Mock"
	}
}

// DefaultModel returns the model used when no override is configured.
func (p ProviderID) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4"
	case ProviderAnthropic:
		return "claude-3-sonnet-20240229"
	case ProviderGemini:
		return "gemini-pro"
	default:
		return "mock"
	}
}

// ParseProvider accepts a provider id or display name in any case. The
// boolean is false when s named no known provider; the mock is returned
// in that case.
func ParseProvider(s string) (ProviderID, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "" || v == "mock":
		return ProviderMock, true
	case v == "openai" || strings.HasPrefix(v, "openai "):
		return ProviderOpenAI, true
	case v == "anthropic" || v == "claude" || strings.HasPrefix(v, "anthropic "):
		return ProviderAnthropic, true
	case v == "gemini" || v == "google" || strings.HasPrefix(v, "google "):
		return ProviderGemini, true
	default:
		return ProviderMock, false
	}
}

var placeholderKeys = map[string]bool{
	"your-openai-key-here":     true,
	"your-anthropic-key-here":  true,
	"your-google-api-key-here": true,
	"your-api-key-here":        true,
	"sk-...":                   true,
}

// UsableCredential reports whether key looks like a real credential: it is
// non-empty and not one of the template placeholders.
func UsableCredential(key string) bool {
	k := strings.TrimSpace(key)
	return k != "" && !placeholderKeys[strings.ToLower(k)]
}

// Completer turns a prompt into text. One implementation exists per
// provider plus the mock.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}
