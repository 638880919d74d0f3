// Package ai abstracts the interchangeable model backends behind one
// contract and post-processes their output.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrUnavailable wraps any network, timeout, or malformed-response
	// condition from a backend. It is never retried at this layer.
	ErrUnavailable = errors.New("ai provider unavailable")

	// ErrNotConfigured is returned when a backend misses required
	// connection parameters.
	ErrNotConfigured = errors.New("ai provider not configured")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Response carries the model's text plus the raw payload kept for
// diagnostics. It is consumed and discarded after citation extraction.
type Response struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// Message is one turn of a chat exchange sent to a backend.
type Message struct {
	Role    string
	Content string
}

// Options are the per-call generation parameters. Backends apply the subset
// their API supports.
type Options struct {
	Temperature     float32
	TopK            int
	TopP            float32
	MaxOutputTokens int
}

// Provider is the uniform contract over model backends. IsConfigured is a
// synchronous parameter check; TestConnection performs one live round-trip
// and swallows every error into false.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts Options) (*Response, error)
	Chat(ctx context.Context, messages []Message, opts Options) (*Response, error)
	IsConfigured() bool
	TestConnection(ctx context.Context) bool
	RequiresRemoteCredentials() bool
}

// sanitizeText repairs malformed UTF-8 byte sequences by replacement instead
// of failing; model output is not trusted to be well-formed.
func sanitizeText(s string) string {
	return strings.ToValidUTF8(s, "�")
}
