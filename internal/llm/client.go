// Package llm wraps the external generative-language API behind a small
// client contract. The rest of the application only sees Generate: kind plus
// prompt in, normalized text (and optional image reference) out, with
// upstream failures classified into a typed error carrying the upstream
// HTTP status.
package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Result is a normalized generation outcome.
type Result struct {
	// Text is the generated response text; non-empty on success.
	Text string
	// ModelName identifies the generation model used, for audit/display.
	ModelName string
	// ImageURL is a synthesized placeholder image reference, set only for
	// image-description requests. It is non-authoritative: no image model
	// is ever called.
	ImageURL *string
}

// Client is the generation contract consumed by the chat service.
// Implementations must be safe for concurrent use, honor the provided
// context, and never retry on their own.
type Client interface {
	Generate(ctx context.Context, kind, prompt string) (*Result, error)
}

// UpstreamError reports a failed or unusable response from the generation
// API. Status preserves the upstream HTTP status code (or 502 for transport
// failures, timeouts, and malformed payloads) so handlers can map client
// errors 1:1 and collapse everything else into a generic gateway failure.
type UpstreamError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream generation error (status %d): %s", e.Status, e.Message)
}

// ClientFacing reports whether the upstream status should be surfaced to the
// caller unchanged (bad request, credential failure, rate limiting). All
// other statuses are reported as a generic 502.
func (e *UpstreamError) ClientFacing() bool {
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests:
		return true
	}
	return false
}
