// Package llm – Gemini-backed generation client.
//
// This file implements Client on top of the official Gemini SDK
// (github.com/google/generative-ai-go). One genai.Client is created at
// startup and shared across requests; each Generate call runs under a
// bounded timeout and is never retried.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/velora-ai/chat-backend/internal/domain"
)

// Fixed sampling defaults. These are not caller-supplied; every request uses
// the same configuration bundle.
const (
	defaultTemperature     = 0.7
	defaultTopK            = 40
	defaultTopP            = 0.95
	defaultMaxOutputTokens = 1024
)

// imageDescriptionTemplate wraps image-mode prompts before sending. The
// system never calls an image model; it produces a vivid textual description
// plus a placeholder image reference.
const imageDescriptionTemplate = "Describe a vivid, detailed visual scene for the following idea: %q. " +
	"Cover colors, composition, lighting, style, and atmosphere in a way a " +
	"reader could picture the image."

// GeminiClient calls the Gemini generative-language API. It is stateless
// beyond the shared SDK client and safe for concurrent use.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration

	// now seeds placeholder image URLs; overridable in tests.
	now func() time.Time
}

// NewGeminiClient constructs a GeminiClient. The API key must already be
// validated by config; model and timeout fall back to sane defaults when
// zero-valued.
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiClient{
		client:  client,
		model:   model,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// Close releases the underlying SDK client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Generate sends prompt to the Gemini API and returns the normalized result.
// For kind = image-description the prompt is wrapped in a fixed descriptive
// template and a time-seeded placeholder image URL is attached.
//
// Failures are returned as *UpstreamError: upstream API statuses pass
// through unchanged, while timeouts, transport errors, and unusable payloads
// all report 502.
func (c *GeminiClient) Generate(ctx context.Context, kind, prompt string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(defaultTemperature)
	model.SetTopK(defaultTopK)
	model.SetTopP(defaultTopP)
	model.SetMaxOutputTokens(defaultMaxOutputTokens)

	sent := prompt
	if kind == domain.KindImageDescription {
		sent = fmt.Sprintf(imageDescriptionTemplate, prompt)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(sent))
	if err != nil {
		return nil, classify(err)
	}

	text := firstCandidateText(resp)
	if text == "" {
		return nil, &UpstreamError{
			Status:  http.StatusBadGateway,
			Message: "empty or non-text candidate in upstream response",
		}
	}

	out := &Result{Text: text, ModelName: c.model}
	if kind == domain.KindImageDescription {
		u := c.placeholderImageURL(prompt)
		out.ImageURL = &u
	}
	return out, nil
}

// placeholderImageURL synthesizes a non-authoritative, time-seeded image
// reference for image-description records.
func (c *GeminiClient) placeholderImageURL(prompt string) string {
	return fmt.Sprintf("https://image.pollinations.ai/prompt/%s?seed=%d",
		url.QueryEscape(prompt), c.now().Unix())
}

// firstCandidateText extracts the concatenated text parts of the first
// candidate, or "" when that path is absent.
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

// classify converts SDK errors into *UpstreamError. Upstream API statuses
// (carried by googleapi.Error) are preserved; a non-responding upstream
// (deadline exceeded) and transport failures report 502.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code != 0 {
		return &UpstreamError{Status: gerr.Code, Message: gerr.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Status: http.StatusBadGateway, Message: "generation request timed out"}
	}
	return &UpstreamError{Status: http.StatusBadGateway, Message: err.Error()}
}
