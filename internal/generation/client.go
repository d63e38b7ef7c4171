// Package generation adapts the external image-editing provider.
package generation

import (
	"context"
	"log/slog"
)

// Client edits an image according to a text instruction. Implementations make
// exactly one provider call per invocation and never retry internally.
type Client interface {
	EditImage(ctx context.Context, data []byte, mimeType, instruction string) (*Result, error)
}

// Result is the edited image plus what the provider said about it.
type Result struct {
	Data     []byte
	MimeType string
	// Text is any text the provider returned alongside the image.
	Text string
	// Raw is the provider response body with image payloads elided, cut to
	// maxRawResponseBytes.
	Raw      string
	Provider string
	Model    string
	Mock     bool
}

// New picks the client once at startup. Without an API key outside
// production it returns the mock; in production the Gemini client is kept so
// every call fails with a not_configured error instead of silently faking results.
func New(opts GeminiOptions, environment string, logger *slog.Logger) Client {
	if opts.APIKey != "" {
		return NewGeminiClient(opts, logger)
	}

	if environment == "production" {
		logger.Error("Gemini API key is not configured, effect jobs will fail",
			slog.String("environment", environment),
		)
		return NewGeminiClient(opts, logger)
	}

	logger.Warn("Gemini API key is not configured, using mock generation client",
		slog.String("environment", environment),
	)
	return NewMockClient(logger)
}
