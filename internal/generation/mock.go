package generation

import (
	"context"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
)

// MockClient stands in for the provider in development. It echoes the input
// image back and marks the result as simulated.
type MockClient struct {
	logger *slog.Logger
}

// NewMockClient creates a MockClient.
func NewMockClient(logger *slog.Logger) *MockClient {
	return &MockClient{logger: logger}
}

// EditImage returns a copy of data.
func (m *MockClient) EditImage(ctx context.Context, data []byte, mimeType, instruction string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindProviderUnavailable, Reason: "canceled", Err: err}
	}

	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	m.logger.Debug("Mock generation client invoked",
		slog.Int("image_size", len(data)),
		slog.Int("instruction_length", len(instruction)),
	)

	out := make([]byte, len(data))
	copy(out, data)

	return &Result{
		Data:     out,
		MimeType: mimeType,
		Text:     "Mock response: simulated image processing result",
		Raw:      "Mock response: simulated image processing result",
		Provider: "mock",
		Model:    "mock",
		Mock:     true,
	}, nil
}
