package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash-image-preview"

	// maxResponseBytes bounds how much of a provider response is read.
	maxResponseBytes = 64 << 20

	maxRawResponseBytes = 4096
)

// GeminiOptions configures the Gemini client.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 disables limiting
	RateBurst  int
	HTTPClient *http.Client
}

// GeminiClient calls the generateContent endpoint with an inline image.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiClient builds a client. An empty API key is accepted; calls then
// fail with a not_configured error.
func NewGeminiClient(opts GeminiOptions, logger *slog.Logger) *GeminiClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &GeminiClient{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

// EditImage sends the image and instruction and returns the first inline image.
func (c *GeminiClient) EditImage(ctx context.Context, data []byte, mimeType, instruction string) (*Result, error) {
	if c.apiKey == "" {
		return nil, &Error{Kind: KindProviderUnavailable, Reason: ReasonNotConfigured}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindProviderUnavailable, Reason: "rate_limited", Err: err}
		}
	}

	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
				{Text: instruction},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE"}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindProviderUnavailable, Reason: "transport", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindProviderUnavailable, Reason: "transport", Err: err}
	}

	c.logger.Debug("Gemini response received",
		slog.String("model", c.model),
		slog.Int("status", resp.StatusCode),
		slog.Int("body_size", len(raw)),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       KindProviderRejected,
			StatusCode: resp.StatusCode,
			Err:        errors.New(errorMessage(raw)),
		}
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{Kind: KindProviderRejected, Reason: "malformed_response", Err: err}
	}

	if len(decoded.Candidates) == 0 {
		return nil, &Error{Kind: KindNoImageReturned, Reason: "no candidates"}
	}

	var texts []string
	for _, part := range decoded.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}

		image, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, &Error{Kind: KindProviderRejected, Reason: "malformed_image", Err: err}
		}

		outMime := part.InlineData.MimeType
		if outMime == "" {
			outMime = mimetype.Detect(image).String()
		}

		return &Result{
			Data:     image,
			MimeType: outMime,
			Text:     strings.Join(texts, "\n"),
			Raw:      rawSummary(raw),
			Provider: "gemini",
			Model:    c.model,
		}, nil
	}

	reason := "no inline image data"
	if fr := decoded.Candidates[0].FinishReason; fr != "" {
		reason += ", finish reason " + fr
	}
	return nil, &Error{Kind: KindNoImageReturned, Reason: reason}
}

// rawSummary renders the response body for job metadata. Inline image data
// is replaced by its length so the stored text stays small.
func rawSummary(raw []byte) string {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return truncateRaw(string(raw))
	}
	elideInlineData(doc)

	out, err := json.Marshal(doc)
	if err != nil {
		return truncateRaw(string(raw))
	}
	return truncateRaw(string(out))
}

func elideInlineData(v any) {
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			if inline, ok := child.(map[string]any); ok && key == "inlineData" {
				if data, ok := inline["data"].(string); ok {
					inline["data"] = fmt.Sprintf("<%d base64 chars>", len(data))
				}
				continue
			}
			elideInlineData(child)
		}
	case []any:
		for _, child := range node {
			elideInlineData(child)
		}
	}
}

func truncateRaw(s string) string {
	if len(s) <= maxRawResponseBytes {
		return s
	}
	return strings.ToValidUTF8(s[:maxRawResponseBytes], "")
}

func errorMessage(raw []byte) string {
	var apiErr geminiErrorResponse
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}
