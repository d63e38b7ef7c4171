package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuongbtq/trendrider/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGeminiClient(GeminiOptions{APIKey: "test-key", BaseURL: srv.URL}, logger.NewDiscard())
}

func TestGeminiClient_EditImage(t *testing.T) {
	edited := []byte("edited-bytes")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/"+defaultModel+":generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Equal(t, "image/png", req.Contents[0].Parts[0].InlineData.MimeType)
		assert.Equal(t, base64.StdEncoding.EncodeToString(pngHeader), req.Contents[0].Parts[0].InlineData.Data)
		assert.Equal(t, "make it vintage", req.Contents[0].Parts[1].Text)
		assert.Equal(t, []string{"IMAGE"}, req.GenerationConfig.ResponseModalities)

		_ = json.NewEncoder(w).Encode(geminiResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{
				{Text: "Here is your photo"},
				{InlineData: &geminiInlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(edited)}},
			}},
		}}})
	})

	// empty mime type is sniffed from the bytes
	result, err := client.EditImage(context.Background(), pngHeader, "", "make it vintage")
	require.NoError(t, err)
	assert.Equal(t, edited, result.Data)
	assert.Equal(t, "image/jpeg", result.MimeType)
	assert.Equal(t, "Here is your photo", result.Text)
	assert.Contains(t, result.Raw, `"text":"Here is your photo"`)
	assert.Contains(t, result.Raw, `"data":"<16 base64 chars>"`)
	assert.NotContains(t, result.Raw, base64.StdEncoding.EncodeToString(edited))
	assert.Equal(t, "gemini", result.Provider)
	assert.Equal(t, defaultModel, result.Model)
	assert.False(t, result.Mock)
}

func TestGeminiClient_Failures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		kind      Kind
		retryable bool
	}{
		{
			name: "non-2xx is rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad image","status":"INVALID_ARGUMENT"}}`))
			},
			kind: KindProviderRejected,
		},
		{
			name: "server error is rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			kind: KindProviderRejected,
		},
		{
			name: "malformed body is rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates": [`))
			},
			kind: KindProviderRejected,
		},
		{
			name: "text only response has no image",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"I cannot edit this"}]},"finishReason":"STOP"}]}`))
			},
			kind: KindNoImageReturned,
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[]}`))
			},
			kind: KindNoImageReturned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			result, err := client.EditImage(context.Background(), []byte("img"), "image/jpeg", "x")
			require.Error(t, err)
			assert.Nil(t, result)

			genErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, genErr.Kind)
			assert.Equal(t, tt.retryable, genErr.Retryable())
			assert.Contains(t, err.Error(), string(tt.kind))
		})
	}
}

func TestGeminiClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewGeminiClient(GeminiOptions{APIKey: "k", BaseURL: url, Timeout: time.Second}, logger.NewDiscard())
	_, err := client.EditImage(context.Background(), []byte("img"), "image/jpeg", "x")

	genErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindProviderUnavailable, genErr.Kind)
	assert.True(t, genErr.Retryable())
}

func TestGeminiClient_NotConfigured(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	client := NewGeminiClient(GeminiOptions{BaseURL: srv.URL}, logger.NewDiscard())
	_, err := client.EditImage(context.Background(), []byte("img"), "image/jpeg", "x")

	genErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindProviderUnavailable, genErr.Kind)
	assert.Equal(t, ReasonNotConfigured, genErr.Reason)
	assert.False(t, genErr.Retryable())
	assert.Zero(t, calls)
}

func TestGeminiClient_RateLimitHonorsContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"aGk="}}]}}]}`))
	})
	client.limiter = nil
	_, err := client.EditImage(context.Background(), []byte("img"), "image/jpeg", "x")
	require.NoError(t, err)

	limited := NewGeminiClient(GeminiOptions{APIKey: "k", RateLimit: 0.001, RateBurst: 1}, logger.NewDiscard())
	// consume the single burst token
	require.True(t, limited.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.EditImage(ctx, []byte("img"), "image/jpeg", "x")

	genErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindProviderUnavailable, genErr.Kind)
}

func TestMockClient_EchoesInput(t *testing.T) {
	client := NewMockClient(logger.NewDiscard())

	result, err := client.EditImage(context.Background(), pngHeader, "", "anything")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, result.Data)
	assert.Equal(t, "image/png", result.MimeType)
	assert.True(t, result.Mock)
}

func TestNew_SelectsClient(t *testing.T) {
	log := logger.NewDiscard()

	_, isMock := New(GeminiOptions{}, "development", log).(*MockClient)
	assert.True(t, isMock)

	_, isGemini := New(GeminiOptions{}, "production", log).(*GeminiClient)
	assert.True(t, isGemini)

	_, isGemini = New(GeminiOptions{APIKey: "k"}, "development", log).(*GeminiClient)
	assert.True(t, isGemini)
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindProviderRejected, StatusCode: 400, Reason: "bad"}
	assert.Equal(t, "provider_rejected: bad (status 400)", err.Error())
}

func TestRawSummary(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "elides nested inline data",
			raw:  `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"QUJD"}}]}}],"usageMetadata":{"totalTokenCount":7}}`,
			want: `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"<4 base64 chars>","mimeType":"image/png"}}]}}],"usageMetadata":{"totalTokenCount":7}}`,
		},
		{
			name: "non json body kept as is",
			raw:  "upstream says hi",
			want: "upstream says hi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rawSummary([]byte(tt.raw)))
		})
	}

	long := `{"text":"` + strings.Repeat("a", 2*maxRawResponseBytes) + `"}`
	assert.Len(t, rawSummary([]byte(long)), maxRawResponseBytes)
}
