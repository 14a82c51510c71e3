package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
)

func geminiConfig(url string) config.AIConfig {
	return config.AIConfig{
		Provider:    "gemini",
		GeminiKey:   "test-key-123",
		GeminiModel: "gemini-test",
		GeminiURL:   url,
		Timeout:     5 * time.Second,
		MaxAttempts: 2,
	}
}

func TestGeminiComplete(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		want       string
		wantErr    error
		wantStatus int
	}{
		{
			name: "concatenates_parts_of_first_candidate",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
				assert.Equal(t, "test-key-123", r.URL.Query().Get("key"))

				var req geminiRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				require.Len(t, req.Contents, 1)
				require.Len(t, req.Contents[0].Parts, 1)
				assert.Equal(t, "fix this", req.Contents[0].Parts[0].Text)

				_, _ = w.Write([]byte(`{"candidates":[
					{"content":{"parts":[{"text":"const a = 1;\n"},{"text":"module.exports = a;"}]}},
					{"content":{"parts":[{"text":"ignored"}]}}
				]}`))
			},
			want: "const a = 1;\nmodule.exports = a;",
		},
		{
			name: "no_candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
			},
			wantErr: ErrNoResult,
		},
		{
			name: "candidate_without_parts",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[{"content":{},"finishReason":"MAX_TOKENS"}]}`))
			},
			wantErr: ErrNoResult,
		},
		{
			name: "whitespace_only_text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" \n"}]}}]}`))
			},
			wantErr: ErrNoResult,
		},
		{
			name: "client_error_is_not_retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"message":"bad key test-key-123"}}`))
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			g := NewGemini(geminiConfig(srv.URL))
			got, err := g.Complete(context.Background(), "fix this")

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantStatus != 0:
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantStatus, se.Code)
				assert.False(t, se.Retryable())
				assert.NotContains(t, err.Error(), "test-key-123")
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGeminiRetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	got, err := NewGemini(geminiConfig(srv.URL)).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGeminiTransportErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := geminiConfig(url)
	cfg.MaxAttempts = 1
	_, err := NewGemini(cfg).Complete(context.Background(), "p")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "test-key-123")
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/generate":
			var req ollamaRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "codellama", req.Model)
			assert.Equal(t, "fix this", req.Prompt)
			assert.False(t, req.Stream)
			_, _ = w.Write([]byte(`{"response":"fixed code","done":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o := NewOllama(config.AIConfig{OllamaURL: srv.URL + "/", OllamaModel: "codellama", MaxAttempts: 1})
	assert.True(t, o.IsAvailable(context.Background()))

	got, err := o.Complete(context.Background(), "fix this")
	require.NoError(t, err)
	assert.Equal(t, "fixed code", got)
}

func TestOllamaEmptyResponseIsNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"","done":true}`))
	}))
	defer srv.Close()

	o := NewOllama(config.AIConfig{OllamaURL: srv.URL, MaxAttempts: 1})
	_, err := o.Complete(context.Background(), "fix this")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestNew(t *testing.T) {
	_, err := New(config.AIConfig{Provider: "gemini"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = New(config.AIConfig{Provider: "openai"})
	assert.ErrorContains(t, err, "unsupported AI provider")

	b, err := New(config.AIConfig{Provider: "ollama", BreakerFailures: 3})
	require.NoError(t, err)
	assert.Equal(t, "ollama", b.Name())

	b, err = New(config.AIConfig{Provider: "gemini", GeminiKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", b.Name())
}

type stubBackend struct {
	calls int
	err   error
}

func (s *stubBackend) Name() string                     { return "stub" }
func (s *stubBackend) IsAvailable(context.Context) bool { return true }
func (s *stubBackend) Complete(context.Context, string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "out", nil
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubBackend{err: errors.New("connection refused")}
	b := WithBreaker(stub, 2)

	for i := 0; i < 2; i++ {
		_, err := b.Complete(context.Background(), "p")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBreakerOpen)
	}

	_, err := b.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 2, stub.calls, "open circuit must not reach the backend")
	assert.False(t, b.IsAvailable(context.Background()))
}

func TestBreakerIgnoresNoResult(t *testing.T) {
	stub := &stubBackend{err: ErrNoResult}
	b := WithBreaker(stub, 1)

	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), "p")
		assert.ErrorIs(t, err, ErrNoResult)
	}
	assert.Equal(t, 3, stub.calls)
}

func TestTracingPassesThrough(t *testing.T) {
	stub := &stubBackend{}
	got, err := WithTracing(stub).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "out", got)

	stub.err = ErrNoResult
	_, err = WithTracing(stub).Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNoResult)
}
