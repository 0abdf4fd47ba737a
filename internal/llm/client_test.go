package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "test-key", "mistral-test", 5*time.Second, zap.NewNop())
}

func TestHTTPClientComplete_Success(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "cmpl-1",
			"model": "mistral-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "**Fallacies:** none"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`)
	})

	out, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	}, Options{Temperature: 0.2, MaxTokens: 100})
	require.NoError(t, err)

	assert.Equal(t, "**Fallacies:** none", out.Content)
	assert.Equal(t, "mistral-test", out.Model)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 5, TotalTokens: 17}, out.Usage)

	assert.Equal(t, "mistral-test", got.Model)
	assert.Equal(t, 0.2, got.Temperature)
	assert.Equal(t, 100, got.MaxTokens)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestHTTPClientComplete_DefaultOptions(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	})

	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, defaultTemperature, got.Temperature)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
}

func TestHTTPClientComplete_StatusErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"quota mistral format", http.StatusTooManyRequests, `{"object":"error","message":"Requests rate limit exceeded"}`, "Requests rate limit exceeded"},
		{"auth openai format", http.StatusUnauthorized, `{"error":{"message":"Unauthorized"}}`, "Unauthorized"},
		{"server error plain body", http.StatusBadGateway, `upstream down`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.status, StatusCode(err))
		})
	}
}

func TestHTTPClientComplete_MalformedAndEmpty(t *testing.T) {
	t.Run("malformed json keeps raw body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>oops</html>`)
		})
		_, err := client.Complete(context.Background(), nil, Options{})
		require.ErrorIs(t, err, ErrMalformedResponse)
		assert.Contains(t, err.Error(), "<html>oops</html>")
	})

	t.Run("no choices", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[]}`)
		})
		_, err := client.Complete(context.Background(), nil, Options{})
		require.ErrorIs(t, err, ErrNoChoices)
	})
}

func TestHTTPClient_NotConfigured(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", "", "", time.Second, nil)
	_, err := client.Complete(context.Background(), nil, Options{})
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, 0, StatusCode(err))
}

func TestHTTPClientStream_ConcatenatesDeltas(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{"**Fallacies:** ", "", "Hasty ", "generalization"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	})

	stream, err := client.Stream(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	require.NoError(t, err)
	defer stream.Close()

	body, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "**Fallacies:** Hasty generalization", string(body))
	assert.True(t, got.Stream)
}

func TestHTTPClientStream_InvalidChunkClosesStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fmt.Fprint(w, "data: {not json\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" lost\"}}]}\n\n")
	})

	stream, err := client.Stream(context.Background(), nil, Options{})
	require.NoError(t, err)
	defer stream.Close()

	body, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "partial", string(body))
}

func TestHTTPClientStream_StatusErrorBeforeStreaming(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"message":"quota"}`)
	})

	_, err := client.Stream(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
}

func TestHTTPClientListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"mistral-large-latest","name":"Mistral Large"},{"id":"mistral-small"}]}`)
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "mistral-large-latest", models[0].ID)
	assert.Equal(t, "Mistral Large", models[0].Name)
}

func TestMockClientStreamMatchesResponse(t *testing.T) {
	m := NewMockClient()
	stream, err := m.Stream(context.Background(), nil, Options{})
	require.NoError(t, err)
	defer stream.Close()

	body, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, m.Response, string(body))
	assert.Equal(t, 1, m.Calls())
}

func TestMockClientError(t *testing.T) {
	m := &MockClient{Err: &APIError{StatusCode: http.StatusUnauthorized}}
	_, err := m.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{MaxTokens: 10})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, 10, m.LastOptions().MaxTokens)
	assert.Len(t, m.LastMessages(), 1)
}
