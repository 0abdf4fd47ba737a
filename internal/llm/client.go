package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL     = "https://api.mistral.ai/v1"
	defaultModel       = "mistral-large-latest"
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// HTTPClient implementa Client contra una API de chat completions compatible con OpenAI (Mistral).
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando a la API de chat completions.
func NewHTTPClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		// Sin timeout global: el stream puede durar más; los cortes vienen del ctx.
		client: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       90 * time.Second,
		}},
		logger: logger,
	}
}

// Complete hace una llamada bloqueante y devuelve el primer choice.
func (c *HTTPClient) Complete(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	resp, err := c.post(ctx, c.buildRequest(messages, opts, false))
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("read response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return Completion{}, fmt.Errorf("%w: %v: %s", ErrMalformedResponse, err, string(respBody))
	}
	if len(cr.Choices) == 0 {
		return Completion{}, ErrNoChoices
	}

	return Completion{
		ID:           cr.ID,
		Model:        cr.Model,
		Content:      cr.Choices[0].Message.Content,
		FinishReason: cr.Choices[0].FinishReason,
		Usage:        cr.Usage,
	}, nil
}

// Stream devuelve el texto incremental de la respuesta como un stream de bytes.
// El stream se cierra al recibir [DONE], al terminar el body o ante un chunk inválido.
func (c *HTTPClient) Stream(ctx context.Context, messages []Message, opts Options) (io.ReadCloser, error) {
	resp, err := c.post(ctx, c.buildRequest(messages, opts, true))
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		defer resp.Body.Close()
		defer pw.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				c.logger.Warn("error in streaming response", zap.Error(err))
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if _, err := io.WriteString(pw, chunk.Choices[0].Delta.Content); err != nil {
				// El lector cerró el stream.
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.logger.Warn("error reading stream body", zap.Error(err))
		}
	}()

	return pr, nil
}

// ListModels lista los modelos disponibles para la API key.
func (c *HTTPClient) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var lr struct {
		Data []Model `json:"data"`
	}
	if err := json.Unmarshal(respBody, &lr); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrMalformedResponse, err, string(respBody))
	}
	return lr.Data, nil
}

func (c *HTTPClient) buildRequest(messages []Message, opts Options, stream bool) chatRequest {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
}

func (c *HTTPClient) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	return c.do(req)
}

// do ejecuta el request y convierte los status >= 400 en *APIError.
func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	c.logger.Warn("llm error response",
		zap.Int("status", resp.StatusCode),
		zap.String("path", req.URL.Path),
	)
	return nil, &APIError{
		StatusCode: resp.StatusCode,
		Message:    extractErrorMessage(respBody),
		Body:       string(respBody),
	}
}

// extractErrorMessage soporta el formato de Mistral ({"message": ...}) y el de OpenAI ({"error": {"message": ...}}).
func extractErrorMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	var msg string
	if len(payload.Message) > 0 && json.Unmarshal(payload.Message, &msg) == nil {
		return msg
	}
	return strings.TrimSpace(string(payload.Message))
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}
