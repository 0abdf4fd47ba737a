package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Client define la interfaz contra el proveedor de chat completions.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (Completion, error)
	Stream(ctx context.Context, messages []Message, opts Options) (io.ReadCloser, error)
	ListModels(ctx context.Context) ([]Model, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options son los parámetros de generación; los valores cero usan los defaults del cliente.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Completion struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`
}

type Model struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

var (
	ErrNoChoices         = errors.New("no response choices returned from llm api")
	ErrMalformedResponse = errors.New("malformed llm response")
	ErrNotConfigured     = errors.New("llm client is not initialized")
)

// APIError representa una respuesta no-2xx del proveedor.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm http error: status=%d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm http error: status=%d", e.StatusCode)
}

// StatusCode extrae el status HTTP del proveedor, o 0 si el error no viene de la API.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
