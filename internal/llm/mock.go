package llm

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// MockClient permite correr sin API key y tests sin llamar a un LLM real.
type MockClient struct {
	Response     string
	StreamChunks []string
	Models       []Model
	Err          error
	// ChunkDelay simula latencia de red entre chunks.
	ChunkDelay time.Duration

	mu           sync.Mutex
	calls        int
	lastMessages []Message
	lastOptions  Options
}

// NewMockClient devuelve un mock con la respuesta de ejemplo.
func NewMockClient() *MockClient {
	return &MockClient{
		Response:     mockAnalysis,
		StreamChunks: mockStreamChunks,
		Models:       []Model{{ID: "mock-model", Name: "Mock model"}},
	}
}

func (m *MockClient) Complete(_ context.Context, messages []Message, opts Options) (Completion, error) {
	m.record(messages, opts)
	if m.Err != nil {
		return Completion{}, m.Err
	}
	return Completion{
		ID:           "mock-response-id",
		Model:        "mock-model",
		Content:      m.Response,
		FinishReason: "stop",
	}, nil
}

func (m *MockClient) Stream(ctx context.Context, messages []Message, opts Options) (io.ReadCloser, error) {
	m.record(messages, opts)
	if m.Err != nil {
		return nil, m.Err
	}
	chunks := m.StreamChunks
	if len(chunks) == 0 && m.Response != "" {
		chunks = []string{m.Response}
	}

	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		for _, chunk := range chunks {
			if m.ChunkDelay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(m.ChunkDelay):
				}
			}
			if _, err := io.WriteString(pw, chunk); err != nil {
				return
			}
		}
	}()
	return pr, nil
}

func (m *MockClient) ListModels(_ context.Context) ([]Model, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Models, nil
}

// Calls devuelve cuántas veces se pidió una completion.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastMessages devuelve los mensajes del último request.
func (m *MockClient) LastMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessages
}

// LastOptions devuelve las opciones del último request.
func (m *MockClient) LastOptions() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOptions
}

func (m *MockClient) record(messages []Message, opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMessages = messages
	m.lastOptions = opts
}

var mockStreamChunks = []string{
	"This is a mock response because the MISTRAL_API_KEY is not configured.\n\n",
	"Analysis of your argument:\n\n",
	"Your argument appears to be well-structured but could benefit from additional supporting evidence. ",
	"There are a few potential logical fallacies:\n\n",
	"1. Appeal to authority - You're relying heavily on expert opinions without explaining their reasoning\n",
	"2. False dichotomy - You present only two possible outcomes when more might exist\n",
	"3. Hasty generalization - Drawing broad conclusions from limited examples\n\n",
	"Suggestions for improvement:\n",
	"- Add specific data points to support your claims\n",
	"- Consider counterarguments and address them\n",
	"- Clarify your reasoning process more explicitly\n",
	"- Avoid absolute statements unless they can be definitively proven\n\n",
	"Overall, your argument has potential but needs refinement to be more persuasive and logically sound.",
}

var mockAnalysis = strings.Join(mockStreamChunks, "")
