package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"thinktact/internal/llm"
)

var ErrEmptyArgument = errors.New("argument text is required")

const analysisSystemPrompt = `You are an expert in critical thinking and argument analysis.
Your task is to analyze arguments for logical fallacies, evaluate their strength,
and provide constructive feedback. Be thorough but concise in your analysis.`

const analysisUserPrompt = `Please analyze the following %s and provide feedback on its logical structure,
identify any fallacies, evaluate its strength, and suggest improvements:

%s`

// AnalysisResult es la respuesta del LLM más su versión seccionada.
type AnalysisResult struct {
	Text     string
	Sections Sections
	Model    string
	Usage    llm.Usage
}

// ConnectivityReport resume una prueba de conectividad contra el proveedor.
type ConnectivityReport struct {
	Models       []llm.Model
	TestResponse string
	Model        string
	Usage        llm.Usage
}

// AnalysisService analiza argumentos usando el LLM.
type AnalysisService struct {
	llmClient llm.Client
	opts      llm.Options
	logger    *zap.Logger
}

func NewAnalysisService(llmClient llm.Client, opts llm.Options, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		llmClient: llmClient,
		opts:      opts,
		logger:    logger,
	}
}

// Analyze hace la llamada bloqueante y secciona la respuesta.
func (s *AnalysisService) Analyze(ctx context.Context, text string) (AnalysisResult, error) {
	return s.analyze(ctx, "argument", text)
}

// AnalyzeText es la variante de /api/analyze, con el prompt sobre "text".
func (s *AnalysisService) AnalyzeText(ctx context.Context, text string) (AnalysisResult, error) {
	return s.analyze(ctx, "text", text)
}

func (s *AnalysisService) analyze(ctx context.Context, subject, text string) (AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return AnalysisResult{}, ErrEmptyArgument
	}
	if s.llmClient == nil {
		return AnalysisResult{}, llm.ErrNotConfigured
	}

	s.logger.Info("sending analysis request", zap.Int("text_length", len(text)))
	completion, err := s.llmClient.Complete(ctx, buildAnalysisMessages(subject, text), s.opts)
	if err != nil {
		s.logger.Warn("analysis llm call failed", zap.Error(err), zap.Int("status", llm.StatusCode(err)))
		return AnalysisResult{}, fmt.Errorf("llm complete: %w", err)
	}

	cleaned := CleanLLMTextResponse(completion.Content)
	return AnalysisResult{
		Text:     completion.Content,
		Sections: FormatResponse(cleaned),
		Model:    completion.Model,
		Usage:    completion.Usage,
	}, nil
}

// Stream devuelve el texto crudo a medida que llega; el caller cierra el stream.
func (s *AnalysisService) Stream(ctx context.Context, text string) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyArgument
	}
	if s.llmClient == nil {
		return nil, llm.ErrNotConfigured
	}

	s.logger.Info("sending streaming analysis request", zap.Int("text_length", len(text)))
	stream, err := s.llmClient.Stream(ctx, buildAnalysisMessages("argument", text), s.opts)
	if err != nil {
		s.logger.Warn("analysis llm stream failed", zap.Error(err), zap.Int("status", llm.StatusCode(err)))
		return nil, fmt.Errorf("llm stream: %w", err)
	}
	return stream, nil
}

// CheckConnectivity lista modelos y pide una completion corta.
func (s *AnalysisService) CheckConnectivity(ctx context.Context) (ConnectivityReport, error) {
	if s.llmClient == nil {
		return ConnectivityReport{}, llm.ErrNotConfigured
	}

	models, err := s.llmClient.ListModels(ctx)
	if err != nil {
		return ConnectivityReport{}, fmt.Errorf("list models: %w", err)
	}

	completion, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: "Hello, can you provide a brief response to test the API?"},
	}, llm.Options{Model: s.opts.Model, Temperature: s.opts.Temperature, MaxTokens: 100})
	if err != nil {
		return ConnectivityReport{}, fmt.Errorf("test completion: %w", err)
	}

	return ConnectivityReport{
		Models:       models,
		TestResponse: completion.Content,
		Model:        completion.Model,
		Usage:        completion.Usage,
	}, nil
}

func buildAnalysisMessages(subject, text string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(analysisUserPrompt, subject, text)},
	}
}
