package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thinktact/internal/domain"
	"thinktact/internal/service"
)

// AnalysisHandler expone el análisis de argumentos y el transcript de la sesión.
type AnalysisHandler struct {
	logger      *zap.Logger
	analysis    *service.AnalysisService
	transcripts *service.TranscriptService
}

func NewAnalysisHandler(logger *zap.Logger, analysis *service.AnalysisService, transcripts *service.TranscriptService) *AnalysisHandler {
	return &AnalysisHandler{
		logger:      logger,
		analysis:    analysis,
		transcripts: transcripts,
	}
}

type transcriptMessageView struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"`
	Sections  *service.Sections `json:"sections,omitempty"`
}

// Analyze maneja POST /api/analyze.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text to analyze is required", "status": http.StatusBadRequest})
		return
	}

	h.logger.Info("analyze request", zap.Int("text_length", len(req.Text)), zap.String("request_id", GetRequestID(c)))
	result, err := h.analysis.AnalyzeText(c.Request.Context(), req.Text)
	if err != nil {
		h.logger.Error("analyze failed", zap.Error(err))
		writeAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysis": result.Text})
}

// MistralAnalysis maneja POST /api/mistral-analysis.
func (h *AnalysisHandler) MistralAnalysis(c *gin.Context) {
	requestID := GetRequestID(c)
	argument, ok := h.bindArgument(c)
	if !ok {
		return
	}

	h.logger.Info("starting argument analysis", zap.String("request_id", requestID), zap.Int("text_length", len(argument)))
	h.record(c, domain.RoleUser, argument)

	result, err := h.analysis.Analyze(c.Request.Context(), argument)
	if err != nil {
		h.logger.Error("argument analysis failed", zap.String("request_id", requestID), zap.Error(err))
		writeAnalysisError(c, err)
		return
	}

	h.record(c, domain.RoleAssistant, result.Text)
	c.JSON(http.StatusOK, gin.H{
		"response":  result.Text,
		"requestId": requestID,
		"sections":  result.Sections,
	})
}

// MistralAnalysisStream maneja POST /api/mistral-analysis/stream y devuelve texto plano a medida que llega.
func (h *AnalysisHandler) MistralAnalysisStream(c *gin.Context) {
	requestID := GetRequestID(c)
	argument, ok := h.bindArgument(c)
	if !ok {
		return
	}

	h.logger.Info("starting streaming analysis", zap.String("request_id", requestID), zap.Int("text_length", len(argument)))
	h.record(c, domain.RoleUser, argument)

	stream, err := h.analysis.Stream(c.Request.Context(), argument)
	if err != nil {
		h.logger.Error("streaming analysis failed", zap.String("request_id", requestID), zap.Error(err))
		writeAnalysisError(c, err)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	var full strings.Builder
	buf := make([]byte, 4096)
	c.Stream(func(w io.Writer) bool {
		n, readErr := stream.Read(buf)
		if n > 0 {
			full.Write(buf[:n])
			if _, err := w.Write(buf[:n]); err != nil {
				return false
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				h.logger.Warn("stream interrupted", zap.String("request_id", requestID), zap.Error(readErr))
			}
			return false
		}
		return true
	})

	if full.Len() > 0 {
		h.record(c, domain.RoleAssistant, full.String())
	}
}

// MistralTest maneja GET /api/mistral-test.
func (h *AnalysisHandler) MistralTest(c *gin.Context) {
	report, err := h.analysis.CheckConnectivity(c.Request.Context())
	if err != nil {
		h.logger.Error("mistral connectivity test failed", zap.Error(err))
		status, body := analysisErrorResponse(err)
		c.JSON(status, gin.H{
			"success": false,
			"message": "Error testing Mistral API",
			"error":   body["error"],
			"status":  status,
		})
		return
	}

	models := make([]gin.H, 0, len(report.Models))
	for _, m := range report.Models {
		models = append(models, gin.H{"id": m.ID, "name": m.Name})
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Mistral API test completed successfully",
		"models":       models,
		"testResponse": report.TestResponse,
		"apiDetails": gin.H{
			"modelUsed":        report.Model,
			"promptTokens":     report.Usage.PromptTokens,
			"completionTokens": report.Usage.CompletionTokens,
			"totalTokens":      report.Usage.TotalTokens,
		},
	})
}

// GetTranscript maneja GET /api/transcript.
func (h *AnalysisHandler) GetTranscript(c *gin.Context) {
	session, ok := GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}
	transcript, err := h.transcripts.Load(c.Request.Context(), session.ID)
	if err != nil {
		h.logger.Error("load transcript failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load transcript"})
		return
	}

	messages := make([]transcriptMessageView, 0, len(transcript.Messages))
	for _, m := range transcript.Messages {
		view := transcriptMessageView{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
		if m.Role == domain.RoleAssistant {
			sections := service.FormatResponse(service.CleanLLMTextResponse(m.Content))
			view.Sections = &sections
		}
		messages = append(messages, view)
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":  session.ID,
		"messages":   messages,
		"ttlSeconds": int(h.transcripts.TTL().Seconds()),
	})
}

// ClearTranscript maneja DELETE /api/transcript.
func (h *AnalysisHandler) ClearTranscript(c *gin.Context) {
	session, ok := GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}
	if err := h.transcripts.Clear(c.Request.Context(), session.ID); err != nil {
		h.logger.Error("clear transcript failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear transcript"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AnalysisHandler) bindArgument(c *gin.Context) (string, bool) {
	var req struct {
		Argument string `json:"argument"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Argument) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Argument text is required", "status": http.StatusBadRequest})
		return "", false
	}
	return req.Argument, true
}

// record agrega un mensaje al transcript de la sesión; los fallos solo se loguean.
func (h *AnalysisHandler) record(c *gin.Context, role, content string) {
	if h.transcripts == nil {
		return
	}
	session, ok := GetSession(c)
	if !ok {
		return
	}
	if _, err := h.transcripts.Append(c.Request.Context(), session.ID, role, content); err != nil {
		h.logger.Warn("transcript append failed", zap.String("role", role), zap.Error(err))
	}
}
