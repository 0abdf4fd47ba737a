package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"thinktact/internal/llm"
	"thinktact/internal/service"
)

const (
	msgQuotaExceeded     = "API quota exceeded. Please try again later or contact support."
	msgQuotaExceededInfo = "Our API usage limit has been reached. The team has been notified."
	msgAuthError         = "Authentication error. Please check API configuration."
	msgAuthErrorInfo     = "There was an issue with our API authentication. The team has been notified."
	msgAnalysisFailed    = "An error occurred during analysis"
	msgAnalysisFailedTry = "Something went wrong while analyzing your argument. Please try again later."
	msgVendorError       = "Error calling Mistral API"
)

func quotaExceededBody() gin.H {
	return gin.H{
		"error":   msgQuotaExceeded,
		"message": msgQuotaExceededInfo,
		"status":  http.StatusTooManyRequests,
	}
}

// analysisErrorResponse traduce un error del LLM al status y envelope de la API.
func analysisErrorResponse(err error) (int, gin.H) {
	switch status := llm.StatusCode(err); {
	case status == http.StatusTooManyRequests:
		return http.StatusTooManyRequests, quotaExceededBody()
	case status == http.StatusUnauthorized:
		return http.StatusUnauthorized, gin.H{
			"error":   msgAuthError,
			"message": msgAuthErrorInfo,
			"status":  http.StatusUnauthorized,
		}
	case status != 0:
		var apiErr *llm.APIError
		message := "Unknown API error"
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			message = apiErr.Message
		}
		return http.StatusInternalServerError, gin.H{
			"error":   msgVendorError,
			"message": message,
			"status":  http.StatusInternalServerError,
		}
	}

	if errors.Is(err, service.ErrEmptyArgument) {
		return http.StatusBadRequest, gin.H{
			"error":  "Argument text is required",
			"status": http.StatusBadRequest,
		}
	}
	return http.StatusInternalServerError, gin.H{
		"error":   msgAnalysisFailed,
		"message": msgAnalysisFailedTry,
		"status":  http.StatusInternalServerError,
	}
}

func writeAnalysisError(c *gin.Context, err error) {
	status, body := analysisErrorResponse(err)
	c.JSON(status, body)
}

// userFacingAnalysisError es el texto que ven las páginas HTML ante un fallo del análisis.
func userFacingAnalysisError(err error) string {
	switch llm.StatusCode(err) {
	case http.StatusTooManyRequests:
		return msgQuotaExceeded
	case http.StatusUnauthorized:
		return msgAuthError
	}
	return msgAnalysisFailedTry
}
