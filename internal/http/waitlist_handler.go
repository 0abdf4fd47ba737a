package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thinktact/internal/service"
)

const (
	msgEmailRequired     = "Email is required"
	msgSubmitRejected    = "Failed to submit. Please make sure both email and industry/job title are provided and valid."
	msgSubmitUnavailable = "Unable to connect to our submission service. Please try again later."
	msgSubmitUnexpected  = "An unexpected error occurred. Please try again later."
)

// WaitlistHandler recibe inscripciones a la waitlist.
type WaitlistHandler struct {
	logger   *zap.Logger
	waitlist *service.WaitlistService
}

func NewWaitlistHandler(logger *zap.Logger, waitlist *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{logger: logger, waitlist: waitlist}
}

// Submit maneja POST /api/submit.
func (h *WaitlistHandler) Submit(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Job   string `json:"job"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid submit request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msgEmailRequired})
		return
	}

	result, err := h.waitlist.Submit(c.Request.Context(), req.Email, req.Job)
	if err != nil {
		status, body := submitErrorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("waitlist submit failed", zap.Error(err))
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": result.Message,
		"data":    result.Data,
	})
}

// submitErrorResponse traduce los errores de la waitlist al envelope {success, message, error}.
func submitErrorResponse(err error) (int, gin.H) {
	var rejected *service.LeadRejectedError
	switch {
	case errors.Is(err, service.ErrEmailRequired):
		return http.StatusBadRequest, gin.H{"success": false, "message": msgEmailRequired}
	case errors.As(err, &rejected):
		return http.StatusInternalServerError, gin.H{
			"success": false,
			"message": msgSubmitRejected,
			"error":   rejected.Message,
		}
	case errors.Is(err, service.ErrLeadServiceUnavailable), errors.Is(err, service.ErrMalformedLeadResponse):
		return http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": msgSubmitUnavailable,
			"error":   err.Error(),
		}
	default:
		return http.StatusInternalServerError, gin.H{
			"success": false,
			"message": msgSubmitUnexpected,
			"error":   err.Error(),
		}
	}
}
