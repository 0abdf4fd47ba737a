package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thinktact/internal/service"
)

const maxWebhookBodyBytes = int64(65536)

// PaymentHandler expone el checkout de Stripe y el webhook.
type PaymentHandler struct {
	logger   *zap.Logger
	payments *service.PaymentService
}

func NewPaymentHandler(logger *zap.Logger, payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{logger: logger, payments: payments}
}

// Checkout maneja POST /api/checkout.
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var req struct {
		PriceID    string `json:"priceId"`
		PlanName   string `json:"planName"`
		SuccessURL string `json:"successUrl"`
		CancelURL  string `json:"cancelUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid checkout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing required parameters"})
		return
	}

	session, err := h.payments.CreateCheckout(c.Request.Context(), service.CheckoutRequest{
		PriceID:    req.PriceID,
		PlanName:   req.PlanName,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		writePaymentError(c, err, "Failed to create checkout session")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// CheckoutSession maneja GET /api/checkout/session?sessionId=.
func (h *PaymentHandler) CheckoutSession(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		sessionID = c.Query("session_id")
	}

	session, err := h.payments.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writePaymentError(c, err, "Failed to retrieve checkout session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "session": session})
}

// Webhook maneja POST /api/webhook. Se verifica la firma sobre el body crudo.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Warn("read webhook body failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Webhook handler failed"})
		return
	}

	event, err := h.payments.HandleWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, service.ErrWebhookSecretMissing) {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Webhook secret is not configured"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Webhook handler failed"})
		return
	}

	h.logger.Debug("webhook processed", zap.String("event_id", event.ID))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func writePaymentError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrMissingCheckoutParams):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing required parameters"})
	case errors.Is(err, service.ErrInvalidPriceID):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid price ID. Please check your Stripe configuration."})
	case errors.Is(err, service.ErrSessionIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Session ID is required"})
	case errors.Is(err, service.ErrPaymentsNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Payments are not configured"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   fallback,
			"message": err.Error(),
		})
	}
}
