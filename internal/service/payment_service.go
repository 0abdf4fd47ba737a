package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

var (
	ErrPaymentsNotConfigured   = errors.New("payments are not configured")
	ErrMissingCheckoutParams   = errors.New("missing required parameters")
	ErrInvalidPriceID          = errors.New("invalid price id")
	ErrSessionIDRequired       = errors.New("session id is required")
	ErrWebhookSecretMissing    = errors.New("webhook secret is not configured")
	ErrWebhookVerificationFail = errors.New("webhook verification failed")
)

// PaymentGateway es el subconjunto de Stripe que usa el sitio.
type PaymentGateway interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeGateway struct {
	api *client.API
}

// NewStripeGateway crea el gateway con la secret key; sin key devuelve nil.
func NewStripeGateway(secretKey string) PaymentGateway {
	if strings.TrimSpace(secretKey) == "" {
		return nil
	}
	return &stripeGateway{api: client.New(secretKey, nil)}
}

func (g *stripeGateway) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return g.api.CheckoutSessions.New(params)
}

func (g *stripeGateway) GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return g.api.CheckoutSessions.Get(id, params)
}

// CheckoutRequest son los datos que manda la página de precios.
type CheckoutRequest struct {
	PriceID    string
	PlanName   string
	SuccessURL string
	CancelURL  string
}

// PaymentService arma sesiones de checkout y verifica webhooks de Stripe.
type PaymentService struct {
	gateway       PaymentGateway
	webhookSecret string
	logger        *zap.Logger
}

func NewPaymentService(gateway PaymentGateway, webhookSecret string, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		gateway:       gateway,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Configured indica si hay gateway de pagos.
func (s *PaymentService) Configured() bool {
	return s != nil && s.gateway != nil
}

// CreateCheckout crea una sesión de suscripción con tarjeta y cantidad 1.
func (s *PaymentService) CreateCheckout(ctx context.Context, req CheckoutRequest) (*stripe.CheckoutSession, error) {
	if strings.TrimSpace(req.PriceID) == "" || strings.TrimSpace(req.SuccessURL) == "" || strings.TrimSpace(req.CancelURL) == "" {
		return nil, ErrMissingCheckoutParams
	}
	if !IsValidPriceID(req.PriceID) {
		s.logger.Warn("invalid price id, price ids should start with 'price_'", zap.String("price_id", req.PriceID))
		return nil, ErrInvalidPriceID
	}
	if !s.Configured() {
		return nil, ErrPaymentsNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("planName", req.PlanName)

	session, err := s.gateway.NewCheckoutSession(params)
	if err != nil {
		s.logger.Error("stripe checkout error", zap.Error(err))
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return session, nil
}

// GetSession recupera una sesión con customer, line items y payment intent expandidos.
func (s *PaymentService) GetSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionIDRequired
	}
	if !s.Configured() {
		return nil, ErrPaymentsNotConfigured
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("customer")
	params.AddExpand("line_items")
	params.AddExpand("payment_intent")

	session, err := s.gateway.GetCheckoutSession(sessionID, params)
	if err != nil {
		s.logger.Error("error retrieving checkout session", zap.Error(err))
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return session, nil
}

// HandleWebhook verifica la firma y despacha el evento. Los casos conocidos solo se loguean.
func (s *PaymentService) HandleWebhook(payload []byte, signature string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		s.logger.Error("missing stripe webhook secret")
		return stripe.Event{}, ErrWebhookSecretMissing
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.logger.Warn("webhook error", zap.Error(err))
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrWebhookVerificationFail, err)
	}

	objectID := ""
	if event.Data != nil && event.Data.Object != nil {
		if id, ok := event.Data.Object["id"].(string); ok {
			objectID = id
		}
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		s.logger.Info("checkout completed", zap.String("event_id", event.ID), zap.String("session_id", objectID))
	case "invoice.paid":
		s.logger.Info("invoice paid", zap.String("event_id", event.ID), zap.String("invoice_id", objectID))
	case "customer.subscription.updated", "customer.subscription.deleted":
		s.logger.Info("subscription changed",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("subscription_id", objectID),
		)
	default:
		s.logger.Debug("unhandled webhook event", zap.String("type", string(event.Type)))
	}
	return event, nil
}

// IsValidPriceID acepta ids de precio de Stripe (prefijo price_).
func IsValidPriceID(priceID string) bool {
	return strings.HasPrefix(priceID, "price_")
}

// FormatCurrency formatea centavos como USD en-US ("$1,234.50").
func FormatCurrency(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), cents%100)
}
