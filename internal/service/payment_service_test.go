package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

type mockPaymentGateway struct {
	lastParams *stripe.CheckoutSessionParams
	lastID     string
	session    *stripe.CheckoutSession
	err        error
}

func (m *mockPaymentGateway) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	m.lastParams = params
	return m.session, m.err
}

func (m *mockPaymentGateway) GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	m.lastID = id
	m.lastParams = params
	return m.session, m.err
}

func TestPaymentServiceCreateCheckout(t *testing.T) {
	gw := &mockPaymentGateway{session: &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}}
	svc := NewPaymentService(gw, "", zap.NewNop())

	session, err := svc.CreateCheckout(context.Background(), CheckoutRequest{
		PriceID:    "price_pro",
		PlanName:   "Professional",
		SuccessURL: "https://thinktact.ai/checkout/success",
		CancelURL:  "https://thinktact.ai/checkout/cancel",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session.ID != "cs_test_1" {
		t.Fatalf("unexpected session %+v", session)
	}

	p := gw.lastParams
	if *p.Mode != "subscription" {
		t.Fatalf("expected subscription mode, got %s", *p.Mode)
	}
	if *p.SuccessURL != "https://thinktact.ai/checkout/success?session_id={CHECKOUT_SESSION_ID}" {
		t.Fatalf("unexpected success url %s", *p.SuccessURL)
	}
	if len(p.LineItems) != 1 || *p.LineItems[0].Price != "price_pro" || *p.LineItems[0].Quantity != 1 {
		t.Fatalf("unexpected line items %+v", p.LineItems)
	}
	if len(p.PaymentMethodTypes) != 1 || *p.PaymentMethodTypes[0] != "card" {
		t.Fatalf("expected card payment method")
	}
	if p.Metadata["planName"] != "Professional" {
		t.Fatalf("expected planName metadata, got %+v", p.Metadata)
	}
}

func TestPaymentServiceCreateCheckoutValidation(t *testing.T) {
	gw := &mockPaymentGateway{}
	svc := NewPaymentService(gw, "", zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CreateCheckout(ctx, CheckoutRequest{PriceID: "price_x", SuccessURL: "s"}); !errors.Is(err, ErrMissingCheckoutParams) {
		t.Fatalf("expected ErrMissingCheckoutParams, got %v", err)
	}
	if _, err := svc.CreateCheckout(ctx, CheckoutRequest{PriceID: "prod_x", SuccessURL: "s", CancelURL: "c"}); !errors.Is(err, ErrInvalidPriceID) {
		t.Fatalf("expected ErrInvalidPriceID, got %v", err)
	}
	if gw.lastParams != nil {
		t.Fatalf("expected gateway not called")
	}

	unconfigured := NewPaymentService(nil, "", zap.NewNop())
	if _, err := unconfigured.CreateCheckout(ctx, CheckoutRequest{PriceID: "price_x", SuccessURL: "s", CancelURL: "c"}); !errors.Is(err, ErrPaymentsNotConfigured) {
		t.Fatalf("expected ErrPaymentsNotConfigured, got %v", err)
	}

	failing := NewPaymentService(&mockPaymentGateway{err: errors.New("card declined")}, "", zap.NewNop())
	if _, err := failing.CreateCheckout(ctx, CheckoutRequest{PriceID: "price_x", SuccessURL: "s", CancelURL: "c"}); err == nil {
		t.Fatalf("expected gateway error")
	}
}

func TestPaymentServiceGetSessionExpands(t *testing.T) {
	gw := &mockPaymentGateway{session: &stripe.CheckoutSession{ID: "cs_test_2"}}
	svc := NewPaymentService(gw, "", zap.NewNop())

	if _, err := svc.GetSession(context.Background(), ""); !errors.Is(err, ErrSessionIDRequired) {
		t.Fatalf("expected ErrSessionIDRequired, got %v", err)
	}
	if _, err := svc.GetSession(context.Background(), "cs_test_2"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gw.lastID != "cs_test_2" {
		t.Fatalf("unexpected id %q", gw.lastID)
	}
	expand := map[string]bool{}
	for _, e := range gw.lastParams.Expand {
		expand[*e] = true
	}
	for _, want := range []string{"customer", "line_items", "payment_intent"} {
		if !expand[want] {
			t.Fatalf("expected %s expanded, got %v", want, expand)
		}
	}
}

func TestPaymentServiceHandleWebhook(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`)

	t.Run("missing secret", func(t *testing.T) {
		svc := NewPaymentService(nil, "", zap.NewNop())
		if _, err := svc.HandleWebhook(payload, "t=1,v1=abc"); !errors.Is(err, ErrWebhookSecretMissing) {
			t.Fatalf("expected ErrWebhookSecretMissing, got %v", err)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		svc := NewPaymentService(nil, "whsec_test", zap.NewNop())
		if _, err := svc.HandleWebhook(payload, "t=1,v1=abc"); !errors.Is(err, ErrWebhookVerificationFail) {
			t.Fatalf("expected ErrWebhookVerificationFail, got %v", err)
		}
	})

	t.Run("valid signature", func(t *testing.T) {
		svc := NewPaymentService(nil, "whsec_test", zap.NewNop())
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_test"})

		event, err := svc.HandleWebhook(payload, signed.Header)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.ID != "evt_1" || string(event.Type) != "invoice.paid" {
			t.Fatalf("unexpected event %+v", event)
		}
	})
}

func TestIsValidPriceID(t *testing.T) {
	if !IsValidPriceID("price_123") || IsValidPriceID("prod_123") || IsValidPriceID("") {
		t.Fatalf("unexpected price id validation")
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := map[int64]string{
		0:         "$0.00",
		5:         "$0.05",
		9900:      "$99.00",
		29900:     "$299.00",
		123456789: "$1,234,567.89",
		-250:      "-$2.50",
	}
	for cents, want := range cases {
		if got := FormatCurrency(cents); got != want {
			t.Fatalf("FormatCurrency(%d): want %q, got %q", cents, want, got)
		}
	}
}
