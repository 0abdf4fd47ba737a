package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para el envío de correos transaccionales.
type Sender interface {
	SendWaitlistConfirmation(ctx context.Context, toEmail, job string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendWaitlistConfirmation(_ context.Context, _, _ string) error {
	if s.reason == "" {
		return ErrDisabled
	}
	return errors.Join(ErrDisabled, errors.New(s.reason))
}

// ErrDisabled indica que no hay SMTP configurado.
var ErrDisabled = errors.New("email sender disabled")
