package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thinktact/internal/domain"
	"thinktact/internal/email"
	"thinktact/internal/repository"
)

var (
	ErrEmailRequired          = errors.New("email is required")
	ErrLeadServiceUnavailable = errors.New("lead capture service unavailable")
	ErrMalformedLeadResponse  = errors.New("malformed lead capture response")
)

// LeadRejectedError es un status no exitoso del endpoint de captura.
type LeadRejectedError struct {
	StatusCode int
	Message    string
}

func (e *LeadRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("lead capture rejected: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("lead capture rejected: status=%d: %s", e.StatusCode, e.Message)
}

// LeadForwarder reenvía el lead al sistema externo y devuelve su respuesta.
type LeadForwarder interface {
	Forward(ctx context.Context, email, job string) (any, error)
}

// HTTPLeadForwarder hace POST {email, industry} al endpoint configurado.
type HTTPLeadForwarder struct {
	endpoint string
	client   *http.Client
}

func NewHTTPLeadForwarder(endpoint string, timeout time.Duration) *HTTPLeadForwarder {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPLeadForwarder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (f *HTTPLeadForwarder) Forward(ctx context.Context, email, job string) (any, error) {
	body, err := json.Marshal(map[string]string{"email": email, "industry": job})
	if err != nil {
		return nil, fmt.Errorf("marshal lead: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLeadServiceUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLeadServiceUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrLeadServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &payload)
		if payload.Message == "" {
			payload.Message = "Unknown error"
		}
		return nil, &LeadRejectedError{StatusCode: resp.StatusCode, Message: payload.Message}
	}

	var data any
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrMalformedLeadResponse, err, string(respBody))
	}
	return data, nil
}

// SubmitResult es lo que devuelve la waitlist al cliente.
type SubmitResult struct {
	Message string
	Data    any
}

type WaitlistOptions struct {
	UseMock bool
	Source  string
}

// WaitlistService valida y reenvía inscripciones a la waitlist.
type WaitlistService struct {
	forwarder   LeadForwarder
	leads       repository.LeadRepository
	emailSender email.Sender
	opts        WaitlistOptions
	logger      *zap.Logger
	now         func() time.Time
}

func NewWaitlistService(
	forwarder LeadForwarder,
	leads repository.LeadRepository,
	emailSender email.Sender,
	opts WaitlistOptions,
	logger *zap.Logger,
) *WaitlistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Source == "" {
		opts.Source = "website"
	}
	return &WaitlistService{
		forwarder:   forwarder,
		leads:       leads,
		emailSender: emailSender,
		opts:        opts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit valida el email, reenvía el lead y, si hay base o SMTP, lo archiva y confirma.
func (s *WaitlistService) Submit(ctx context.Context, emailAddr, job string) (SubmitResult, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	job = strings.TrimSpace(job)
	if emailAddr == "" {
		return SubmitResult{}, ErrEmailRequired
	}

	s.logger.Info("form submission", zap.Int("email_length", len(emailAddr)), zap.String("job", job))

	if s.opts.UseMock {
		s.logger.Info("using mock response, lead endpoint not called")
		return SubmitResult{
			Message: "Your information has been submitted successfully! (Mock Response)",
			Data: map[string]string{
				"email":     emailAddr,
				"job":       job,
				"timestamp": s.now().Format(time.RFC3339Nano),
			},
		}, nil
	}

	if s.forwarder == nil {
		return SubmitResult{}, ErrLeadServiceUnavailable
	}
	data, err := s.forwarder.Forward(ctx, emailAddr, job)
	if err != nil {
		s.logger.Warn("lead forward failed", zap.Error(err))
		return SubmitResult{}, err
	}

	s.archive(ctx, emailAddr, job)
	s.confirm(ctx, emailAddr, job)

	return SubmitResult{
		Message: "Your information has been submitted successfully!",
		Data:    data,
	}, nil
}

func (s *WaitlistService) archive(ctx context.Context, emailAddr, job string) {
	if s.leads == nil {
		return
	}
	n, err := s.leads.CountByEmail(ctx, emailAddr)
	if err != nil {
		s.logger.Warn("lead lookup failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("lead already archived, skipping insert", zap.Int("previous", n))
		return
	}
	lead := domain.Lead{
		ID:        uuid.NewString(),
		Email:     emailAddr,
		Job:       job,
		Source:    s.opts.Source,
		CreatedAt: s.now(),
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		s.logger.Warn("lead archive failed", zap.Error(err), zap.String("lead_id", lead.ID))
	}
}

func (s *WaitlistService) confirm(ctx context.Context, emailAddr, job string) {
	if s.emailSender == nil {
		return
	}
	if err := s.emailSender.SendWaitlistConfirmation(ctx, emailAddr, job); err != nil {
		if errors.Is(err, email.ErrDisabled) {
			return
		}
		s.logger.Warn("waitlist confirmation email failed", zap.Error(err))
	}
}
