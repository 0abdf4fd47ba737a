package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"thinktact/internal/domain"
)

type mockLeadRepo struct {
	created []domain.Lead
	count   int
	err     error
}

func (m *mockLeadRepo) Create(ctx context.Context, lead domain.Lead) error {
	m.created = append(m.created, lead)
	return m.err
}

func (m *mockLeadRepo) CountByEmail(ctx context.Context, email string) (int, error) {
	return m.count, nil
}

func (m *mockLeadRepo) ListRecent(ctx context.Context, limit int) ([]domain.Lead, error) {
	return m.created, nil
}

type mockEmailSender struct {
	sentTo string
	job    string
	err    error
}

func (m *mockEmailSender) SendWaitlistConfirmation(ctx context.Context, toEmail, job string) error {
	m.sentTo = toEmail
	m.job = job
	return m.err
}

type mockForwarder struct {
	data  any
	err   error
	calls int
}

func (m *mockForwarder) Forward(ctx context.Context, email, job string) (any, error) {
	m.calls++
	return m.data, m.err
}

func TestWaitlistServiceRequiresEmail(t *testing.T) {
	fwd := &mockForwarder{}
	svc := NewWaitlistService(fwd, nil, nil, WaitlistOptions{}, zap.NewNop())

	if _, err := svc.Submit(context.Background(), "  ", "Legal"); !errors.Is(err, ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
	if fwd.calls != 0 {
		t.Fatalf("expected no forward call")
	}
}

func TestWaitlistServiceMock(t *testing.T) {
	fwd := &mockForwarder{}
	svc := NewWaitlistService(fwd, nil, nil, WaitlistOptions{UseMock: true}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }

	res, err := svc.Submit(context.Background(), "lead@example.com", "Legal")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Message != "Your information has been submitted successfully! (Mock Response)" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	data, ok := res.Data.(map[string]string)
	if !ok || data["email"] != "lead@example.com" || data["job"] != "Legal" || data["timestamp"] != "2024-03-15T00:00:00Z" {
		t.Fatalf("unexpected data %+v", res.Data)
	}
	if fwd.calls != 0 {
		t.Fatalf("expected forwarder skipped in mock mode")
	}
}

func TestWaitlistServiceForwardArchivesAndConfirms(t *testing.T) {
	fwd := &mockForwarder{data: map[string]any{"id": "abc"}}
	repo := &mockLeadRepo{}
	sender := &mockEmailSender{}
	svc := NewWaitlistService(fwd, repo, sender, WaitlistOptions{}, zap.NewNop())

	res, err := svc.Submit(context.Background(), " lead@example.com ", "Education")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Message != "Your information has been submitted successfully!" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if len(repo.created) != 1 || repo.created[0].Email != "lead@example.com" || repo.created[0].Source != "website" {
		t.Fatalf("unexpected archived leads %+v", repo.created)
	}
	if sender.sentTo != "lead@example.com" || sender.job != "Education" {
		t.Fatalf("unexpected confirmation %+v", sender)
	}
}

func TestWaitlistServiceSkipsDuplicateArchive(t *testing.T) {
	fwd := &mockForwarder{data: map[string]any{}}
	repo := &mockLeadRepo{count: 1}
	sender := &mockEmailSender{}
	svc := NewWaitlistService(fwd, repo, sender, WaitlistOptions{}, zap.NewNop())

	if _, err := svc.Submit(context.Background(), "lead@example.com", "Legal"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected duplicate email not archived again, got %+v", repo.created)
	}
	if sender.sentTo != "lead@example.com" {
		t.Fatalf("expected confirmation still sent")
	}
}

func TestWaitlistServiceBestEffortSideEffects(t *testing.T) {
	fwd := &mockForwarder{data: map[string]any{}}
	repo := &mockLeadRepo{err: errors.New("db down")}
	sender := &mockEmailSender{err: errors.New("smtp down")}
	svc := NewWaitlistService(fwd, repo, sender, WaitlistOptions{}, zap.NewNop())

	if _, err := svc.Submit(context.Background(), "lead@example.com", ""); err != nil {
		t.Fatalf("expected archive/email failures to be swallowed, got %v", err)
	}
}

func TestWaitlistServiceForwardFailureSkipsArchive(t *testing.T) {
	fwd := &mockForwarder{err: &LeadRejectedError{StatusCode: 400, Message: "bad industry"}}
	repo := &mockLeadRepo{}
	svc := NewWaitlistService(fwd, repo, nil, WaitlistOptions{}, zap.NewNop())

	_, err := svc.Submit(context.Background(), "lead@example.com", "")
	var rejected *LeadRejectedError
	if !errors.As(err, &rejected) || rejected.Message != "bad industry" {
		t.Fatalf("expected LeadRejectedError, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no archive on failure")
	}
}

func TestHTTPLeadForwarder(t *testing.T) {
	t.Run("success sends email and industry", func(t *testing.T) {
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected json content type")
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = io.WriteString(w, `{"ok":true}`)
		}))
		defer srv.Close()

		data, err := NewHTTPLeadForwarder(srv.URL, time.Second).Forward(context.Background(), "a@b.c", "Legal")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got["email"] != "a@b.c" || got["industry"] != "Legal" {
			t.Fatalf("unexpected forwarded body %+v", got)
		}
		if m, ok := data.(map[string]any); !ok || m["ok"] != true {
			t.Fatalf("unexpected data %+v", data)
		}
	})

	t.Run("non-2xx carries downstream message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"industry missing"}`)
		}))
		defer srv.Close()

		_, err := NewHTTPLeadForwarder(srv.URL, time.Second).Forward(context.Background(), "a@b.c", "")
		var rejected *LeadRejectedError
		if !errors.As(err, &rejected) || rejected.StatusCode != 400 || rejected.Message != "industry missing" {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("non-2xx without json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPLeadForwarder(srv.URL, time.Second).Forward(context.Background(), "a@b.c", "")
		var rejected *LeadRejectedError
		if !errors.As(err, &rejected) || rejected.Message != "Unknown error" {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := NewHTTPLeadForwarder(url, time.Second).Forward(context.Background(), "a@b.c", "")
		if !errors.Is(err, ErrLeadServiceUnavailable) {
			t.Fatalf("expected ErrLeadServiceUnavailable, got %v", err)
		}
	})

	t.Run("malformed success body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}))
		defer srv.Close()

		_, err := NewHTTPLeadForwarder(srv.URL, time.Second).Forward(context.Background(), "a@b.c", "")
		if !errors.Is(err, ErrMalformedLeadResponse) {
			t.Fatalf("expected ErrMalformedLeadResponse, got %v", err)
		}
	})
}
