package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"thinktact/internal/domain"
)

const defaultTranscriptTTL = 30 * time.Minute

var ErrMissingSession = errors.New("session id is required")

// TranscriptService aplica la ventana de inactividad sobre el transcript de la sesión.
type TranscriptService struct {
	store  TranscriptStore
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewTranscriptService(store TranscriptStore, ttl time.Duration, logger *zap.Logger) *TranscriptService {
	if store == nil {
		store = NewMemoryTranscriptStore()
	}
	if ttl <= 0 {
		ttl = defaultTranscriptTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptService{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Load devuelve el transcript vigente; si el último mensaje superó la ventana, lo descarta.
func (s *TranscriptService) Load(ctx context.Context, sessionID string) (domain.Transcript, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Transcript{}, ErrMissingSession
	}
	transcript, ok, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("get transcript: %w", err)
	}
	if !ok {
		return domain.Transcript{SessionID: sessionID}, nil
	}
	if transcript.Expired(s.now(), s.ttl) {
		s.logger.Info("session expired, starting new conversation", zap.String("session_id", sessionID))
		if err := s.store.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("delete expired transcript failed", zap.Error(err), zap.String("session_id", sessionID))
		}
		return domain.Transcript{SessionID: sessionID}, nil
	}
	transcript.SessionID = sessionID
	return transcript, nil
}

// Append agrega un mensaje con timestamp actual y renueva el TTL.
func (s *TranscriptService) Append(ctx context.Context, sessionID, role, content string) (domain.Transcript, error) {
	transcript, err := s.Load(ctx, sessionID)
	if err != nil {
		return domain.Transcript{}, err
	}
	transcript.Messages = append(transcript.Messages, domain.TranscriptMessage{
		Role:      role,
		Content:   content,
		Timestamp: s.now().UnixMilli(),
	})
	if err := s.store.Save(ctx, transcript, s.ttl); err != nil {
		return domain.Transcript{}, fmt.Errorf("save transcript: %w", err)
	}
	return transcript, nil
}

// Clear borra el transcript de la sesión.
func (s *TranscriptService) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrMissingSession
	}
	return s.store.Delete(ctx, sessionID)
}

// TTL devuelve la ventana de inactividad.
func (s *TranscriptService) TTL() time.Duration {
	return s.ttl
}
