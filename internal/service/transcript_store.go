package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"thinktact/internal/domain"
)

// TranscriptStore guarda el transcript de cada sesión con expiración por TTL.
type TranscriptStore interface {
	Get(ctx context.Context, sessionID string) (domain.Transcript, bool, error)
	Save(ctx context.Context, transcript domain.Transcript, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

type memoryTranscriptEntry struct {
	transcript domain.Transcript
	expiresAt  time.Time
}

// MemoryTranscriptStore mantiene los transcripts en memoria del proceso.
type MemoryTranscriptStore struct {
	mu    sync.Mutex
	items map[string]memoryTranscriptEntry
	now   func() time.Time
}

func NewMemoryTranscriptStore() *MemoryTranscriptStore {
	return &MemoryTranscriptStore{
		items: make(map[string]memoryTranscriptEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryTranscriptStore) Get(_ context.Context, sessionID string) (domain.Transcript, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[sessionID]
	if !ok {
		return domain.Transcript{}, false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.items, sessionID)
		return domain.Transcript{}, false, nil
	}
	return cloneTranscript(entry.transcript), true, nil
}

func (s *MemoryTranscriptStore) Save(_ context.Context, transcript domain.Transcript, ttl time.Duration) error {
	if strings.TrimSpace(transcript.SessionID) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[transcript.SessionID] = memoryTranscriptEntry{
		transcript: cloneTranscript(transcript),
		expiresAt:  s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryTranscriptStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}

// Sweep elimina los transcripts vencidos y devuelve cuántos borró.
func (s *MemoryTranscriptStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// Len devuelve la cantidad de sesiones guardadas.
func (s *MemoryTranscriptStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func cloneTranscript(t domain.Transcript) domain.Transcript {
	out := domain.Transcript{SessionID: t.SessionID}
	if len(t.Messages) > 0 {
		out.Messages = make([]domain.TranscriptMessage, len(t.Messages))
		copy(out.Messages, t.Messages)
	}
	return out
}

type redisKVClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisTranscriptStore struct {
	client redisKVClient
	prefix string
}

// NewRedisTranscriptStore guarda cada transcript como JSON con TTL deslizante.
func NewRedisTranscriptStore(client *redis.Client) TranscriptStore {
	if client == nil {
		return nil
	}
	return &redisTranscriptStore{
		client: client,
		prefix: "transcript:",
	}
}

func (s *redisTranscriptStore) Get(ctx context.Context, sessionID string) (domain.Transcript, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Transcript{}, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Transcript{}, false, nil
	}
	if err != nil {
		return domain.Transcript{}, false, err
	}

	var transcript domain.Transcript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return domain.Transcript{}, false, fmt.Errorf("decode transcript: %w", err)
	}
	return transcript, true, nil
}

func (s *redisTranscriptStore) Save(ctx context.Context, transcript domain.Transcript, ttl time.Duration) error {
	if strings.TrimSpace(transcript.SessionID) == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTranscriptTTL
	}
	payload, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+transcript.SessionID, payload, ttl).Err()
}

func (s *redisTranscriptStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}
