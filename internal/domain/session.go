package domain

import "time"

// Session es el objeto de sesión que viaja en el contexto del request.
type Session struct {
	ID        string    `json:"id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Transcript agrupa los mensajes de una sesión en orden cronológico.
type Transcript struct {
	SessionID string              `json:"session_id"`
	Messages  []TranscriptMessage `json:"messages"`
}

// Last devuelve el mensaje más reciente, si existe.
func (t Transcript) Last() (TranscriptMessage, bool) {
	if len(t.Messages) == 0 {
		return TranscriptMessage{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

// Expired indica si pasó más de ttl desde el último mensaje.
func (t Transcript) Expired(now time.Time, ttl time.Duration) bool {
	last, ok := t.Last()
	if !ok {
		return false
	}
	return now.UnixMilli()-last.Timestamp > ttl.Milliseconds()
}
