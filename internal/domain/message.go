package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// TranscriptMessage es un registro del transcript de la sesión.
// Timestamp va en milisegundos Unix.
type TranscriptMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}
