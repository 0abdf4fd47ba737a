package domain

import "time"

// Lead es una inscripción a la waitlist.
type Lead struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Job       string    `json:"job,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
