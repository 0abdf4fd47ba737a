package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"thinktact/internal/domain"
)

const sessionTokenIssuer = "thinktact"

// SessionTokenService emite y valida el token firmado que identifica la sesión del navegador.
type SessionTokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

var (
	ErrSessionTokenInvalid = errors.New("session token invalid")
	ErrSessionTokenExpired = errors.New("session token expired")
)

func NewSessionTokenService(secret string, ttl time.Duration) *SessionTokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: sessionTokenIssuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TTL devuelve la vida del token, usada también como Max-Age de la cookie.
func (s *SessionTokenService) TTL() time.Duration {
	return s.ttl
}

// Issue crea una sesión nueva y su token firmado.
func (s *SessionTokenService) Issue() (domain.Session, string, error) {
	if len(s.secret) == 0 {
		return domain.Session{}, "", ErrSessionTokenInvalid
	}
	now := s.now()
	session := domain.Session{
		ID:        uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	claims := SessionClaims{
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   session.ID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return domain.Session{}, "", err
	}
	return session, signed, nil
}

// Parse valida el token y reconstruye la sesión.
func (s *SessionTokenService) Parse(tokenString string) (domain.Session, error) {
	if len(s.secret) == 0 {
		return domain.Session{}, ErrSessionTokenInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return domain.Session{}, ErrSessionTokenInvalid
	}

	var claims SessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Session{}, ErrSessionTokenExpired
		}
		return domain.Session{}, ErrSessionTokenInvalid
	}
	if !s.isValidClaims(claims) {
		return domain.Session{}, ErrSessionTokenInvalid
	}

	session := domain.Session{ID: claims.SessionID}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return session, nil
}

func (s *SessionTokenService) isValidClaims(claims SessionClaims) bool {
	if strings.TrimSpace(claims.SessionID) == "" {
		return false
	}
	if claims.Subject != claims.SessionID {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
