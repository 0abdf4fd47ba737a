package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"thinktact/internal/domain"
	"thinktact/internal/service"
)

const (
	requestIDHeader   = "X-Request-ID"
	requestIDKey      = "request_id"
	sessionContextKey = "session"
	sessionIssuedKey  = "session_issued"
	sessionCookieName = "thinktact_session"
)

// zapLoggerMiddleware loguea cada request con su request id.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()

		latency := time.Since(start)
		logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// GetRequestID devuelve el id asignado por el middleware de logging.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// SessionMiddleware lee la cookie de sesión; si falta o no es válida emite una nueva.
func SessionMiddleware(tokens *service.SessionTokenService, secureCookie bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.Next()
			return
		}

		if raw, err := c.Cookie(sessionCookieName); err == nil && raw != "" {
			session, err := tokens.Parse(raw)
			if err == nil {
				c.Set(sessionContextKey, session)
				c.Next()
				return
			}
			if !errors.Is(err, service.ErrSessionTokenExpired) {
				logger.Debug("discarding session cookie", zap.Error(err))
			}
		}

		session, token, err := tokens.Issue()
		if err != nil {
			logger.Error("issue session token failed", zap.Error(err))
			c.Next()
			return
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     sessionCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(tokens.TTL().Seconds()),
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		c.Set(sessionContextKey, session)
		c.Set(sessionIssuedKey, true)
		c.Next()
	}
}

// GetSession obtiene la sesión guardada por SessionMiddleware.
func GetSession(c *gin.Context) (domain.Session, bool) {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return domain.Session{}, false
	}
	session, ok := val.(domain.Session)
	return session, ok && session.ID != ""
}

// RateLimitMiddleware corta con onLimit cuando el limiter rechaza la clave del cliente.
// Siempre cuenta contra la IP; la sesión suma su propia cuota solo si vino en la cookie.
func RateLimitMiddleware(limiter service.RateLimiter, logger *zap.Logger, onLimit gin.HandlerFunc) gin.HandlerFunc {
	if onLimit == nil {
		onLimit = abortRateLimitedJSON
	}
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		allowed := true
		for _, key := range rateLimitKeys(c) {
			if !limiter.Allow(key) {
				allowed = false
			}
		}
		if !allowed {
			logger.Warn("rate limit exceeded", zap.String("path", c.Request.URL.Path))
			onLimit(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

func rateLimitKeys(c *gin.Context) []string {
	keys := []string{"ip:" + c.ClientIP()}
	if session, ok := GetSession(c); ok && !c.GetBool(sessionIssuedKey) {
		keys = append(keys, "session:"+session.ID)
	}
	return keys
}

func abortRateLimitedJSON(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, quotaExceededBody())
}
