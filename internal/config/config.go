package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	SiteURL  string `env:"SITE_URL" envDefault:"http://localhost:8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	LLMAPIKey         string  `env:"MISTRAL_API_KEY"`
	LLMBaseURL        string  `env:"LLM_BASE_URL" envDefault:"https://api.mistral.ai/v1"`
	LLMModel          string  `env:"LLM_MODEL" envDefault:"mistral-large-latest"`
	LLMTemperature    float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens      int     `env:"LLM_MAX_TOKENS" envDefault:"2000"`
	LLMTimeoutSeconds int     `env:"LLM_TIMEOUT_SECONDS" envDefault:"60"`

	StripeSecretKey      string `env:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`
	PriceIDBasic         string `env:"STRIPE_PRICE_ID_BASIC"`
	PriceIDProfessional  string `env:"STRIPE_PRICE_ID_PROFESSIONAL"`
	PriceIDEnterprise    string `env:"STRIPE_PRICE_ID_ENTERPRISE"`

	LeadCaptureEndpoint string `env:"LEAD_CAPTURE_ENDPOINT" envDefault:"https://your-api-gateway-endpoint.amazonaws.com/prod/submit"`
	WaitlistUseMock     bool   `env:"WAITLIST_USE_MOCK" envDefault:"false"`

	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SessionSecret     string `env:"SESSION_SECRET"`
	SessionTTLMinutes int    `env:"SESSION_TTL_MINUTES" envDefault:"30"`

	RateLimitEnabled bool   `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	RateLimitTier    string `env:"RATE_LIMIT_TIER" envDefault:"free"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"ThinkTact"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SessionTTL devuelve la ventana de inactividad del transcript.
func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// LLMTimeout devuelve el timeout del cliente HTTP del LLM.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLMTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// PriceIDs devuelve los price ids por plan, con placeholders cuando faltan.
func (c *Config) PriceIDs() map[string]string {
	return map[string]string{
		"basic":        orDefault(c.PriceIDBasic, "price_basic_placeholder"),
		"professional": orDefault(c.PriceIDProfessional, "price_professional_placeholder"),
		"enterprise":   orDefault(c.PriceIDEnterprise, "price_enterprise_placeholder"),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
