package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"thinktact/internal/config"
	"thinktact/internal/content"
	"thinktact/internal/db"
	"thinktact/internal/email"
	apihttp "thinktact/internal/http"
	"thinktact/internal/llm"
	"thinktact/internal/repository"
	"thinktact/internal/service"
)

// sweeper es lo que exponen los stores en memoria para limpiar entradas vencidas.
type sweeper interface {
	Sweep() int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	var leadRepo repository.LeadRepository
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal("db schema", zap.Error(err))
		}
		leadRepo = repository.NewPgLeadRepository(pool)
	} else {
		logger.Info("DATABASE_URL not set, leads will not be archived")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		}
		cancel()
	}

	var sweepers []sweeper

	var transcriptStore service.TranscriptStore
	if redisClient != nil {
		transcriptStore = service.NewRedisTranscriptStore(redisClient)
	} else {
		memStore := service.NewMemoryTranscriptStore()
		sweepers = append(sweepers, memStore)
		transcriptStore = memStore
	}
	transcriptSvc := service.NewTranscriptService(transcriptStore, cfg.SessionTTL(), logger)

	limiter := service.NewNoopRateLimiter()
	if cfg.RateLimitEnabled {
		tier := service.TierByName(cfg.RateLimitTier)
		if redisClient != nil {
			limiter = service.NewRedisRateLimiter(redisClient, tier)
		} else {
			limiter = service.NewMemoryRateLimiter(tier)
		}
		if s, ok := limiter.(sweeper); ok {
			sweepers = append(sweepers, s)
		}
		logger.Info("rate limiting enabled", zap.String("tier", tier.Name), zap.Int("requests_per_day", tier.RequestsPerDay))
	}

	var llmClient llm.Client
	if cfg.LLMAPIKey == "" {
		logger.Warn("MISTRAL_API_KEY not set, using mock analysis responses")
		llmClient = llm.NewMockClient()
	} else {
		llmClient = llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout(), logger)
	}
	analysisSvc := service.NewAnalysisService(llmClient, llm.Options{
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}, logger)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	waitlistSvc := service.NewWaitlistService(
		service.NewHTTPLeadForwarder(cfg.LeadCaptureEndpoint, 15*time.Second),
		leadRepo,
		emailSender,
		service.WaitlistOptions{UseMock: cfg.WaitlistUseMock},
		logger,
	)

	paymentSvc := service.NewPaymentService(service.NewStripeGateway(cfg.StripeSecretKey), cfg.StripeWebhookSecret, logger)
	if !paymentSvc.Configured() {
		logger.Warn("STRIPE_SECRET_KEY not set, checkout disabled")
	}

	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = randomSecret()
		logger.Warn("SESSION_SECRET not set, using a per-process secret; sessions reset on restart")
	}
	sessionTokens := service.NewSessionTokenService(sessionSecret, 24*time.Hour)

	site, err := content.Load(cfg.PriceIDs())
	if err != nil {
		logger.Fatal("load site content", zap.Error(err))
	}
	tmpl, err := apihttp.LoadTemplates()
	if err != nil {
		logger.Fatal("load templates", zap.Error(err))
	}

	scheduler := cron.New()
	if len(sweepers) > 0 {
		if _, err := scheduler.AddFunc("@every 5m", func() {
			removed := 0
			for _, s := range sweepers {
				removed += s.Sweep()
			}
			if removed > 0 {
				logger.Debug("swept expired entries", zap.Int("removed", removed))
			}
		}); err != nil {
			logger.Fatal("schedule sweep", zap.Error(err))
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := apihttp.NewRouter(
		logger,
		apihttp.RouterOptions{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			SecureCookies:  strings.HasPrefix(cfg.SiteURL, "https://"),
			RateLimiter:    limiter,
		},
		tmpl,
		sessionTokens,
		apihttp.NewAnalysisHandler(logger, analysisSvc, transcriptSvc),
		apihttp.NewWaitlistHandler(logger, waitlistSvc),
		apihttp.NewPaymentHandler(logger, paymentSvc),
		apihttp.NewSiteHandler(logger, site, cfg.SiteURL, analysisSvc, transcriptSvc, waitlistSvc, paymentSvc),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

func newLogger(level string) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
