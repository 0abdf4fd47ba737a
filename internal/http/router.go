package http

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thinktact/internal/service"
)

// RouterOptions agrupa los ajustes del router que vienen de config.
type RouterOptions struct {
	AllowedOrigins []string
	SecureCookies  bool
	RateLimiter    service.RateLimiter
}

// NewRouter configura el router de Gin con middlewares, páginas y rutas de API.
func NewRouter(
	logger *zap.Logger,
	opts RouterOptions,
	tmpl *template.Template,
	sessions *service.SessionTokenService,
	analysisH *AnalysisHandler,
	waitlistH *WaitlistHandler,
	paymentH *PaymentHandler,
	siteH *SiteHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(opts.AllowedOrigins))
	if tmpl != nil {
		r.SetHTMLTemplate(tmpl)
	}

	sessionMW := SessionMiddleware(sessions, opts.SecureCookies, logger)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pages := r.Group("/", sessionMW)
	pages.GET("", siteH.Home)
	pages.GET("/about", siteH.About)
	pages.GET("/features", siteH.Features)
	pages.GET("/pricing", siteH.Pricing)
	pages.POST("/pricing/checkout", siteH.StartCheckout)
	pages.GET("/blog", siteH.Blog)
	pages.GET("/blog/:slug", siteH.BlogPost)
	pages.GET("/waitlist", siteH.Waitlist)
	pages.POST("/waitlist", siteH.SubmitWaitlist)
	pages.GET("/analyze", siteH.Analyze)
	pages.POST("/analyze", RateLimitMiddleware(opts.RateLimiter, logger, siteH.AnalyzeRateLimited), siteH.SubmitAnalyze)
	pages.POST("/analyze/clear", siteH.ClearAnalyze)
	pages.GET("/checkout/success", siteH.CheckoutSuccess)
	pages.GET("/checkout/cancel", siteH.CheckoutCancel)

	api := r.Group("/api")

	analysis := api.Group("", sessionMW)
	limited := analysis.Group("", RateLimitMiddleware(opts.RateLimiter, logger, nil))
	limited.POST("/analyze", analysisH.Analyze)
	limited.POST("/mistral-analysis", analysisH.MistralAnalysis)
	limited.POST("/mistral-analysis/stream", analysisH.MistralAnalysisStream)
	analysis.GET("/mistral-test", analysisH.MistralTest)
	analysis.GET("/transcript", analysisH.GetTranscript)
	analysis.DELETE("/transcript", analysisH.ClearTranscript)

	api.POST("/submit", waitlistH.Submit)
	api.POST("/checkout", paymentH.Checkout)
	api.GET("/checkout/session", paymentH.CheckoutSession)
	api.POST("/webhook", paymentH.Webhook)

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		siteH.NotFound(c)
	})

	return r
}

// corsMiddleware permite todos los orígenes cuando la lista contiene "*".
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Stripe-Signature", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cors.New(cfg)
}
