package http

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thinktact/internal/content"
	"thinktact/internal/domain"
	"thinktact/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

const msgEmptyArgument = "Please enter an argument to analyze."

// LoadTemplates parsea las páginas embebidas.
func LoadTemplates() (*template.Template, error) {
	return template.New("site").Funcs(template.FuncMap{
		// El HTML de las secciones ya pasó por bluemonday.
		"safeHTML": func(s string) template.HTML { return template.HTML(s) },
		"year":     func() int { return time.Now().Year() },
		"clock":    func(ms int64) string { return time.UnixMilli(ms).UTC().Format("15:04 UTC") },
	}).ParseFS(templatesFS, "templates/*.html")
}

// exchange es un argumento con su análisis, tal como se muestra en /analyze.
type exchange struct {
	Argument  string
	Timestamp int64
	Sections  []service.Section
}

// SiteHandler renderiza las páginas de marketing y los formularios server-side.
type SiteHandler struct {
	logger      *zap.Logger
	site        *content.Site
	siteURL     string
	analysis    *service.AnalysisService
	transcripts *service.TranscriptService
	waitlist    *service.WaitlistService
	payments    *service.PaymentService
}

func NewSiteHandler(
	logger *zap.Logger,
	site *content.Site,
	siteURL string,
	analysis *service.AnalysisService,
	transcripts *service.TranscriptService,
	waitlist *service.WaitlistService,
	payments *service.PaymentService,
) *SiteHandler {
	return &SiteHandler{
		logger:      logger,
		site:        site,
		siteURL:     strings.TrimRight(siteURL, "/"),
		analysis:    analysis,
		transcripts: transcripts,
		waitlist:    waitlist,
		payments:    payments,
	}
}

func (h *SiteHandler) render(c *gin.Context, status int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Site"] = h.site
	data["Title"] = title
	data["Page"] = name
	c.HTML(status, name, data)
}

func (h *SiteHandler) Home(c *gin.Context) {
	h.render(c, http.StatusOK, "home", h.site.Tagline, nil)
}

func (h *SiteHandler) About(c *gin.Context) {
	h.render(c, http.StatusOK, "about", "About", nil)
}

func (h *SiteHandler) Features(c *gin.Context) {
	h.render(c, http.StatusOK, "features", "Features", nil)
}

func (h *SiteHandler) Pricing(c *gin.Context) {
	h.render(c, http.StatusOK, "pricing", "Pricing", nil)
}

func (h *SiteHandler) Blog(c *gin.Context) {
	h.render(c, http.StatusOK, "blog", "Resources", nil)
}

// BlogPost maneja GET /blog/:slug.
func (h *SiteHandler) BlogPost(c *gin.Context) {
	post, ok := h.site.PostBySlug(c.Param("slug"))
	if !ok {
		h.NotFound(c)
		return
	}
	h.render(c, http.StatusOK, "post", post.Title, gin.H{"Post": post})
}

func (h *SiteHandler) NotFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "notfound", "Not found", nil)
}

// Waitlist maneja GET /waitlist.
func (h *SiteHandler) Waitlist(c *gin.Context) {
	h.render(c, http.StatusOK, "waitlist", "Join the waitlist", gin.H{"Email": "", "Job": c.Query("job")})
}

// SubmitWaitlist maneja el POST del formulario de /waitlist.
func (h *SiteHandler) SubmitWaitlist(c *gin.Context) {
	emailAddr := c.PostForm("email")
	job := c.PostForm("job")

	result, err := h.waitlist.Submit(c.Request.Context(), emailAddr, job)
	if err != nil {
		status, body := submitErrorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("waitlist form submit failed", zap.Error(err))
		}
		h.render(c, status, "waitlist", "Join the waitlist", gin.H{
			"Email":  emailAddr,
			"Job":    job,
			"Notice": body["message"],
			"Failed": true,
		})
		return
	}
	h.render(c, http.StatusOK, "waitlist", "Join the waitlist", gin.H{"Notice": result.Message, "Email": "", "Job": ""})
}

// Analyze maneja GET /analyze; ?argument= precarga el formulario desde la home.
func (h *SiteHandler) Analyze(c *gin.Context) {
	h.renderAnalyze(c, http.StatusOK, c.Query("argument"), "")
}

// SubmitAnalyze maneja el POST del formulario de /analyze.
func (h *SiteHandler) SubmitAnalyze(c *gin.Context) {
	argument := c.PostForm("argument")
	if strings.TrimSpace(argument) == "" {
		h.renderAnalyze(c, http.StatusBadRequest, argument, msgEmptyArgument)
		return
	}

	h.record(c, domain.RoleUser, argument)
	result, err := h.analysis.Analyze(c.Request.Context(), argument)
	if err != nil {
		h.logger.Error("analyze form failed", zap.String("request_id", GetRequestID(c)), zap.Error(err))
		status, _ := analysisErrorResponse(err)
		h.renderAnalyze(c, status, argument, userFacingAnalysisError(err))
		return
	}
	h.record(c, domain.RoleAssistant, result.Text)

	h.renderAnalyze(c, http.StatusOK, "", "")
}

// AnalyzeRateLimited es la respuesta HTML del rate limiter en /analyze.
func (h *SiteHandler) AnalyzeRateLimited(c *gin.Context) {
	h.renderAnalyze(c, http.StatusTooManyRequests, c.PostForm("argument"), msgQuotaExceeded)
}

func (h *SiteHandler) renderAnalyze(c *gin.Context, status int, argument, notice string) {
	var exchanges []exchange
	if h.transcripts != nil {
		if session, ok := GetSession(c); ok {
			transcript, err := h.transcripts.Load(c.Request.Context(), session.ID)
			if err != nil {
				h.logger.Warn("load transcript failed", zap.Error(err))
			} else {
				exchanges = buildExchanges(transcript)
			}
		}
	}
	h.render(c, status, "analyze", "Analyze an argument", gin.H{
		"Argument":    argument,
		"Notice":      notice,
		"Exchanges":   exchanges,
		"Placeholder": h.site.SampleArgument,
	})
}

// ClearAnalyze maneja POST /analyze/clear.
func (h *SiteHandler) ClearAnalyze(c *gin.Context) {
	if session, ok := GetSession(c); ok && h.transcripts != nil {
		if err := h.transcripts.Clear(c.Request.Context(), session.ID); err != nil {
			h.logger.Warn("clear transcript failed", zap.Error(err))
		}
	}
	c.Redirect(http.StatusSeeOther, "/analyze")
}

// buildExchanges agrupa el transcript en pares argumento/análisis, el más reciente primero.
func buildExchanges(t domain.Transcript) []exchange {
	var out []exchange
	for _, m := range t.Messages {
		switch m.Role {
		case domain.RoleUser:
			out = append(out, exchange{Argument: m.Content, Timestamp: m.Timestamp})
		case domain.RoleAssistant:
			sections := service.FormatResponse(service.CleanLLMTextResponse(m.Content)).List()
			if len(out) == 0 || out[len(out)-1].Sections != nil {
				out = append(out, exchange{Timestamp: m.Timestamp})
			}
			out[len(out)-1].Sections = sections
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (h *SiteHandler) record(c *gin.Context, role, text string) {
	if h.transcripts == nil {
		return
	}
	session, ok := GetSession(c)
	if !ok {
		return
	}
	if _, err := h.transcripts.Append(c.Request.Context(), session.ID, role, text); err != nil {
		h.logger.Warn("transcript append failed", zap.String("role", role), zap.Error(err))
	}
}

// StartCheckout maneja el POST de un plan desde /pricing y redirige a Stripe.
func (h *SiteHandler) StartCheckout(c *gin.Context) {
	plan, ok := h.site.PlanByKey(c.PostForm("plan"))
	if !ok {
		h.render(c, http.StatusBadRequest, "pricing", "Pricing", gin.H{"Notice": "Unknown plan."})
		return
	}
	if plan.ContactSales {
		c.Redirect(http.StatusSeeOther, "/waitlist?job=Enterprise")
		return
	}

	session, err := h.payments.CreateCheckout(c.Request.Context(), service.CheckoutRequest{
		PriceID:    plan.PriceID,
		PlanName:   plan.Name,
		SuccessURL: h.siteURL + "/checkout/success",
		CancelURL:  h.siteURL + "/checkout/cancel",
	})
	if err != nil {
		h.logger.Error("pricing checkout failed", zap.String("plan", plan.Key), zap.Error(err))
		status := http.StatusInternalServerError
		notice := "We could not start the checkout. Please try again later."
		switch {
		case errors.Is(err, service.ErrInvalidPriceID):
			status = http.StatusBadRequest
			notice = "Invalid price ID. Please check your Stripe configuration."
		case errors.Is(err, service.ErrPaymentsNotConfigured):
			status = http.StatusServiceUnavailable
			notice = "Online checkout is not available yet. Join the waitlist and we will reach out."
		}
		h.render(c, status, "pricing", "Pricing", gin.H{"Notice": notice})
		return
	}
	c.Redirect(http.StatusSeeOther, session.URL)
}

// CheckoutSuccess maneja GET /checkout/success?session_id=.
func (h *SiteHandler) CheckoutSuccess(c *gin.Context) {
	data := gin.H{}
	sessionID := c.Query("session_id")
	if sessionID != "" && h.payments.Configured() {
		session, err := h.payments.GetSession(c.Request.Context(), sessionID)
		if err != nil {
			h.logger.Warn("checkout success lookup failed", zap.Error(err))
			data["Notice"] = "We could not load the details of your order."
		} else {
			data["PlanName"] = session.Metadata["planName"]
			data["Amount"] = service.FormatCurrency(session.AmountTotal)
			if session.CustomerDetails != nil {
				data["Email"] = session.CustomerDetails.Email
			}
		}
	}
	h.render(c, http.StatusOK, "checkout_success", "Thank you", data)
}

func (h *SiteHandler) CheckoutCancel(c *gin.Context) {
	h.render(c, http.StatusOK, "checkout_cancel", "Checkout canceled", nil)
}
