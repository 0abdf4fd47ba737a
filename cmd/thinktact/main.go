package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"thinktact/internal/config"
	"thinktact/internal/db"
	"thinktact/internal/llm"
	"thinktact/internal/repository"
	"thinktact/internal/service"
)

// cliApp agrupa las dependencias de los subcomandos. Los tests las inyectan directo.
type cliApp struct {
	cfg         *config.Config
	logger      *zap.Logger
	analysis    *service.AnalysisService
	transcripts *service.TranscriptService
	leads       repository.LeadRepository
	closeLeads  func()

	in  io.Reader
	out io.Writer

	verbose bool
	timeout time.Duration
}

func newRootCmd(app *cliApp) *cobra.Command {
	root := &cobra.Command{
		Use:   "thinktact",
		Short: "ThinkTact argument analysis from the terminal",
		Long: `Analyze arguments for logical fallacies using the same service as the website.

Without MISTRAL_API_KEY the commands run against canned mock responses.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.closeLeads != nil {
				app.closeLeads()
			}
			if app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().DurationVar(&app.timeout, "timeout", 2*time.Minute, "Timeout per LLM call")

	root.AddCommand(newAnalyzeCmd(app))
	root.AddCommand(newChatCmd(app))
	root.AddCommand(newModelsCmd(app))
	root.AddCommand(newLeadsCmd(app))
	return root
}

// init arma lo que falte a partir del entorno.
func (a *cliApp) init() error {
	if a.in == nil {
		a.in = os.Stdin
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.logger == nil {
		zapCfg := zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if a.verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := zapCfg.Build()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		a.logger = logger
	}
	if a.cfg == nil {
		_ = godotenv.Load()
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
	}
	if a.analysis == nil {
		var client llm.Client
		if a.cfg.LLMAPIKey == "" {
			a.logger.Warn("MISTRAL_API_KEY not set, using mock responses")
			client = llm.NewMockClient()
		} else {
			client = llm.NewHTTPClient(a.cfg.LLMBaseURL, a.cfg.LLMAPIKey, a.cfg.LLMModel, a.cfg.LLMTimeout(), a.logger)
		}
		a.analysis = service.NewAnalysisService(client, llm.Options{
			Model:       a.cfg.LLMModel,
			Temperature: a.cfg.LLMTemperature,
			MaxTokens:   a.cfg.LLMMaxTokens,
		}, a.logger)
	}
	if a.transcripts == nil {
		a.transcripts = service.NewTranscriptService(service.NewMemoryTranscriptStore(), a.cfg.SessionTTL(), a.logger)
	}
	return nil
}

// leadRepository abre la base solo para el comando que la necesita.
func (a *cliApp) leadRepository(ctx context.Context) (repository.LeadRepository, error) {
	if a.leads != nil {
		return a.leads, nil
	}
	if a.cfg == nil || a.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	pool, err := db.NewPool(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	a.closeLeads = pool.Close
	a.leads = repository.NewPgLeadRepository(pool)
	return a.leads, nil
}

func main() {
	if err := newRootCmd(&cliApp{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
