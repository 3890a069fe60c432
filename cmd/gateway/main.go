package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ericksa/contractai/internal/analysis"
	"github.com/ericksa/contractai/internal/api"
	"github.com/ericksa/contractai/internal/audit"
	"github.com/ericksa/contractai/internal/billing"
	"github.com/ericksa/contractai/internal/config"
	"github.com/ericksa/contractai/internal/ledger"
	"github.com/ericksa/contractai/internal/llm"
	"github.com/ericksa/contractai/internal/middleware"
	"github.com/ericksa/contractai/internal/storage"
	"github.com/ericksa/contractai/pkg/mcp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	plans := billing.NewPlanTable(nil)
	reload := &reloader{plans: plans}

	// Load configuration
	cfg, err := config.LoadAndWatch(reload.apply)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)
	plans.Replace(cfg.Billing.Plans)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditor := audit.Nop()
	if cfg.Audit.Enabled {
		if auditor, err = audit.Open(cfg.Audit.Path); err != nil {
			return err
		}
	}
	defer auditor.Close()

	provider, err := llm.NewProvider(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("no LLM API key configured; model-backed endpoints will fail")
	case err != nil:
		return err
	default:
		if c, ok := provider.(io.Closer); ok {
			defer c.Close()
		}
	}

	store, err := ledger.Open(ledger.Options{
		Backend: cfg.Ledger.Backend,
		DataDir: cfg.Storage.DataDir,
		DSN:     cfg.Ledger.DSN,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	files, err := storage.Open(ctx, storage.Options{
		Backend: cfg.Storage.Backend,
		Dir:     cfg.Storage.UploadsDir,
		MinIO: storage.MinIOOptions{
			Endpoint:  cfg.Storage.MinIO.Endpoint,
			AccessKey: cfg.Storage.MinIO.AccessKey,
			SecretKey: cfg.Storage.MinIO.SecretKey,
			Bucket:    cfg.Storage.MinIO.Bucket,
			UseSSL:    cfg.Storage.MinIO.UseSSL,
		},
	})
	if err != nil {
		return err
	}

	svc := analysis.NewService(provider, analysis.Options{
		Limits: analysis.Limits{
			AnalysisChars: cfg.Analysis.AnalysisChars,
			EmailChars:    cfg.Analysis.EmailChars,
			QuestionChars: cfg.Analysis.QuestionChars,
		},
		Policies: analysis.PoliciesFrom(cfg.Analysis.Policies),
		CacheTTL: cfg.Analysis.CacheTTL,
		Auditor:  auditor,
		Logger:   logger.With("component", "analysis"),
	})

	webhooks := billing.NewProcessor(billing.ProcessorOptions{
		Secret:    cfg.Billing.WebhookSecret,
		Tolerance: cfg.Billing.WebhookTolerance,
		Ledger:    store,
		Tracker:   store,
		Plans:     plans,
		Auditor:   auditor,
		Logger:    logger.With("component", "billing"),
	})

	cfgAPI := config.NewConfigAPI(cfg)
	reload.init(cfg, cfgAPI, logger)

	server := api.NewServer(api.Options{
		Analysis: svc,
		Store:    files,
		Ledger:   store,
		Webhooks: webhooks,
		Checkout: api.CheckoutOptions{
			Base:      cfg.Billing.CheckoutBase,
			ProductID: cfg.Billing.ProductID,
			ReturnURL: cfg.Billing.ReturnURL,
		},
		AllowedExtensions: cfg.Storage.AllowedExtensions,
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
		Limiter:           middleware.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
		Config:            cfgAPI.Router(),
		MCP:               mcp.NewHandler(svc, store, api.Version, logger.With("component", "mcp")),
		Logger:            logger,
	})

	handler := middleware.CORS(middleware.CORSOptions{
		Origin:      cfg.CORS.FrontendURL,
		OriginRegex: cfg.CORS.FrontendURLRegex,
	})(server.Routes())

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting contract gateway",
			"addr", cfg.Server.Addr,
			"llm_provider", svc.ProviderName(),
			"storage", cfg.Storage.Backend,
			"ledger", cfg.Ledger.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// reloader applies config file changes. Only the billing plan table is
// swapped live; other changes are logged and wait for a restart.
type reloader struct {
	mu      sync.Mutex
	current *config.Config
	plans   *billing.PlanTable
	api     *config.ConfigAPI
	logger  *slog.Logger
}

func (r *reloader) init(cfg *config.Config, cfgAPI *config.ConfigAPI, logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = cfg
	r.api = cfgAPI
	r.logger = logger
}

func (r *reloader) apply(next *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}

	r.plans.Replace(next.Billing.Plans)
	r.logger.Info("billing plans reloaded", "plans", len(next.Billing.Plans))

	prev := *r.current
	cmp := *next
	prev.Billing.Plans, cmp.Billing.Plans = nil, nil
	if !reflect.DeepEqual(prev, cmp) {
		r.logger.Warn("configuration changed; restart to apply settings other than billing.plans")
	}
	r.current = next
	r.api.Replace(next)
}
