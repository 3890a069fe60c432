// Package api is the HTTP surface of the contract service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ericksa/contractai/internal/analysis"
	"github.com/ericksa/contractai/internal/billing"
	"github.com/ericksa/contractai/internal/ledger"
	"github.com/ericksa/contractai/internal/middleware"
	"github.com/ericksa/contractai/internal/storage"
)

const (
	ServiceName = "Contract AI Backend"
	Version     = "1.0.0"

	maxWebhookBytes = 1 << 20
	previewChars    = 1000
)

// CheckoutOptions configure GET /payments/pro/link.
type CheckoutOptions struct {
	Base      string
	ProductID string
	ReturnURL string
}

type Options struct {
	Analysis          *analysis.Service
	Store             storage.Store
	Ledger            ledger.Ledger
	Webhooks          *billing.Processor
	Checkout          CheckoutOptions
	AllowedExtensions []string
	MaxUploadBytes    int64
	// Limiter throttles the model-backed routes; nil disables it.
	Limiter *middleware.Limiter
	// Config and MCP are mounted at /configure and /mcp when set.
	Config http.Handler
	MCP    http.Handler
	Logger *slog.Logger
}

type Server struct {
	analysis  *analysis.Service
	store     storage.Store
	ledger    ledger.Ledger
	webhooks  *billing.Processor
	checkout  CheckoutOptions
	allowed   map[string]bool
	allowList []string
	maxUpload int64
	limiter   *middleware.Limiter
	config    http.Handler
	mcp       http.Handler
	logger    *slog.Logger
}

func NewServer(opts Options) *Server {
	s := &Server{
		analysis:  opts.Analysis,
		store:     opts.Store,
		ledger:    opts.Ledger,
		webhooks:  opts.Webhooks,
		checkout:  opts.Checkout,
		allowed:   make(map[string]bool),
		allowList: opts.AllowedExtensions,
		maxUpload: opts.MaxUploadBytes,
		limiter:   opts.Limiter,
		config:    opts.Config,
		mcp:       opts.MCP,
		logger:    opts.Logger,
	}
	if len(s.allowList) == 0 {
		s.allowList = []string{".pdf", ".docx", ".txt"}
	}
	for _, ext := range s.allowList {
		s.allowed[ext] = true
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 20 << 20
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Routes builds the router. CORS is applied by the caller around it.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	middleware.Register(r, s.logger)
	limit := middleware.RateLimit(s.limiter)

	r.HandleFunc("/", s.root).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	r.Handle("/upload", limit(http.HandlerFunc(s.upload))).Methods(http.MethodPost)
	r.HandleFunc("/contracts", s.listContracts).Methods(http.MethodGet)
	r.HandleFunc("/contracts/{filename}", s.deleteContract).Methods(http.MethodDelete)

	r.Handle("/analyze", limit(http.HandlerFunc(s.analyze))).Methods(http.MethodPost)
	r.Handle("/generate-email", limit(http.HandlerFunc(s.generateEmail))).Methods(http.MethodPost)
	r.Handle("/ask-question", limit(http.HandlerFunc(s.askQuestion))).Methods(http.MethodPost)

	r.HandleFunc("/credits/{email}", s.credits).Methods(http.MethodGet)
	r.HandleFunc("/payments/pro/link", s.paymentLink).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/dodo", s.webhook).Methods(http.MethodPost)

	if s.config != nil {
		r.PathPrefix("/configure").Handler(s.config)
	}
	if s.mcp != nil {
		r.PathPrefix("/mcp").Handler(s.mcp)
	}
	return r
}
