// Package analysis turns contract text into structured risk reports,
// negotiation emails and grounded answers using an llm.Provider.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ericksa/contractai/internal/audit"
	"github.com/ericksa/contractai/internal/llm"
)

var (
	// ErrUpstream wraps any failure of the model call itself.
	ErrUpstream = errors.New("model call failed")
	// ErrEmptyText is returned when there is nothing to analyze.
	ErrEmptyText = errors.New("no contract text provided")
	// ErrEmptyQuestion is returned when a question is blank.
	ErrEmptyQuestion = errors.New("question is required")
)

// Limits caps the characters of contract text sent per operation.
type Limits struct {
	AnalysisChars int
	EmailChars    int
	QuestionChars int
}

type Options struct {
	Limits   Limits
	Policies Policies
	// CacheTTL enables the analysis cache when positive.
	CacheTTL time.Duration
	Auditor  *audit.Auditor
	Logger   *slog.Logger
}

type Service struct {
	provider llm.Provider
	limits   Limits
	policies Policies
	cache    *cache.Cache
	auditor  *audit.Auditor
	logger   *slog.Logger
}

// NewService builds a Service. provider may be nil, in which case every
// operation fails with llm.ErrNotConfigured.
func NewService(provider llm.Provider, opts Options) *Service {
	s := &Service{
		provider: provider,
		limits:   opts.Limits,
		policies: opts.Policies,
		auditor:  opts.Auditor,
		logger:   opts.Logger,
	}
	if s.limits.AnalysisChars <= 0 {
		s.limits.AnalysisChars = 12000
	}
	if s.limits.EmailChars <= 0 {
		s.limits.EmailChars = 4000
	}
	if s.limits.QuestionChars <= 0 {
		s.limits.QuestionChars = 12000
	}
	if s.policies == (Policies{}) {
		s.policies = DefaultPolicies()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// Configured reports whether a provider is available.
func (s *Service) Configured() bool {
	return s.provider != nil
}

// ProviderName returns the provider name, or "" when unconfigured.
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Analyze runs the structured analysis using the analyze endpoint policy.
func (s *Service) Analyze(ctx context.Context, text string) (*AnalysisResult, error) {
	return s.analyze(ctx, text, s.policies.Analyze)
}

// AnalyzeUpload runs the analysis for a freshly uploaded file. The file is
// already stored at this point, so under the degrade policy every failure,
// missing credentials included, becomes FailedAnalysis.
func (s *Service) AnalyzeUpload(ctx context.Context, text string) (*AnalysisResult, error) {
	result, err := s.analyze(ctx, text, s.policies.Upload)
	if err != nil && s.policies.Upload == PolicyDegrade {
		return FailedAnalysis(err), nil
	}
	return result, err
}

func (s *Service) analyze(ctx context.Context, text string, policy Policy) (*AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if s.provider == nil {
		return nil, llm.ErrNotConfigured
	}

	prompt := buildAnalysisPrompt(text, s.limits.AnalysisChars)
	key := s.cacheKey(prompt)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			result := cached.(AnalysisResult)
			s.logger.Debug("analysis cache hit", "key", key[12:24])
			return &result, nil
		}
	}

	start := time.Now()
	raw, err := s.provider.Generate(ctx, prompt)
	s.auditor.Log(audit.KindAnalyze, s.provider.Name(), truncate(text, s.limits.AnalysisChars), raw, err)
	if err != nil {
		s.logger.Error("analysis call failed", "provider", s.provider.Name(), "policy", policy, "error", err)
		if policy == PolicyDegrade {
			return FailedAnalysis(err), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	result, ok := parseAnalysis(raw)
	s.logger.Info("contract analyzed",
		"provider", s.provider.Name(),
		"duration", time.Since(start),
		"risk_score", int(result.RiskScore),
		"parsed", ok,
	)
	if ok && s.cache != nil {
		s.cache.SetDefault(key, *result)
	}
	return result, nil
}

// GenerateEmail drafts a negotiation email in the requested tone. Under the
// degrade policy, failures yield a generic email carrying the error text.
func (s *Service) GenerateEmail(ctx context.Context, req EmailRequest) (*Email, error) {
	if strings.TrimSpace(req.ContractText) == "" {
		return nil, ErrEmptyText
	}
	if s.provider == nil {
		return nil, llm.ErrNotConfigured
	}
	if req.Tone == "" {
		req.Tone = string(ToneProfessional)
	}

	email, err := s.draftEmail(ctx, req)
	if err == nil {
		return email, nil
	}
	s.logger.Error("email generation failed", "provider", s.provider.Name(), "tone", req.Tone, "error", err)
	if s.policies.Email == PolicyPropagate {
		if errors.Is(err, ErrMalformedResponse) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return &Email{
		Subject: "Contract Review and Discussion - " + titleCase(req.Tone) + " Approach",
		Body:    "I've reviewed the contract and would like to discuss some key points. Error in AI generation: " + err.Error(),
		Tone:    req.Tone,
	}, nil
}

func (s *Service) draftEmail(ctx context.Context, req EmailRequest) (*Email, error) {
	raw, err := s.provider.Generate(ctx, buildEmailPrompt(req, s.limits.EmailChars))
	s.auditor.Log(audit.KindEmail, req.Tone, truncate(req.ContractText, s.limits.EmailChars), raw, err)
	if err != nil {
		return nil, err
	}
	var email Email
	if err := ExtractJSON(raw, &email); err != nil {
		return nil, err
	}
	email.Tone = req.Tone
	return &email, nil
}

// Answer responds to a question using only the contract text.
func (s *Service) Answer(ctx context.Context, question, text string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if s.provider == nil {
		return "", llm.ErrNotConfigured
	}

	raw, err := s.provider.Generate(ctx, buildQuestionPrompt(question, text, s.limits.QuestionChars))
	s.auditor.Log(audit.KindQuestion, question, truncate(text, s.limits.QuestionChars), raw, err)
	if err != nil {
		s.logger.Error("question answering failed", "provider", s.provider.Name(), "error", err)
		if s.policies.Question == PolicyPropagate {
			return "", fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return "Error answering question: " + err.Error(), nil
	}
	return strings.TrimSpace(raw), nil
}

func (s *Service) cacheKey(prompt string) string {
	hash := sha256.Sum256([]byte(s.provider.Name() + "\x00" + prompt))
	return "analysis:v1:" + hex.EncodeToString(hash[:])
}
