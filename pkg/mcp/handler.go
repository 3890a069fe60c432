// Package mcp exposes the contract services as Model Context Protocol tools
// over streamable HTTP.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ericksa/contractai/internal/analysis"
	"github.com/ericksa/contractai/internal/ledger"
)

type Handler struct {
	analysis *analysis.Service
	ledger   ledger.Ledger
	logger   *slog.Logger
	server   *mcp.Server
	http     http.Handler
}

func NewHandler(svc *analysis.Service, led ledger.Ledger, version string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		analysis: svc,
		ledger:   led,
		logger:   logger,
	}
	h.initMCPServer(version)
	h.http = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return h.server
	}, nil)
	return h
}

// Server returns the underlying MCP server, e.g. for other transports.
func (h *Handler) Server() *mcp.Server {
	return h.server
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.http.ServeHTTP(w, r)
}

type AnalyzeInput struct {
	ContractText string `json:"contract_text" jsonschema:"full text of the contract"`
}

type EmailInput struct {
	ContractText string   `json:"contract_text" jsonschema:"full text of the contract"`
	Tone         string   `json:"tone,omitempty" jsonschema:"professional, assertive, collaborative, friendly or concise"`
	Issues       []string `json:"issues,omitempty" jsonschema:"specific issues the email should raise"`
}

type QuestionInput struct {
	Question     string `json:"question" jsonschema:"question about the contract"`
	ContractText string `json:"contract_text" jsonschema:"full text of the contract"`
}

type QuestionOutput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type CreditsInput struct {
	Email string `json:"email" jsonschema:"customer email address"`
}

type CreditsOutput struct {
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

func (h *Handler) initMCPServer(version string) {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "contractai",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_contract",
		Description: "Summarize a contract, extract key clauses and score its risks",
	}, h.analyzeContract)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_negotiation_email",
		Description: "Draft a negotiation email about a contract in the requested tone",
	}, h.generateEmail)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_contract_question",
		Description: "Answer a question using only the contract text",
	}, h.askQuestion)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_credits",
		Description: "Look up the credit balance for an email address",
	}, h.getCredits)

	h.server = server
}

func (h *Handler) analyzeContract(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, *analysis.AnalysisResult, error) {
	result, err := h.analysis.Analyze(ctx, in.ContractText)
	if err != nil {
		h.logger.Warn("mcp analyze_contract failed", "error", err)
		return nil, nil, err
	}
	return nil, result, nil
}

func (h *Handler) generateEmail(ctx context.Context, _ *mcp.CallToolRequest, in EmailInput) (*mcp.CallToolResult, *analysis.Email, error) {
	email, err := h.analysis.GenerateEmail(ctx, analysis.EmailRequest{
		ContractText: in.ContractText,
		Tone:         in.Tone,
		Issues:       in.Issues,
	})
	if err != nil {
		h.logger.Warn("mcp generate_negotiation_email failed", "error", err)
		return nil, nil, err
	}
	return nil, email, nil
}

func (h *Handler) askQuestion(ctx context.Context, _ *mcp.CallToolRequest, in QuestionInput) (*mcp.CallToolResult, QuestionOutput, error) {
	answer, err := h.analysis.Answer(ctx, in.Question, in.ContractText)
	if err != nil {
		return nil, QuestionOutput{}, err
	}
	return nil, QuestionOutput{Question: in.Question, Answer: answer}, nil
}

func (h *Handler) getCredits(ctx context.Context, _ *mcp.CallToolRequest, in CreditsInput) (*mcp.CallToolResult, CreditsOutput, error) {
	email := ledger.NormalizeEmail(in.Email)
	n, err := h.ledger.Get(ctx, email)
	if err != nil {
		return nil, CreditsOutput{}, err
	}
	return nil, CreditsOutput{Email: email, Credits: n}, nil
}
