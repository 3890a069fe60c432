package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ericksa/contractai/internal/analysis"
	"github.com/ericksa/contractai/internal/billing"
	"github.com/ericksa/contractai/internal/ledger"
	"github.com/ericksa/contractai/internal/storage"
)

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Contract AI Backend is running",
		"status":  "healthy",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"service":        ServiceName,
		"version":        Version,
		"llm_configured": s.analysis.Configured(),
		"llm_provider":   s.analysis.ProviderName(),
	})
}

func (s *Server) listContracts(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list contracts failed", "error", err)
		writeError(w, "Error listing contracts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contracts": files,
		"count":     len(files),
	})
}

func (s *Server) deleteContract(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	err := s.store.Delete(r.Context(), name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Contract not found")
		return
	case err != nil:
		writeError(w, "Error deleting contract", err)
		return
	}
	s.logger.Info("contract deleted", "filename", name)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Contract " + name + " deleted successfully",
	})
}

type analyzeRequest struct {
	ContractText string `json:"contract_text"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "", err)
		return
	}
	result, err := s.analysis.Analyze(r.Context(), req.ContractText)
	if err != nil {
		writeError(w, "Analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) generateEmail(w http.ResponseWriter, r *http.Request) {
	var req analysis.EmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "", err)
		return
	}
	email, err := s.analysis.GenerateEmail(r.Context(), req)
	if err != nil {
		writeError(w, "Email generation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, email)
}

type questionRequest struct {
	Question     string `json:"question"`
	ContractText string `json:"contract_text"`
}

func (s *Server) askQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "", err)
		return
	}
	answer, err := s.analysis.Answer(r.Context(), req.Question, req.ContractText)
	if err != nil {
		writeError(w, "Question answering failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"question": req.Question,
		"answer":   answer,
	})
}

func (s *Server) credits(w http.ResponseWriter, r *http.Request) {
	email := ledger.NormalizeEmail(mux.Vars(r)["email"])
	n, err := s.ledger.Get(r.Context(), email)
	if err != nil {
		writeError(w, "Error reading credits", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":   email,
		"credits": n,
	})
}

func (s *Server) paymentLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := billing.LinkParams{
		Quantity:         q.Get("quantity"),
		RedirectURL:      q.Get("redirect_url"),
		Email:            q.Get("email"),
		FirstName:        q.Get("firstName"),
		LastName:         q.Get("lastName"),
		DisableEmail:     q.Get("disableEmail"),
		DisableFirstName: q.Get("disableFirstName"),
		DisableLastName:  q.Get("disableLastName"),
		ShowDiscounts:    q.Get("showDiscounts"),
	}
	if params.RedirectURL == "" {
		params.RedirectURL = s.checkout.ReturnURL
	}
	link, err := billing.CheckoutLink(s.checkout.Base, s.checkout.ProductID, params)
	if err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paymentLink": link})
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, "", err)
		return
	}
	res, err := s.webhooks.Handle(r.Context(), r.Header, body)
	switch {
	case errors.Is(err, billing.ErrMissingSignature), errors.Is(err, billing.ErrInvalidSignature):
		writeDetail(w, http.StatusBadRequest, "Invalid signature")
		return
	case errors.Is(err, billing.ErrInvalidPayload):
		writeDetail(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	case err != nil:
		writeError(w, "Webhook processing failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// preview keeps the first previewChars characters of text.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewChars {
		return text
	}
	return string(runes[:previewChars]) + "..."
}

func allowedList(exts []string) string {
	return strings.Join(exts, ", ")
}
