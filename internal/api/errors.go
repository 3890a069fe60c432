package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ericksa/contractai/internal/analysis"
	"github.com/ericksa/contractai/internal/billing"
	"github.com/ericksa/contractai/internal/extract"
	"github.com/ericksa/contractai/internal/llm"
	"github.com/ericksa/contractai/internal/storage"
)

// requestError is a problem with the request detected by a handler.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, billing.ErrNotConfigured):
		return http.StatusInternalServerError
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, analysis.ErrEmptyText),
		errors.Is(err, analysis.ErrEmptyQuestion),
		errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, billing.ErrMissingSignature),
		errors.Is(err, billing.ErrInvalidSignature),
		errors.Is(err, billing.ErrInvalidPayload),
		errors.Is(err, billing.ErrMissingRedirect),
		errors.Is(err, billing.ErrInvalidQuantity):
		return http.StatusBadRequest
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError writes err with its mapped status. prefix is prepended to
// server-side failures only; client errors carry their own message.
func writeError(w http.ResponseWriter, prefix string, err error) {
	status := statusFor(err)
	switch {
	case errors.Is(err, analysis.ErrEmptyText):
		writeDetail(w, status, "No contract text provided")
	case status == http.StatusInternalServerError && prefix != "":
		writeDetail(w, status, prefix+": "+err.Error())
	default:
		writeDetail(w, status, err.Error())
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("Invalid request body: " + err.Error())
	}
	return nil
}
