package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ericksa/contractai/internal/extract"
)

// upload validates, extracts and stores one multipart file, then analyzes it.
// The file is written to the store only after its text has been extracted.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeDetail(w, http.StatusBadRequest, "No file provided")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !s.allowed[ext] || !extract.Supported(ext) {
		writeDetail(w, http.StatusBadRequest, "Unsupported file type. Allowed: "+allowedList(s.allowList))
		return
	}

	tmp, err := os.CreateTemp("", "contract-*"+ext)
	if err != nil {
		writeError(w, "Error processing file", err)
		return
	}
	defer os.Remove(tmp.Name())
	size, err := io.Copy(tmp, file)
	tmp.Close()
	if err != nil {
		writeError(w, "Error processing file", err)
		return
	}

	text, err := extract.File(tmp.Name(), ext)
	if err != nil {
		s.logger.Warn("text extraction failed", "filename", header.Filename, "error", err)
		writeDetail(w, http.StatusBadRequest, "Error extracting text: "+err.Error())
		return
	}

	savedAs := uuid.NewString() + ext
	if _, err := s.store.Put(r.Context(), savedAs, tmp.Name()); err != nil {
		s.logger.Error("storing upload failed", "saved_as", savedAs, "error", err)
		writeError(w, "Error processing file", err)
		return
	}

	result, err := s.analysis.AnalyzeUpload(r.Context(), text)
	if err != nil {
		writeError(w, "Analysis failed", err)
		return
	}

	s.logger.Info("contract uploaded", "filename", header.Filename, "saved_as", savedAs, "size", size)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Contract uploaded and analyzed successfully",
		"filename":       header.Filename,
		"saved_as":       savedAs,
		"size":           size,
		"extracted_text": preview(text),
		"analysis":       result,
	})
}
