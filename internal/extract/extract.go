// Package extract turns uploaded contract files into plain text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned for extensions no extractor handles.
var ErrUnsupportedType = errors.New("unsupported file type")

type extractorFunc func(path string) (string, error)

var extractors = map[string]extractorFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".txt":  extractPlain,
	".html": extractHTML,
	".htm":  extractHTML,
}

// Supported reports whether ext (with leading dot, any case) has an extractor.
func Supported(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// File extracts the text of the file at path. ext is the declared type; when
// empty the path's own extension is used.
func File(path, ext string) (string, error) {
	if ext == "" {
		ext = filepath.Ext(path)
	}
	fn, ok := extractors[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	text, err := fn(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return text, nil
}

func extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
