package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedResponse means the model text did not contain decodable JSON.
var ErrMalformedResponse = errors.New("malformed model response")

var fencePattern = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

// ExtractJSON decodes the first ```json fenced block in raw into v. Without
// a fence the whole text is treated as JSON.
func ExtractJSON(raw string, v any) error {
	body := raw
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		body = m[1]
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// FallbackAnalysis is returned when the model answered but not with JSON.
func FallbackAnalysis() *AnalysisResult {
	return &AnalysisResult{
		Summary:    "Contract analysis completed, but formatting error occurred.",
		KeyClauses: []KeyClause{},
		Risks: []Risk{{
			RiskType:        "Analysis Error",
			Description:     "Could not parse AI response",
			Severity:        "low",
			ClauseReference: "N/A",
		}},
		RiskScore: 50,
	}
}

// FailedAnalysis is the degraded envelope for a model call that failed outright.
func FailedAnalysis(err error) *AnalysisResult {
	return &AnalysisResult{
		Summary:    fmt.Sprintf("AI analysis failed: %v", err),
		KeyClauses: []KeyClause{},
		Risks:      []Risk{},
		RiskScore:  50,
	}
}

// parseAnalysis never fails: undecodable text becomes FallbackAnalysis.
func parseAnalysis(raw string) (*AnalysisResult, bool) {
	var result AnalysisResult
	if err := ExtractJSON(raw, &result); err != nil {
		return FallbackAnalysis(), false
	}
	result.normalize()
	return &result, true
}
