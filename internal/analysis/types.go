package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AnalysisResult is the structured risk summary returned for a contract.
type AnalysisResult struct {
	Summary    string      `json:"summary"`
	KeyClauses []KeyClause `json:"key_clauses"`
	Risks      []Risk      `json:"risks"`
	RiskScore  Score       `json:"risk_score"`
}

type KeyClause struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	Importance string `json:"importance"`
}

type Risk struct {
	RiskType        string `json:"risk_type"`
	Description     string `json:"description"`
	Severity        string `json:"severity"`
	ClauseReference string `json:"clause_reference"`
}

// Score is a 0-100 risk score. Models sometimes answer with a float or a
// quoted number; both are accepted, rounded and clamped.
type Score int

func (s *Score) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid risk_score %s", data)
	}
	*s = clampScore(int(math.Round(f)))
	return nil
}

func clampScore(v int) Score {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return Score(v)
}

// Email is a drafted negotiation email.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Tone    string `json:"tone"`
}

// EmailRequest carries the inputs for GenerateEmail.
type EmailRequest struct {
	ContractText string   `json:"contract_text"`
	Tone         string   `json:"tone"`
	Issues       []string `json:"issues,omitempty"`
}

// normalize forces the enumerations and keeps slices non-nil so the JSON
// envelope always carries arrays.
func (r *AnalysisResult) normalize() {
	if r.KeyClauses == nil {
		r.KeyClauses = []KeyClause{}
	}
	if r.Risks == nil {
		r.Risks = []Risk{}
	}
	for i := range r.KeyClauses {
		r.KeyClauses[i].Importance = level(r.KeyClauses[i].Importance)
	}
	for i := range r.Risks {
		r.Risks[i].Severity = level(r.Risks[i].Severity)
	}
	r.RiskScore = clampScore(int(r.RiskScore))
}

func level(v string) string {
	switch v = strings.ToLower(strings.TrimSpace(v)); v {
	case "high", "medium", "low":
		return v
	case "critical", "severe":
		return "high"
	}
	return "medium"
}

// String renders the result as compact JSON for audit records.
func (r *AnalysisResult) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}
