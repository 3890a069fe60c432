package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tone selects the phrasing of a negotiation email.
type Tone string

const (
	ToneProfessional  Tone = "professional"
	ToneAssertive     Tone = "assertive"
	ToneCollaborative Tone = "collaborative"
	ToneFriendly      Tone = "friendly"
	ToneConcise       Tone = "concise"
)

var toneInstructions = map[Tone]string{
	ToneProfessional:  "Use a professional, respectful tone.",
	ToneAssertive:     "Use a confident, assertive tone while remaining respectful.",
	ToneCollaborative: "Use a collaborative, partnership-focused tone.",
	ToneFriendly:      "Use a friendly and warm but still professional tone.",
	ToneConcise:       "Be concise and to-the-point while remaining polite.",
}

// ToneInstruction returns the prompt phrase for tone; unknown tones read as professional.
func ToneInstruction(tone string) string {
	if s, ok := toneInstructions[Tone(strings.ToLower(tone))]; ok {
		return s
	}
	return toneInstructions[ToneProfessional]
}

const analysisPrompt = `You are a legal AI assistant specializing in contract analysis.
Always return STRICT valid JSON with the exact schema below.

Analyze the following contract and provide a comprehensive analysis in JSON format.

Contract Text:
%s

Return exactly this JSON structure:
{
  "summary": "Brief 3-4 bullet point summary (use - bullets separated by newlines)",
  "key_clauses": [
    {
      "type": "Payment Terms",
      "content": "extracted clause text",
      "importance": "high|medium|low"
    }
  ],
  "risks": [
    {
      "risk_type": "Financial Risk",
      "description": "description of the risk",
      "severity": "high|medium|low",
      "clause_reference": "relevant clause"
    }
  ],
  "risk_score": 0
}

Notes:
- Focus on payment terms, deadlines, termination, liability/indemnity, IP, confidentiality, dispute resolution, force majeure.
- risk_score is 0-100 (0 very safe, 100 very risky).
`

const emailPrompt = `Based on this contract, draft a negotiation email.

Contract excerpt:
%s

%s
Tone: %s

Return JSON with keys subject and body only.
`

const questionPrompt = `Answer the question using ONLY the contract text.
If the answer is not present, say "The contract does not specify." Do not invent facts.

Question: %s

Contract Text:
%s
`

func buildAnalysisPrompt(text string, limit int) string {
	return fmt.Sprintf(analysisPrompt, truncate(text, limit))
}

func buildEmailPrompt(req EmailRequest, limit int) string {
	var issues string
	if len(req.Issues) > 0 {
		issues = fmt.Sprintf("Specific issues to address: %s\n", strings.Join(req.Issues, ", "))
	}
	return fmt.Sprintf(emailPrompt, truncate(req.ContractText, limit), issues, ToneInstruction(req.Tone))
}

func buildQuestionPrompt(question, text string, limit int) string {
	return fmt.Sprintf(questionPrompt, question, truncate(text, limit))
}

// truncate keeps the first n characters (runes) of s.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// titleCase upper-cases the first letter of each space separated word.
func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
