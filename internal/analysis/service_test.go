package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericksa/contractai/internal/llm"
)

type fakeProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

const goodAnalysis = "```json\n{\"summary\": \"- pays net 30\", \"key_clauses\": [], \"risks\": [], \"risk_score\": 20}\n```"

func TestAnalyze_Success(t *testing.T) {
	p := &fakeProvider{reply: goodAnalysis}
	svc := NewService(p, Options{})

	result, err := svc.Analyze(context.Background(), "This agreement...")
	require.NoError(t, err)
	assert.Equal(t, "- pays net 30", result.Summary)
	assert.Equal(t, Score(20), result.RiskScore)
	assert.Contains(t, p.prompts[0], "This agreement...")
}

func TestAnalyze_TruncatesInput(t *testing.T) {
	p := &fakeProvider{reply: goodAnalysis}
	svc := NewService(p, Options{Limits: Limits{AnalysisChars: 10}})

	_, err := svc.Analyze(context.Background(), "0123456789ABCDEF")
	require.NoError(t, err)
	assert.Contains(t, p.prompts[0], "0123456789")
	assert.NotContains(t, p.prompts[0], "ABCDEF")
}

func TestAnalyze_NotConfigured(t *testing.T) {
	svc := NewService(nil, Options{})
	_, err := svc.Analyze(context.Background(), "text")
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
	assert.False(t, svc.Configured())
	assert.Equal(t, "", svc.ProviderName())
}

func TestAnalyze_EmptyText(t *testing.T) {
	p := &fakeProvider{reply: goodAnalysis}
	svc := NewService(p, Options{})
	_, err := svc.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, p.calls())
}

func TestAnalyze_PropagatesUpstreamFailure(t *testing.T) {
	p := &fakeProvider{err: errors.New("quota exceeded")}
	svc := NewService(p, Options{})

	_, err := svc.Analyze(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestAnalyzeUpload_Degrades(t *testing.T) {
	p := &fakeProvider{err: errors.New("quota exceeded")}
	svc := NewService(p, Options{})

	result, err := svc.AnalyzeUpload(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "AI analysis failed: quota exceeded", result.Summary)
	assert.Empty(t, result.Risks)
	assert.Equal(t, Score(50), result.RiskScore)
}

func TestAnalyze_MalformedReplyFallsBack(t *testing.T) {
	p := &fakeProvider{reply: "Sorry, I can't."}
	svc := NewService(p, Options{CacheTTL: time.Minute})

	result, err := svc.Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnalysis(), result)

	// fallbacks are not cached
	_, err = svc.Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls())
}

func TestAnalyze_Cache(t *testing.T) {
	p := &fakeProvider{reply: goodAnalysis}
	svc := NewService(p, Options{CacheTTL: time.Minute})

	first, err := svc.Analyze(context.Background(), "same contract")
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), "same contract")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.calls())

	_, err = svc.Analyze(context.Background(), "other contract")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls())
}

func TestGenerateEmail_Success(t *testing.T) {
	p := &fakeProvider{reply: "```json\n{\"subject\": \"Re: MSA\", \"body\": \"Hello\"}\n```"}
	svc := NewService(p, Options{})

	email, err := svc.GenerateEmail(context.Background(), EmailRequest{
		ContractText: "contract",
		Tone:         "assertive",
		Issues:       []string{"payment terms", "liability cap"},
	})
	require.NoError(t, err)
	assert.Equal(t, &Email{Subject: "Re: MSA", Body: "Hello", Tone: "assertive"}, email)
	assert.Contains(t, p.prompts[0], "payment terms, liability cap")
	assert.Contains(t, p.prompts[0], toneInstructions[ToneAssertive])
}

func TestGenerateEmail_DefaultToneAndTruncation(t *testing.T) {
	p := &fakeProvider{reply: `{"subject": "s", "body": "b"}`}
	svc := NewService(p, Options{})

	email, err := svc.GenerateEmail(context.Background(), EmailRequest{ContractText: strings.Repeat("a", 5000) + "TAIL"})
	require.NoError(t, err)
	assert.Equal(t, "professional", email.Tone)
	assert.NotContains(t, p.prompts[0], "TAIL")
}

func TestGenerateEmail_DegradesOnFailure(t *testing.T) {
	p := &fakeProvider{err: errors.New("timeout")}
	svc := NewService(p, Options{})

	email, err := svc.GenerateEmail(context.Background(), EmailRequest{ContractText: "c", Tone: "friendly"})
	require.NoError(t, err)
	assert.Equal(t, "Contract Review and Discussion - Friendly Approach", email.Subject)
	assert.Contains(t, email.Body, "timeout")
	assert.Equal(t, "friendly", email.Tone)
}

func TestGenerateEmail_DegradesOnMalformed(t *testing.T) {
	p := &fakeProvider{reply: "Dear counterparty, ..."}
	svc := NewService(p, Options{})

	email, err := svc.GenerateEmail(context.Background(), EmailRequest{ContractText: "c"})
	require.NoError(t, err)
	assert.Equal(t, "Contract Review and Discussion - Professional Approach", email.Subject)
}

func TestGenerateEmail_Propagate(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	svc := NewService(p, Options{Policies: PoliciesFrom(map[string]string{"email": "propagate"})})

	_, err := svc.GenerateEmail(context.Background(), EmailRequest{ContractText: "c"})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestGenerateEmail_NotConfiguredAlwaysSurfaces(t *testing.T) {
	svc := NewService(nil, Options{})
	_, err := svc.GenerateEmail(context.Background(), EmailRequest{ContractText: "c"})
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func TestAnswer(t *testing.T) {
	p := &fakeProvider{reply: "  Net 30 days.\n"}
	svc := NewService(p, Options{})

	answer, err := svc.Answer(context.Background(), "When is payment due?", "Payment is due net 30.")
	require.NoError(t, err)
	assert.Equal(t, "Net 30 days.", answer)
	assert.Contains(t, p.prompts[0], "The contract does not specify.")
	assert.Contains(t, p.prompts[0], "When is payment due?")
}

func TestAnswer_DegradesOnFailure(t *testing.T) {
	p := &fakeProvider{err: errors.New("rate limited")}
	svc := NewService(p, Options{})

	answer, err := svc.Answer(context.Background(), "q", "text")
	require.NoError(t, err)
	assert.Equal(t, "Error answering question: rate limited", answer)
}

func TestAnswer_Validation(t *testing.T) {
	svc := NewService(&fakeProvider{}, Options{})
	_, err := svc.Answer(context.Background(), " ", "text")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	_, err = svc.Answer(context.Background(), "q", "")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = NewService(nil, Options{}).Answer(context.Background(), "q", "text")
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func TestAnalyzeUpload_DegradesWithoutProvider(t *testing.T) {
	svc := NewService(nil, Options{})
	result, err := svc.AnalyzeUpload(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "AI analysis failed: llm api key is not configured", result.Summary)
}

func TestAnalyzeUpload_PropagatePolicy(t *testing.T) {
	svc := NewService(nil, Options{Policies: PoliciesFrom(map[string]string{"upload": "propagate"})})
	_, err := svc.AnalyzeUpload(context.Background(), "text")
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}
