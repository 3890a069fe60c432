// Package billing verifies payment provider webhooks, turns payment events
// into credit grants and builds checkout links.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericksa/contractai/internal/audit"
	"github.com/ericksa/contractai/internal/ledger"
)

var ErrNotConfigured = errors.New("not configured")

// Event types that grant credits. Everything else, including
// subscription.canceled, is acknowledged without a grant.
var grantingEvents = map[string]bool{
	"payment.completed":      true,
	"checkout.completed":     true,
	"subscription.activated": true,
	"subscription.renewed":   true,
}

// Result is the webhook response body.
type Result struct {
	Duplicate bool
	Granted   int
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Duplicate {
		return json.Marshal(map[string]any{"ok": true, "duplicate": true})
	}
	return json.Marshal(map[string]any{"ok": true, "granted": r.Granted})
}

type ProcessorOptions struct {
	Secret    string
	Tolerance time.Duration
	Ledger    ledger.Ledger
	Tracker   ledger.Tracker
	Plans     *PlanTable
	Auditor   *audit.Auditor
	Logger    *slog.Logger
}

// Processor applies verified webhook deliveries to the credit ledger at
// most once per event id.
type Processor struct {
	verifier *Verifier
	ledger   ledger.Ledger
	tracker  ledger.Tracker
	plans    *PlanTable
	auditor  *audit.Auditor
	logger   *slog.Logger
}

func NewProcessor(opts ProcessorOptions) *Processor {
	p := &Processor{
		ledger:  opts.Ledger,
		tracker: opts.Tracker,
		plans:   opts.Plans,
		auditor: opts.Auditor,
		logger:  opts.Logger,
	}
	if opts.Secret != "" {
		p.verifier = NewVerifier(opts.Secret, opts.Tolerance)
	}
	if p.plans == nil {
		p.plans = NewPlanTable(nil)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Handle verifies, deduplicates and applies one delivery. Nothing is read
// from or written to the stores unless the signature is valid.
//
// The event id is claimed before any grant, so overlapping redeliveries
// grant once and the event stays recorded even when the grant fails.
// Events without an id in the payload are tracked by their webhook-id.
func (p *Processor) Handle(ctx context.Context, h http.Header, body []byte) (*Result, error) {
	if p.verifier == nil {
		return nil, fmt.Errorf("webhook secret %w", ErrNotConfigured)
	}
	if err := p.verifier.Verify(h, body); err != nil {
		p.logger.Warn("webhook rejected", "webhook_id", h.Get(HeaderID), "error", err)
		p.auditor.Log(audit.KindWebhook, h.Get(HeaderID), string(body), "rejected", err)
		return nil, err
	}

	ev, err := ParseEvent(body)
	if err != nil {
		return nil, err
	}
	if ev.ID == "" {
		ev.ID = h.Get(HeaderID)
	}

	claimed, err := p.tracker.Claim(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		p.logger.Info("duplicate webhook", "event_id", ev.ID, "type", ev.Type)
		p.auditor.Log(audit.KindWebhook, ev.ID, ev.Type, "duplicate", nil)
		return &Result{Duplicate: true}, nil
	}

	// A claimed event is never retried, so the grant must not be cut short
	// by the caller going away.
	granted, err := p.apply(context.WithoutCancel(ctx), ev)
	p.logger.Info("webhook processed",
		"event_id", ev.ID,
		"type", ev.Type,
		"plan", ev.Plan,
		"email", ev.Email,
		"granted", granted,
	)
	p.auditor.Log(audit.KindWebhook, ev.ID, ev.Type, fmt.Sprintf("granted=%d email=%s", granted, ev.Email), err)
	if err != nil {
		return nil, err
	}
	return &Result{Granted: granted}, nil
}

func (p *Processor) apply(ctx context.Context, ev *Event) (int, error) {
	if !grantingEvents[ev.Type] {
		return 0, nil
	}
	if ev.Email == "" {
		p.logger.Warn("webhook has no customer email, skipping grant", "event_id", ev.ID, "type", ev.Type)
		return 0, nil
	}
	credits := p.plans.CreditsFor(ev)
	if credits <= 0 {
		return 0, nil
	}
	if _, err := p.ledger.Add(ctx, ev.Email, credits); err != nil {
		return 0, fmt.Errorf("failed to grant credits: %w", err)
	}
	return credits, nil
}
