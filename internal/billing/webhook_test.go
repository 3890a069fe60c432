package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericksa/contractai/internal/ledger"
)

func newTestProcessor(t *testing.T) (*Processor, *ledger.FileStore) {
	t.Helper()
	store, err := ledger.NewFileStore(t.TempDir())
	require.NoError(t, err)
	p := NewProcessor(ProcessorOptions{
		Secret:    testSecret,
		Tolerance: 5 * time.Minute,
		Ledger:    store,
		Tracker:   store,
		Plans:     NewPlanTable(map[string]int{"pdt_team": 25}),
	})
	return p, store
}

func signed(body string) (http.Header, []byte) {
	b := []byte(body)
	return NewVerifier(testSecret, 0).Sign("msg_"+fmt.Sprint(len(b)), time.Now(), b), b
}

func credits(t *testing.T, s ledger.Ledger, email string) int {
	t.Helper()
	n, err := s.Get(context.Background(), email)
	require.NoError(t, err)
	return n
}

func seen(t *testing.T, s ledger.Tracker, id string) bool {
	t.Helper()
	ok, err := s.Has(context.Background(), id)
	require.NoError(t, err)
	return ok
}

const proPayment = `{"id":"evt_1","type":"payment.completed","data":{"customer":{"email":"Buyer@Example.com"},"plan":"Pro Monthly"}}`

func TestHandle_GrantsCredits(t *testing.T) {
	p, store := newTestProcessor(t)
	h, body := signed(proPayment)

	res, err := p.Handle(context.Background(), h, body)
	require.NoError(t, err)
	assert.Equal(t, &Result{Granted: 10}, res)
	assert.Equal(t, 10, credits(t, store, "buyer@example.com"))
	assert.True(t, seen(t, store, "evt_1"))
}

func TestHandle_Idempotent(t *testing.T) {
	p, store := newTestProcessor(t)
	h, body := signed(proPayment)

	_, err := p.Handle(context.Background(), h, body)
	require.NoError(t, err)
	res, err := p.Handle(context.Background(), h, body)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 10, credits(t, store, "buyer@example.com"))

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"duplicate":true}`, string(out))
}

func TestHandle_RejectsBeforeMutation(t *testing.T) {
	p, store := newTestProcessor(t)
	h, body := signed(proPayment)
	h.Set(HeaderSignature, "v1,Zm9yZ2Vk")

	_, err := p.Handle(context.Background(), h, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, 0, credits(t, store, "buyer@example.com"))
	assert.False(t, seen(t, store, "evt_1"))

	_, err = p.Handle(context.Background(), http.Header{}, body)
	assert.ErrorIs(t, err, ErrMissingSignature)
	assert.False(t, seen(t, store, "evt_1"))
}

func TestHandle_NotConfigured(t *testing.T) {
	p := NewProcessor(ProcessorOptions{})
	h, body := signed(proPayment)
	_, err := p.Handle(context.Background(), h, body)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.EqualError(t, err, "webhook secret not configured")
}

func TestHandle_InvalidJSON(t *testing.T) {
	p, _ := newTestProcessor(t)
	h, body := signed(`{"id": `)
	_, err := p.Handle(context.Background(), h, body)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestHandle_EventClassification(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		granted int
	}{
		{"checkout free", `{"id":"e","type":"checkout.completed","data":{"email":"a@x.io","plan":"Free Tier"}}`, 1},
		{"subscription renewed", `{"id":"e","type":"subscription.renewed","data":{"email":"a@x.io","product":{"name":"Pro"}}}`, 10},
		{"subscription activated by product", `{"id":"e","type":"subscription.activated","data":{"email":"a@x.io","product_id":"pdt_team"}}`, 25},
		{"canceled", `{"id":"e","type":"subscription.canceled","data":{"email":"a@x.io","plan":"Pro"}}`, 0},
		{"unknown type", `{"id":"e","type":"refund.succeeded","data":{"email":"a@x.io","plan":"Pro"}}`, 0},
		{"basic plan", `{"id":"e","type":"payment.completed","data":{"email":"a@x.io","plan":"Basic"}}`, 0},
		{"no email", `{"id":"e","type":"payment.completed","data":{"plan":"Pro"}}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store := newTestProcessor(t)
			h, body := signed(tt.payload)

			res, err := p.Handle(context.Background(), h, body)
			require.NoError(t, err)
			assert.Equal(t, tt.granted, res.Granted)
			assert.Equal(t, tt.granted, credits(t, store, "a@x.io"))
			assert.True(t, seen(t, store, "e"))
		})
	}
}

func TestHandle_NoEventIDUsesWebhookID(t *testing.T) {
	p, store := newTestProcessor(t)
	h, body := signed(`{"type":"payment.completed","data":{"email":"a@x.io","plan":"Pro"}}`)

	res, err := p.Handle(context.Background(), h, body)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Granted)
	res, err = p.Handle(context.Background(), h, body)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 10, credits(t, store, "a@x.io"))
	assert.True(t, seen(t, store, h.Get(HeaderID)))
}

func TestHandle_NumericEventID(t *testing.T) {
	p, store := newTestProcessor(t)
	h, body := signed(`{"id":12345,"type":"payment.completed","data":{"email":"a@x.io","plan":"Pro"}}`)

	_, err := p.Handle(context.Background(), h, body)
	require.NoError(t, err)
	assert.True(t, seen(t, store, "12345"))
}

func TestHandle_ConcurrentRedelivery(t *testing.T) {
	sqlStore, err := ledger.OpenSQL("sqlite3", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })
	fileStore, err := ledger.NewFileStore(t.TempDir())
	require.NoError(t, err)

	for name, store := range map[string]ledger.Store{"file": fileStore, "sqlite": sqlStore} {
		t.Run(name, func(t *testing.T) {
			p := NewProcessor(ProcessorOptions{Secret: testSecret, Ledger: store, Tracker: store})
			h, body := signed(proPayment)

			var (
				wg         sync.WaitGroup
				mu         sync.Mutex
				duplicates int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := p.Handle(context.Background(), h, body)
					if !assert.NoError(t, err) {
						return
					}
					if res.Duplicate {
						mu.Lock()
						duplicates++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 7, duplicates)
			assert.Equal(t, 10, credits(t, store, "buyer@example.com"))
		})
	}
}

// cancelingLedger cancels the delivery's context while the grant is in flight.
type cancelingLedger struct {
	ledger.Ledger
	cancel context.CancelFunc
}

func (l cancelingLedger) Add(ctx context.Context, email string, amount int) (int, error) {
	l.cancel()
	return l.Ledger.Add(ctx, email, amount)
}

func TestHandle_ClientGoneDuringGrant(t *testing.T) {
	store, err := ledger.OpenSQL("sqlite3", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewProcessor(ProcessorOptions{
		Secret:  testSecret,
		Ledger:  cancelingLedger{Ledger: store, cancel: cancel},
		Tracker: store,
	})
	h, body := signed(proPayment)

	res, err := p.Handle(ctx, h, body)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Granted)
	assert.True(t, seen(t, store, "evt_1"))

	res, err = p.Handle(context.Background(), h, body)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 10, credits(t, store, "buyer@example.com"))
}

type failingLedger struct{}

func (failingLedger) Get(context.Context, string) (int, error)      { return 0, nil }
func (failingLedger) Add(context.Context, string, int) (int, error) { return 0, errors.New("disk full") }
func (failingLedger) Set(context.Context, string, int) error        { return nil }

func TestHandle_MarksProcessedWhenGrantFails(t *testing.T) {
	store, err := ledger.NewFileStore(t.TempDir())
	require.NoError(t, err)
	p := NewProcessor(ProcessorOptions{
		Secret:  testSecret,
		Ledger:  failingLedger{},
		Tracker: store,
	})
	h, body := signed(proPayment)

	_, err = p.Handle(context.Background(), h, body)
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, seen(t, store, "evt_1"))
}

func TestResult_JSON(t *testing.T) {
	out, err := json.Marshal(&Result{Granted: 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"granted":0}`, string(out))
}
