package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_PrimaryFields(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"id": "evt_1",
		"type": "payment.completed",
		"data": {
			"customer": {"email": " Buyer@Example.com "},
			"plan": "Pro Monthly",
			"amount": 1500,
			"product_cart": [{"product_id": "pdt_a"}, {"product_id": "pdt_b"}]
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "payment.completed", ev.Type)
	assert.Equal(t, "Buyer@Example.com", ev.Email)
	assert.Equal(t, "Pro Monthly", ev.Plan)
	assert.Equal(t, "1500", ev.Amount)
	assert.Equal(t, []string{"pdt_a", "pdt_b"}, ev.ProductIDs)
}

func TestParseEvent_Fallbacks(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"event_id": "evt_2",
		"event": "subscription.renewed",
		"data": {
			"email": "x@example.com",
			"line_item": {"name": "Free Tier"},
			"price": {"amount": 15.0},
			"product_id": "pdt_sub"
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_2", ev.ID)
	assert.Equal(t, "subscription.renewed", ev.Type)
	assert.Equal(t, "x@example.com", ev.Email)
	assert.Equal(t, "Free Tier", ev.Plan)
	assert.Equal(t, "15", ev.Amount)
	assert.Equal(t, []string{"pdt_sub"}, ev.ProductIDs)
}

func TestParseEvent_NumericID(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event_id": 9007199254740993, "type": "payment.completed"}`))
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", ev.ID)
}

func TestParseEvent_EmptyBody(t *testing.T) {
	ev, err := ParseEvent(nil)
	require.NoError(t, err)
	assert.Equal(t, &Event{}, ev)
}

func TestParseEvent_Invalid(t *testing.T) {
	_, err := ParseEvent([]byte(`{nope`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = ParseEvent([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestPlanTable_CreditsFor(t *testing.T) {
	plans := NewPlanTable(map[string]int{"pdt_team": 50})

	tests := []struct {
		name string
		ev   Event
		want int
	}{
		{"pro plan", Event{Plan: "Pro Monthly"}, 10},
		{"free plan", Event{Plan: "Free Tier"}, 1},
		{"basic no amount", Event{Plan: "Basic"}, 0},
		{"basic cents", Event{Plan: "Basic", Amount: "1500"}, 10},
		{"basic dollars", Event{Plan: "Basic", Amount: "15.00"}, 10},
		{"other amount", Event{Plan: "Basic", Amount: "999"}, 0},
		{"product id wins", Event{Plan: "Free", ProductIDs: []string{"pdt_team"}}, 50},
		{"unknown product falls back", Event{Plan: "PRO", ProductIDs: []string{"pdt_x"}}, 10},
		{"product id case", Event{ProductIDs: []string{"PDT_Team"}}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, plans.CreditsFor(&tt.ev))
		})
	}
}

func TestPlanTable_Replace(t *testing.T) {
	src := map[string]int{"pdt_a": 5}
	plans := NewPlanTable(src)
	src["pdt_a"] = 99
	assert.Equal(t, 5, plans.CreditsFor(&Event{ProductIDs: []string{"pdt_a"}}))

	plans.Replace(map[string]int{"pdt_a": 7, "pdt_b": 1})
	assert.Equal(t, 7, plans.CreditsFor(&Event{ProductIDs: []string{"pdt_a"}}))
	assert.Equal(t, 2, plans.Len())

	plans.Replace(map[string]int{"pdt_teamab12": 25})
	assert.Equal(t, 25, plans.CreditsFor(&Event{ProductIDs: []string{"pdt_TeamAB12"}}))
}

func TestCheckoutLink(t *testing.T) {
	link, err := CheckoutLink("https://checkout.example.com/buy/", "pdt_pro", LinkParams{
		RedirectURL: "https://app.example.com/thank-you",
		Email:       "a b@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"https://checkout.example.com/buy/pdt_pro?quantity=1&redirect_url=https%3A%2F%2Fapp.example.com%2Fthank-you&email=a+b%40example.com",
		link)

	link, err = CheckoutLink("", "pdt_pro", LinkParams{RedirectURL: "r", Quantity: "3", ShowDiscounts: "true"})
	require.NoError(t, err)
	assert.Equal(t, DefaultCheckoutBase+"/pdt_pro?quantity=3&redirect_url=r&showDiscounts=true", link)
}

func TestCheckoutLink_Errors(t *testing.T) {
	_, err := CheckoutLink("", " ", LinkParams{RedirectURL: "r"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.EqualError(t, err, "product id not configured")

	_, err = CheckoutLink("", "pdt", LinkParams{})
	assert.ErrorIs(t, err, ErrMissingRedirect)

	_, err = CheckoutLink("", "pdt", LinkParams{RedirectURL: "r", Quantity: "0"})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}
