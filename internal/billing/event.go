package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidPayload = errors.New("invalid JSON payload")

// Event is the subset of a payment provider event the processor needs.
// Field names vary between event types, so each one is read from the
// first populated candidate path.
type Event struct {
	ID         string
	Type       string
	Email      string
	Plan       string
	Amount     string
	ProductIDs []string
}

func ParseEvent(body []byte) (*Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil || dec.More() {
		return nil, ErrInvalidPayload
	}
	data, _ := payload["data"].(map[string]any)

	ev := &Event{
		ID:   eventID(payload),
		Type: firstString(payload, "type", "event"),
		Email: strings.TrimSpace(firstString(data,
			"customer.email", "email")),
		Plan: firstString(data,
			"plan", "product.name", "price.name", "line_item.name"),
		Amount: amountText(data),
	}

	if id := firstString(data, "product_id", "product.id"); id != "" {
		ev.ProductIDs = append(ev.ProductIDs, id)
	}
	if cart, ok := data["product_cart"].([]any); ok {
		for _, item := range cart {
			if m, ok := item.(map[string]any); ok {
				if id := firstString(m, "product_id"); id != "" {
					ev.ProductIDs = append(ev.ProductIDs, id)
				}
			}
		}
	}
	return ev, nil
}

// firstString returns the first dotted path in m that holds a non-empty string.
func firstString(m map[string]any, paths ...string) string {
	for _, p := range paths {
		if s, ok := lookup(m, p).(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// eventID accepts string and numeric ids.
func eventID(payload map[string]any) string {
	for _, key := range []string{"id", "event_id"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func lookup(m map[string]any, path string) any {
	var cur any = m
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// amountText renders data.amount (or data.price.amount) the way it was
// sent: numbers without trailing zeros, strings verbatim.
func amountText(data map[string]any) string {
	for _, p := range []string{"amount", "price.amount"} {
		switch v := lookup(data, p).(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil && f != 0 {
				return strconv.FormatFloat(f, 'f', -1, 64)
			}
		case string:
			if v != "" {
				return v
			}
		}
	}
	return ""
}
