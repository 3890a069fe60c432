package billing

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const DefaultCheckoutBase = "https://checkout.dodopayments.com/buy"

var (
	ErrMissingRedirect = errors.New("redirect_url is required but not provided")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// LinkParams are the optional checkout query parameters.
type LinkParams struct {
	Quantity         string
	RedirectURL      string
	Email            string
	FirstName        string
	LastName         string
	DisableEmail     string
	DisableFirstName string
	DisableLastName  string
	ShowDiscounts    string
}

// CheckoutLink builds "<base>/<productID>?<params>" for a static checkout.
// Empty parameters are omitted and quantity defaults to 1.
func CheckoutLink(base, productID string, p LinkParams) (string, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return "", fmt.Errorf("product id %w", ErrNotConfigured)
	}
	if p.RedirectURL == "" {
		return "", ErrMissingRedirect
	}
	quantity := 1
	if p.Quantity != "" {
		n, err := strconv.Atoi(p.Quantity)
		if err != nil || n < 1 {
			return "", ErrInvalidQuantity
		}
		quantity = n
	}
	if base == "" {
		base = DefaultCheckoutBase
	}

	params := [][2]string{
		{"quantity", strconv.Itoa(quantity)},
		{"redirect_url", p.RedirectURL},
		{"email", p.Email},
		{"firstName", p.FirstName},
		{"lastName", p.LastName},
		{"disableEmail", p.DisableEmail},
		{"disableFirstName", p.DisableFirstName},
		{"disableLastName", p.DisableLastName},
		{"showDiscounts", p.ShowDiscounts},
	}
	var q []string
	for _, kv := range params {
		if kv[1] == "" {
			continue
		}
		q = append(q, url.QueryEscape(kv[0])+"="+url.QueryEscape(kv[1]))
	}

	link := strings.TrimSuffix(base, "/") + "/" + url.PathEscape(productID)
	if len(q) > 0 {
		link += "?" + strings.Join(q, "&")
	}
	return link, nil
}
