package order

import (
	"errors"

	"github.com/shopspring/decimal"
)

// CartItem is a client-submitted line item.
// swagger:model CartItem
type CartItem struct {
	ID       string          `json:"id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Price    decimal.Decimal `json:"price" example:"10.00"`
	Quantity int             `json:"quantity" example:"2"`
}

// AddressRef references a stored shipping address. Fields beyond the id
// are opaque to the checkout flow.
type AddressRef struct {
	ID string `json:"id" example:"addr1"`
}

// CheckoutRequest is the POST /checkout payload.
// swagger:model CheckoutRequest
type CheckoutRequest struct {
	Items           []CartItem  `json:"items"`
	ShippingAddress *AddressRef `json:"shippingAddress"`
}

// CheckoutResponse carries the identifiers the client needs to complete
// payment. ApprovalURL may be absent when the gateway returns no approve
// link.
type CheckoutResponse struct {
	PayPalOrderID string `json:"paypalOrderId"`
	ApprovalURL   string `json:"approvalUrl,omitempty"`
	OrderID       string `json:"orderId"`
}

var (
	ErrNoItems     = errors.New("items must be a non-empty list")
	ErrNoAddress   = errors.New("shippingAddress is required")
	ErrBadQuantity = errors.New("quantity must be a positive integer")
	ErrBadPrice    = errors.New("price must be non-negative")
)

// Validate enforces the request contract. Prices and quantities come from
// the client and are not trusted beyond these checks.
func (r *CheckoutRequest) Validate() error {
	if len(r.Items) == 0 {
		return ErrNoItems
	}
	if r.ShippingAddress == nil || r.ShippingAddress.ID == "" {
		return ErrNoAddress
	}
	for _, it := range r.Items {
		if it.Quantity <= 0 {
			return ErrBadQuantity
		}
		if it.Price.IsNegative() {
			return ErrBadPrice
		}
	}
	return nil
}

// Total sums price*quantity over all items with exact decimal arithmetic.
// The same value is persisted and sent to the gateway, formatted to two
// decimals in both places.
func (r *CheckoutRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
