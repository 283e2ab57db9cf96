package order

import "time"

// Order statuses. A checkout only ever creates PENDING orders; later
// transitions (payment capture, cancellation, fulfilment) happen elsewhere.
const (
	StatusPending  = "PENDING"
	StatusPaid     = "PAID"
	StatusFailed   = "FAILED"
	StatusCanceled = "CANCELED"
	StatusShipped  = "SHIPPED"
)

type Order struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Total     string    `json:"total"` // NUMERIC -> string
	AddressID string    `json:"address_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"` // unit price at the time of the order
}
