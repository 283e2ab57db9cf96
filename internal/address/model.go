package address

import "time"

type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateAddressRequest payload for POST /addresses.
// swagger:model CreateAddressRequest
type CreateAddressRequest struct {
	Name       string `json:"name"        example:"Home"`
	Line1      string `json:"line1"       example:"Av. Siempre Viva 742"`
	Line2      string `json:"line2"`
	City       string `json:"city"        example:"Springfield"`
	PostalCode string `json:"postal_code" example:"12345"`
	Country    string `json:"country"     example:"US"`
}
