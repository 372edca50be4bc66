package domain

import "github.com/shopspring/decimal"

type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingSold      ListingStatus = "sold"
)

// Listing is the animal on sale. Its asking price seeds OriginalPrice on every
// session opened against it.
type Listing struct {
	AnimalID      string          `json:"animal_id"`
	FarmerID      string          `json:"farmer_id"`
	Price         decimal.Decimal `json:"price"`
	Status        ListingStatus   `json:"status"`
	SoldSessionID *string         `json:"sold_session_id,omitempty"`
}
