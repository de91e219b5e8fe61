package priceapi

import "time"

// Aggregate is the service's crowd-aggregated price for one item.
// Contributors counts distinct submitting identities; the caller must
// not treat an aggregate as validated below its trust floor.
type Aggregate struct {
	Item         int       `json:"item"`
	Price        float64   `json:"price"`
	UpdatedAt    time.Time `json:"updated_at"`
	Contributors int       `json:"contributors"`
}

// Submission is one locally learned price being uploaded.
type Submission struct {
	ClientID   string    `json:"client_id"`
	Item       int       `json:"item"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}
