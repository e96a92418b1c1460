package models

// LegQuote is the price of one leg: fare x seats
type LegQuote struct {
	Leg     Leg     `json:"leg"`
	TripRef string  `json:"trip_ref"`
	Fare    float64 `json:"fare"`
	Seats   int     `json:"seats"`
	Total   float64 `json:"total"`
}

// FareQuote is the itinerary price; GrandTotal = outbound + return
type FareQuote struct {
	Outbound   LegQuote  `json:"outbound"`
	Return     *LegQuote `json:"return,omitempty"`
	GrandTotal float64   `json:"grand_total"`
	Currency   string    `json:"currency"`
}
