package models

// SearchRequest represents a passenger's trip search
type SearchRequest struct {
	Origin         string   `json:"origin" validate:"required,max=100"`
	Destination    string   `json:"destination" validate:"required,max=100"`
	Date           string   `json:"date" validate:"required,datetime=2006-01-02"`
	ReturnDate     *string  `json:"return_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PassengerCount int      `json:"passenger_count" validate:"required,min=1,max=10"`
	TripType       TripType `json:"trip_type,omitempty" validate:"omitempty,oneof=one_way round_trip"`
}

// SearchDetails echoes the normalized search back to the client
type SearchDetails struct {
	Origin         string  `json:"origin"`
	Destination    string  `json:"destination"`
	Date           string  `json:"date"`
	ReturnDate     *string `json:"return_date,omitempty"`
	PassengerCount int     `json:"passenger_count"`
	Timezone       string  `json:"timezone"`
}

// SearchResponse holds ordered outbound and optional return trip lists
type SearchResponse struct {
	Status        string         `json:"status"`
	SearchDetails SearchDetails  `json:"search_details"`
	Outbound      []TripInstance `json:"outbound"`
	Return        []TripInstance `json:"return,omitempty"`
	SearchTimeMs  int64          `json:"search_time_ms"`
}

// SeatSelectionRequest validates a seat choice against a trip
type SeatSelectionRequest struct {
	PassengerCount int   `json:"passenger_count" validate:"required,min=1,max=10"`
	Seats          []int `json:"seats" validate:"dive,gte=1"`
}
