package models

// SeatInfo describes one seat for display
type SeatInfo struct {
	SeatNumber int    `json:"seat_number"`
	Label      string `json:"label"` // row label + column, e.g. "C3"
	IsWindow   bool   `json:"is_window"`
	IsAisle    bool   `json:"is_aisle"`
	Taken      bool   `json:"taken"`
}

// SeatRow is one row, two seats either side of the aisle
type SeatRow struct {
	RowNumber  int        `json:"row_number"`
	RowLabel   string     `json:"row_label"`
	LeftSeats  []SeatInfo `json:"left_seats"`
	RightSeats []SeatInfo `json:"right_seats"`
}

// SeatLayout is the front-to-back seating plan of a trip
type SeatLayout struct {
	TotalSeats  int       `json:"total_seats"`
	SeatsPerRow int       `json:"seats_per_row"`
	Rows        []SeatRow `json:"rows"`
}

// SeatMap is the layout of a trip with its taken seats marked
type SeatMap struct {
	Trip           TripInstance `json:"trip"`
	Layout         SeatLayout   `json:"layout"`
	TakenSeats     []int        `json:"taken_seats"`
	AvailableSeats int          `json:"available_seats"`
}
