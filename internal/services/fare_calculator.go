package services

import (
	"math"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// FareCalculator prices itineraries. It is pure: the same trips and seat
// counts always produce the same quote.
type FareCalculator struct {
	currency string
}

// NewFareCalculator creates a fare calculator quoting in currency
func NewFareCalculator(currency string) *FareCalculator {
	return &FareCalculator{currency: currency}
}

// LegTotal is fare x seats, rounded to cents
func LegTotal(fare float64, seats int) float64 {
	return roundToCents(fare * float64(seats))
}

// QuoteLeg prices one leg
func (c *FareCalculator) QuoteLeg(leg models.Leg, trip models.TripInstance, seats int) models.LegQuote {
	return models.LegQuote{
		Leg:     leg,
		TripRef: trip.Ref(),
		Fare:    trip.Fare,
		Seats:   seats,
		Total:   LegTotal(trip.Fare, seats),
	}
}

// Quote prices an itinerary. ret is nil for one-way itineraries.
func (c *FareCalculator) Quote(outbound models.TripInstance, outboundSeats int, ret *models.TripInstance, returnSeats int) models.FareQuote {
	quote := models.FareQuote{
		Outbound: c.QuoteLeg(models.LegOutbound, outbound, outboundSeats),
		Currency: c.currency,
	}
	quote.GrandTotal = quote.Outbound.Total

	if ret != nil {
		leg := c.QuoteLeg(models.LegReturn, *ret, returnSeats)
		quote.Return = &leg
		quote.GrandTotal = roundToCents(quote.GrandTotal + leg.Total)
	}

	return quote
}

func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
