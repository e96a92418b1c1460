package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// ItineraryReader loads an itinerary the actor may see
type ItineraryReader interface {
	GetItinerary(ctx context.Context, reference string, actor Actor) (*models.ItineraryResponse, error)
}

// TicketService renders e-tickets for confirmed itineraries
type TicketService struct {
	itineraries ItineraryReader
	location    *time.Location
	currency    string
	logger      *logrus.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(itineraries ItineraryReader, loc *time.Location, currency string, logger *logrus.Logger) *TicketService {
	if loc == nil {
		loc = time.UTC
	}
	return &TicketService{
		itineraries: itineraries,
		location:    loc,
		currency:    currency,
		logger:      logger,
	}
}

// RenderItinerary returns the PDF ticket and its file name. Only fully
// confirmed itineraries are ticketed.
func (s *TicketService) RenderItinerary(ctx context.Context, reference string, actor Actor) ([]byte, string, error) {
	itinerary, err := s.itineraries.GetItinerary(ctx, reference, actor)
	if err != nil {
		return nil, "", err
	}

	if itinerary.Status != models.BookingStatusConfirmed {
		return nil, "", &models.BookingStateError{
			Reference: reference,
			Status:    itinerary.Status,
			Action:    "issue ticket",
		}
	}

	data, err := s.buildPDF(itinerary)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render ticket: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_reference": reference,
		"bookings":          len(itinerary.Bookings),
	}).Info("Ticket issued")

	return data, fmt.Sprintf("ticket-%s.pdf", reference), nil
}

func (s *TicketService) buildPDF(itinerary *models.ItineraryResponse) ([]byte, error) {
	bookings := make([]models.BookingView, len(itinerary.Bookings))
	copy(bookings, itinerary.Bookings)
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Leg != bookings[j].Leg {
			return bookings[i].Leg == models.LegOutbound
		}
		return bookings[i].SeatNumber < bookings[j].SeatNumber
	})

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+itinerary.BookingReference, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, fmt.Sprintf("Booking reference : %s", itinerary.BookingReference))
	pdf.Ln(10)

	var total float64
	var leg models.Leg
	for _, b := range bookings {
		if b.Leg != leg {
			leg = b.Leg
			pdf.SetFont("Helvetica", "B", 13)
			pdf.Cell(0, 8, fmt.Sprintf("%s: %s -> %s", legTitle(leg), b.Origin, b.Destination))
			pdf.Ln(8)
			pdf.SetFont("Helvetica", "", 11)
			pdf.Cell(0, 6, fmt.Sprintf("Departs %s   Arrives %s   Bus %s",
				b.DepartureAt.In(s.location).Format("Mon 02 Jan 2006 15:04"),
				b.ArrivalAt.In(s.location).Format("15:04"),
				b.BusID))
			pdf.Ln(8)
		}

		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 6, fmt.Sprintf("  Seat %-3d  %-30s  %s  %.2f %s",
			b.SeatNumber, b.PassengerName, b.PassengerPhone, b.Fare, s.currency))
		pdf.Ln(6)
		total += b.Fare
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, fmt.Sprintf("Total paid: %.2f %s", roundToCents(total), s.currency))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Present this ticket and a valid ID at boarding. Seats are held until departure.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func legTitle(leg models.Leg) string {
	if leg == models.LegReturn {
		return "Return"
	}
	return "Outbound"
}
