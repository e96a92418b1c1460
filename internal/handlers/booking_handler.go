package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/middleware"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/services"
)

// Reservations books itineraries and moves them through their lifecycle
type Reservations interface {
	CreateItinerary(ctx context.Context, req *models.CreateItineraryRequest, actor services.Actor) (*models.ItineraryResponse, error)
	ConfirmPayment(ctx context.Context, reference string) (*models.ItineraryResponse, error)
	CancelItinerary(ctx context.Context, reference string, actor services.Actor) (*models.ItineraryResponse, error)
	GetItinerary(ctx context.Context, reference string, actor services.Actor) (*models.ItineraryResponse, error)
}

// TicketRenderer renders a confirmed itinerary as a printable ticket
type TicketRenderer interface {
	RenderItinerary(ctx context.Context, reference string, actor services.Actor) ([]byte, string, error)
}

// BookingHandler handles HTTP requests for itineraries
type BookingHandler struct {
	reservations Reservations
	tickets      TicketRenderer
	logger       *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(reservations Reservations, tickets TicketRenderer, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		reservations: reservations,
		tickets:      tickets,
		logger:       logger,
	}
}

// CreateBooking handles POST /api/v1/bookings
// @Summary Book a one-way or round-trip itinerary
// @Tags Bookings
// @Accept json
// @Produce json
// @Param booking body models.CreateItineraryRequest true "Itinerary"
// @Success 201 {object} models.ItineraryResponse
// @Failure 409 {object} errorBody "Seats taken, trip closed or not enough capacity"
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid booking request")
		respondBadRequest(c, "Invalid request format", err)
		return
	}

	actor := middleware.ActorFrom(c)
	resp, err := h.reservations.CreateItinerary(c.Request.Context(), &req, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"booking_reference": resp.BookingReference,
		"status":            resp.Status,
		"user_id":           actor.UserID,
		"channel":           actor.Channel,
	}).Info("Booking created")

	c.JSON(http.StatusCreated, resp)
}

// GetBooking handles GET /api/v1/bookings/:reference
func (h *BookingHandler) GetBooking(c *gin.Context) {
	resp, err := h.reservations.GetItinerary(c.Request.Context(), c.Param("reference"), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ConfirmBooking handles POST /api/v1/bookings/:reference/confirm
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	resp, err := h.reservations.ConfirmPayment(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelBooking handles POST /api/v1/bookings/:reference/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	resp, err := h.reservations.CancelItinerary(c.Request.Context(), c.Param("reference"), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DownloadTicket handles GET /api/v1/bookings/:reference/ticket
func (h *BookingHandler) DownloadTicket(c *gin.Context) {
	pdf, filename, err := h.tickets.RenderItinerary(c.Request.Context(), c.Param("reference"), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
