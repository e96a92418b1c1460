package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// TripSearcher answers availability queries and moves trips through their lifecycle
type TripSearcher interface {
	Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)
	UpdateTripStatus(ctx context.Context, ref string, req *models.UpdateTripStatusRequest) (models.TripInstance, error)
}

// SeatReader exposes the seat inventory of a trip
type SeatReader interface {
	GetSeatMap(ctx context.Context, ref string) (*models.SeatMap, error)
	ValidateSelection(ctx context.Context, ref string, passengerCount int, seats []int) (models.TripInstance, error)
}

// TripHandler handles HTTP requests for trip search and seat selection
type TripHandler struct {
	trips  TripSearcher
	seats  SeatReader
	logger *logrus.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(trips TripSearcher, seats SeatReader, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		trips:  trips,
		seats:  seats,
		logger: logger,
	}
}

// SearchTrips handles POST /api/v1/trips/search
// @Summary Search for available trips
// @Tags Trips
// @Accept json
// @Produce json
// @Param search body models.SearchRequest true "Search parameters"
// @Success 200 {object} models.SearchResponse
// @Failure 400 {object} errorBody
// @Router /api/v1/trips/search [post]
func (h *TripHandler) SearchTrips(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid search request")
		respondBadRequest(c, "Invalid request format", err)
		return
	}

	response, err := h.trips.Search(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"origin":         req.Origin,
		"destination":    req.Destination,
		"date":           req.Date,
		"outbound_count": len(response.Outbound),
		"return_count":   len(response.Return),
		"search_time_ms": response.SearchTimeMs,
	}).Info("Search completed")

	c.JSON(http.StatusOK, response)
}

// GetSeatMap handles GET /api/v1/trips/:ref/seats
func (h *TripHandler) GetSeatMap(c *gin.Context) {
	seatMap, err := h.seats.GetSeatMap(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, seatMap)
}

// ValidateSeats handles POST /api/v1/trips/:ref/seats/validate
func (h *TripHandler) ValidateSeats(c *gin.Context) {
	var req models.SeatSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format", err)
		return
	}
	if err := models.ValidateStruct(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	trip, err := h.seats.ValidateSelection(c.Request.Context(), c.Param("ref"), req.PassengerCount, req.Seats)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"valid":  true,
		"trip":   trip,
		"seats":  req.Seats,
	})
}

// UpdateTripStatus handles PATCH /api/v1/trips/:ref/status
func (h *TripHandler) UpdateTripStatus(c *gin.Context) {
	var req models.UpdateTripStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format", err)
		return
	}

	trip, err := h.trips.UpdateTripStatus(c.Request.Context(), c.Param("ref"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"trip":   trip,
	})
}
