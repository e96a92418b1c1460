package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// Error codes returned in the "code" field of error bodies
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeCapacity           = "CAPACITY_EXCEEDED"
	CodeSeatConflict       = "SEAT_CONFLICT"
	CodeReservationExpired = "RESERVATION_EXPIRED"
	CodeBookingState       = "INVALID_BOOKING_STATE"
	CodeTripUnavailable    = "TRIP_UNAVAILABLE"
	CodePartialBooking     = "PARTIAL_BOOKING"
	CodeInsufficientPoints = "INSUFFICIENT_POINTS"
	CodeNonPositivePoints  = "NON_POSITIVE_POINTS"
	CodeInternal           = "INTERNAL_ERROR"
)

// errorBody is the shape of every error response
type errorBody struct {
	Status  string      `json:"status"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// classify maps a domain error to its HTTP status, code and client details
func classify(err error) (int, string, interface{}) {
	var (
		validationErr   *models.ValidationError
		notFoundErr     *models.NotFoundError
		capacityErr     *models.CapacityError
		seatErr         *models.SeatConflictError
		expiredErr      *models.ReservationExpiredError
		stateErr        *models.BookingStateError
		unavailableErr  *models.TripUnavailableError
		partialErr      *models.PartialBookingError
		insufficientErr *models.InsufficientPointsError
		nonPositiveErr  *models.NonPositivePointsError
	)

	// PartialBookingError wraps the leg failure, so it is checked first
	switch {
	case errors.As(err, &partialErr):
		details := gin.H{"failed_leg": partialErr.FailedLeg, "rolled_back": partialErr.RolledBack}
		if partialErr.Cause != nil {
			_, causeCode, _ := classify(partialErr.Cause)
			details["cause"] = causeCode
		}
		return http.StatusConflict, CodePartialBooking, details
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, CodeValidation, gin.H{"field": validationErr.Field}
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, CodeNotFound, gin.H{"resource": notFoundErr.Resource}
	case errors.As(err, &capacityErr):
		return http.StatusConflict, CodeCapacity, gin.H{
			"kind":      capacityErr.Kind,
			"requested": capacityErr.Requested,
			"available": capacityErr.Available,
		}
	case errors.As(err, &seatErr):
		return http.StatusConflict, CodeSeatConflict, gin.H{"trip_ref": seatErr.TripRef, "seats": seatErr.Seats}
	case errors.As(err, &expiredErr):
		return http.StatusGone, CodeReservationExpired, gin.H{
			"booking_reference": expiredErr.Reference,
			"expired_at":        expiredErr.ExpiredAt,
		}
	case errors.As(err, &stateErr):
		return http.StatusConflict, CodeBookingState, gin.H{"status": stateErr.Status}
	case errors.As(err, &unavailableErr):
		return http.StatusConflict, CodeTripUnavailable, gin.H{"trip_ref": unavailableErr.TripRef, "status": unavailableErr.Status}
	case errors.As(err, &insufficientErr):
		return http.StatusUnprocessableEntity, CodeInsufficientPoints, gin.H{
			"requested": insufficientErr.Requested,
			"available": insufficientErr.Available,
		}
	case errors.As(err, &nonPositiveErr):
		return http.StatusUnprocessableEntity, CodeNonPositivePoints, gin.H{
			"requested": nonPositiveErr.Requested,
			"available": nonPositiveErr.Available,
		}
	default:
		return http.StatusInternalServerError, CodeInternal, nil
	}
}

// respondError writes the error response for err. Internal errors are logged
// with their cause and returned to the client without it.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	status, code, details := classify(err)

	entry := logger.WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"code":   code,
		"status": status,
	}).WithError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		entry.Error("Request failed")
		message = "Something went wrong. Please try again later."
	} else {
		entry.Debug("Request rejected")
	}

	_ = c.Error(err)
	c.JSON(status, errorBody{
		Status:  "error",
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondBadRequest is used when the body or a path parameter cannot be parsed
func respondBadRequest(c *gin.Context, message string, err error) {
	body := errorBody{Status: "error", Code: CodeInvalidRequest, Message: message}
	if err != nil {
		body.Details = gin.H{"error": err.Error()}
	}
	c.JSON(http.StatusBadRequest, body)
}
