package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/middleware"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/services"
)

// Routes bundles the handlers mounted by RegisterRoutes
type Routes struct {
	Health  *HealthHandler
	Trips   *TripHandler
	Booking *BookingHandler
	Loyalty *LoyaltyHandler
	Jobs    *JobsHandler
	Tokens  middleware.TokenValidator
	Logger  *logrus.Logger
}

// RegisterRoutes mounts the API on router
func RegisterRoutes(router *gin.Engine, r Routes) {
	router.GET("/health", r.Health.Health)

	auth := middleware.AuthMiddleware(r.Tokens, r.Logger)
	staff := middleware.RequireRole(services.RoleAgent, services.RoleAdmin)
	operators := middleware.RequireRole(services.RoleOperator, services.RoleAdmin)
	admins := middleware.RequireRole(services.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", r.Health.Health)

		// Availability is public
		trips := v1.Group("/trips")
		{
			trips.POST("/search", r.Trips.SearchTrips)
			trips.GET("/:ref/seats", r.Trips.GetSeatMap)
			trips.POST("/:ref/seats/validate", r.Trips.ValidateSeats)
			trips.PATCH("/:ref/status", auth, operators, r.Trips.UpdateTripStatus)
		}

		bookings := v1.Group("/bookings", auth)
		{
			bookings.POST("", r.Booking.CreateBooking)
			bookings.GET("/:reference", r.Booking.GetBooking)
			bookings.GET("/:reference/ticket", r.Booking.DownloadTicket)
			bookings.POST("/:reference/cancel", r.Booking.CancelBooking)
			bookings.POST("/:reference/confirm", staff, r.Booking.ConfirmBooking)
		}

		loyalty := v1.Group("/loyalty", auth)
		{
			loyalty.GET("/account", r.Loyalty.GetAccount)
			loyalty.GET("/transactions", r.Loyalty.ListTransactions)
			loyalty.POST("/redeem", r.Loyalty.RedeemPoints)
		}

		admin := v1.Group("/admin", auth, admins)
		{
			admin.POST("/jobs/materialize", r.Jobs.MaterializeTrips)
			admin.POST("/jobs/expire-reservations", r.Jobs.ExpireReservations)
			admin.POST("/cache/templates/invalidate", r.Jobs.InvalidateTemplates)
			admin.POST("/loyalty/:customer_id/adjust", r.Loyalty.AdjustPoints)
		}
	}
}
