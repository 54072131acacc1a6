package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/futsal-booking/internal/handler"
	"github.com/iliyamo/futsal-booking/internal/middleware"
	"github.com/iliyamo/futsal-booking/internal/model"
)

// RegisterBookings registers /v1/bookings. Creating a booking and starting
// its payment need the CUSTOMER role; reads and status changes are open to
// any authenticated user and the service decides who may act.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/bookings", middleware.JWTAuth(jwtSecret))

	customer := middleware.RequireRole(model.RoleCustomer)
	g.POST("", h.Create, customer, limit)
	g.POST("/:id/initiate-payment", h.InitiatePayment, customer)

	g.GET("/my", h.ListMine)
	g.GET("/:id", h.Get)
	g.PATCH("/:id/status", h.UpdateStatus)
}
