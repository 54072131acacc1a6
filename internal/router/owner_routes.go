package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/futsal-booking/internal/handler"
	"github.com/iliyamo/futsal-booking/internal/middleware"
	"github.com/iliyamo/futsal-booking/internal/model"
)

// RegisterOwner registers OWNER-scoped facility management endpoints.
func RegisterOwner(e *echo.Echo, f *handler.FacilityHandler, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/facilities",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner),
	)
	g.POST("", f.Create)
	g.POST("/:id/slots", f.CreateSlot)
	g.GET("/:id/bookings", b.ListForFacility)
}
