// Package router registers the HTTP routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/futsal-booking/internal/handler"
	"github.com/iliyamo/futsal-booking/internal/middleware"
	"github.com/iliyamo/futsal-booking/internal/model"
)

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers /v1/auth (no session needed) and /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner, model.RoleCustomer),
	)
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated facility pages behind the
// response cache.
func RegisterPublic(e *echo.Echo, f *handler.FacilityHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/facilities", cache)
	g.GET("/:id", f.Get)
	g.GET("/:id/slots", f.ListSlots)
}

// RegisterPayments registers the eSewa redirect targets. They carry no JWT;
// the payload signature and the independent status check authenticate them.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/payments/esewa", limit)
	g.GET("/success", p.EsewaSuccess)
	g.GET("/failure", p.EsewaFailure)
}
