package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/futsal-booking/internal/apperr"
	"github.com/iliyamo/futsal-booking/internal/middleware"
	"github.com/iliyamo/futsal-booking/internal/service"
)

// respondError renders err as {"error","kind","retryable"} with the HTTP
// status of its kind. Unclassified errors become a 500 with a generic
// message.
func respondError(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		c.Logger().Error(err)
	}
	return c.JSON(kind.Status(), echo.Map{
		"error":     apperr.Message(err),
		"kind":      kind,
		"retryable": kind.Retryable(),
	})
}

func badRequest(c echo.Context, msg string) error {
	return respondError(c, apperr.New(apperr.Validation, msg))
}

// bindValid binds the request body into dst and runs the validator on it.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.New(apperr.Validation, "invalid body")
	}
	if err := c.Validate(dst); err != nil {
		return apperr.Wrap(apperr.Validation, err.Error(), err)
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// actor returns the authenticated caller. Routes using it sit behind JWTAuth.
func actor(c echo.Context) (service.Actor, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{ID: id, Role: middleware.Role(c)}, true
}

func unauthorized(c echo.Context) error {
	return respondError(c, apperr.New(apperr.Unauthorized, "authentication required"))
}
