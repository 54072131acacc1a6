package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/futsal-booking/internal/apperr"
	"github.com/iliyamo/futsal-booking/internal/service"
)

// Reconciler is implemented by *service.ReconcileService.
type Reconciler interface {
	HandleGatewayCallback(ctx context.Context, encoded string) (*service.Outcome, error)
	HandleGatewayFailureCallback(ctx context.Context, encoded string) error
}

// PaymentHandler receives the eSewa success and failure redirects. Both
// carry the gateway payload in the base64 "data" query parameter.
type PaymentHandler struct {
	rec Reconciler
}

func NewPaymentHandler(rec Reconciler) *PaymentHandler {
	return &PaymentHandler{rec: rec}
}

// EsewaSuccess reconciles a success redirect. On success the client is given
// the "<facility>/<slot>/<booking>" locator of its confirmed booking.
func (h *PaymentHandler) EsewaSuccess(c echo.Context) error {
	data := c.QueryParam("data")
	if data == "" {
		return respondError(c, apperr.New(apperr.MalformedPayload, "missing data parameter"))
	}
	out, err := h.rec.HandleGatewayCallback(c.Request().Context(), data)
	if err != nil {
		return respondError(c, err)
	}
	msg := "payment verified and booking confirmed"
	if out.AlreadySettled {
		msg = "payment already verified"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":      msg,
		"redirect_url": out.RedirectPath(),
	})
}

// EsewaFailure resets the payment to pending so the customer can retry and
// always answers that the payment did not go through.
func (h *PaymentHandler) EsewaFailure(c echo.Context) error {
	if data := c.QueryParam("data"); data != "" {
		if err := h.rec.HandleGatewayFailureCallback(c.Request().Context(), data); err != nil {
			return respondError(c, err)
		}
	}
	return respondError(c, apperr.New(apperr.PaymentNotCompleted, "payment failed or pending"))
}
