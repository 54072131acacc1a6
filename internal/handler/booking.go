package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/service"
)

// BookingService is implemented by *service.BookingService.
type BookingService interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error)
	InitiatePayment(ctx context.Context, customerID, bookingID uint64) (*service.PaymentInitiation, error)
	GetBooking(ctx context.Context, actor service.Actor, id uint64) (*model.Booking, error)
	ListMyBookings(ctx context.Context, customerID uint64) ([]model.Booking, error)
	ListFacilityBookings(ctx context.Context, ownerID, facilityID uint64) ([]model.Booking, error)
}

// StatusUpdater is implemented by *service.ReconcileService.
type StatusUpdater interface {
	UpdateBookingStatus(ctx context.Context, actor service.Actor, bookingID uint64, status string) (*model.Booking, error)
}

// BookingHandler serves /v1/bookings and the owner's facility booking list.
type BookingHandler struct {
	bookings BookingService
	status   StatusUpdater
}

func NewBookingHandler(bookings BookingService, status StatusUpdater) *BookingHandler {
	return &BookingHandler{bookings: bookings, status: status}
}

type createBookingReq struct {
	FacilityID  uint64  `json:"facility_id" validate:"required"`
	SlotID      uint64  `json:"slot_id" validate:"required"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string  `json:"time" validate:"max=50"`
	Price       float64 `json:"price" validate:"gt=0"`
	PaymentType string  `json:"payment_type" validate:"required,oneof=full partial"`
	Email       string  `json:"email" validate:"omitempty,email"`
	Phone       string  `json:"phone" validate:"max=20"`
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

// Create stores a pending booking and its pending payment. The response
// includes the transaction_uuid the client pays against.
func (h *BookingHandler) Create(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req createBookingReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	b, err := h.bookings.CreateBooking(c.Request().Context(), service.CreateBookingInput{
		CustomerID:  a.ID,
		FacilityID:  req.FacilityID,
		SlotID:      req.SlotID,
		Date:        date,
		Time:        req.Time,
		Price:       model.MoneyFromFloat(req.Price),
		PaymentType: req.PaymentType,
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// InitiatePayment returns the signed eSewa form for a pending booking.
func (h *BookingHandler) InitiatePayment(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	form, err := h.bookings.InitiatePayment(c.Request().Context(), a.ID, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

func (h *BookingHandler) Get(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.bookings.GetBooking(c.Request().Context(), a, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) ListMine(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.bookings.ListMyBookings(c.Request().Context(), a.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// ListForFacility lists bookings on one of the caller's facilities.
func (h *BookingHandler) ListForFacility(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	list, err := h.bookings.ListFacilityBookings(c.Request().Context(), a.ID, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// UpdateStatus moves a booking to a new status. Ownership rules live in the
// service.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req statusReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.status.UpdateBookingStatus(c.Request().Context(), a, id, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking status updated", "booking": b})
}
