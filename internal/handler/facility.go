package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/service"
)

// FacilityService is implemented by *service.BookingService.
type FacilityService interface {
	CreateFacility(ctx context.Context, ownerID uint64, in service.FacilityInput) (*model.Facility, error)
	GetFacility(ctx context.Context, id uint64) (*model.Facility, error)
	CreateSlot(ctx context.Context, ownerID, facilityID uint64, in service.SlotInput) (*model.TimeSlot, error)
	ListSlots(ctx context.Context, facilityID uint64) ([]model.TimeSlot, error)
}

// FacilityHandler serves the facility and time slot endpoints.
type FacilityHandler struct {
	svc FacilityService
}

func NewFacilityHandler(svc FacilityService) *FacilityHandler {
	return &FacilityHandler{svc: svc}
}

type facilityReq struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Type     string  `json:"type" validate:"omitempty,oneof=Indoor Outdoor 'Covered Outdoor'"`
	Surface  string  `json:"surface" validate:"max=100"`
	Size     string  `json:"size" validate:"max=50"`
	Capacity uint32  `json:"capacity" validate:"required,gt=0"`
	Address  *string `json:"address"`
}

type slotReq struct {
	Day             string  `json:"day" validate:"required,oneof=Weekdays Weekends Holidays"`
	StartTime       string  `json:"start_time" validate:"required"`
	EndTime         string  `json:"end_time" validate:"required"`
	Price           float64 `json:"price" validate:"gt=0"`
	DiscountedPrice float64 `json:"discounted_price" validate:"gte=0"`
}

func (h *FacilityHandler) Create(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req facilityReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	f, err := h.svc.CreateFacility(c.Request().Context(), a.ID, service.FacilityInput{
		Name:     req.Name,
		Type:     req.Type,
		Surface:  req.Surface,
		Size:     req.Size,
		Capacity: req.Capacity,
		Address:  req.Address,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *FacilityHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	f, err := h.svc.GetFacility(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// CreateSlot adds a time slot to one of the caller's facilities.
func (h *FacilityHandler) CreateSlot(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	var req slotReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	s, err := h.svc.CreateSlot(c.Request().Context(), a.ID, id, service.SlotInput{
		Day:             req.Day,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Price:           model.MoneyFromFloat(req.Price),
		DiscountedPrice: model.MoneyFromFloat(req.DiscountedPrice),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *FacilityHandler) ListSlots(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	list, err := h.svc.ListSlots(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}
