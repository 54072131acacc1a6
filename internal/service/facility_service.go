package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/apperr"
	"github.com/iliyamo/futsal-booking/internal/model"
)

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// FacilityInput describes a new facility.
type FacilityInput struct {
	Name     string
	Type     string
	Surface  string
	Size     string
	Capacity uint32
	Address  *string
}

// SlotInput describes a new time slot.
type SlotInput struct {
	Day             string
	StartTime       string
	EndTime         string
	Price           model.Money
	DiscountedPrice model.Money
}

// CreateFacility registers an active facility for ownerID.
func (s *BookingService) CreateFacility(ctx context.Context, ownerID uint64, in FacilityInput) (*model.Facility, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Capacity == 0 {
		return nil, apperr.New(apperr.Validation, "name and capacity are required")
	}
	if in.Type == "" {
		in.Type = "Indoor"
	}
	f := &model.Facility{
		OwnerID:  ownerID,
		Name:     in.Name,
		Type:     in.Type,
		Surface:  in.Surface,
		Size:     in.Size,
		Capacity: in.Capacity,
		Status:   model.FacilityActive,
		Address:  in.Address,
	}
	if err := s.facilities.Create(ctx, f); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not create facility", err)
	}
	s.log.Info("facility created", zap.Uint64("facility_id", f.ID), zap.Uint64("owner_id", ownerID))
	return f, nil
}

// GetFacility returns a facility by id.
func (s *BookingService) GetFacility(ctx context.Context, id uint64) (*model.Facility, error) {
	f, err := s.facilities.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "facility not found")
	}
	return f, nil
}

// CreateSlot adds an available slot to a facility the caller owns.
func (s *BookingService) CreateSlot(ctx context.Context, ownerID, facilityID uint64, in SlotInput) (*model.TimeSlot, error) {
	if _, err := s.ownedFacility(ctx, ownerID, facilityID); err != nil {
		return nil, err
	}
	switch in.Day {
	case model.DayWeekdays, model.DayWeekends, model.DayHolidays:
	case "":
		in.Day = model.DayWeekdays
	default:
		return nil, apperr.New(apperr.Validation, "day must be Weekdays, Weekends or Holidays")
	}
	if !clockRe.MatchString(in.StartTime) || !clockRe.MatchString(in.EndTime) {
		return nil, apperr.New(apperr.Validation, "start_time and end_time must be HH:MM")
	}
	start, end := normalizeClock(in.StartTime), normalizeClock(in.EndTime)
	if start >= end {
		return nil, apperr.New(apperr.Validation, "start_time must be before end_time")
	}
	if in.Price <= 0 {
		return nil, apperr.New(apperr.Validation, "price must be positive")
	}
	ts := &model.TimeSlot{
		FacilityID:      facilityID,
		Day:             in.Day,
		StartTime:       start,
		EndTime:         end,
		Price:           in.Price,
		DiscountedPrice: in.DiscountedPrice,
		Status:          model.SlotAvailable,
	}
	if err := s.slots.Create(ctx, ts); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not create time slot", err)
	}
	return ts, nil
}

// ListSlots returns the slots of a facility.
func (s *BookingService) ListSlots(ctx context.Context, facilityID uint64) ([]model.TimeSlot, error) {
	if _, err := s.GetFacility(ctx, facilityID); err != nil {
		return nil, err
	}
	list, err := s.slots.ListByFacility(ctx, facilityID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not list time slots", err)
	}
	return list, nil
}

func normalizeClock(s string) string {
	if len(s) == 5 {
		return s + ":00"
	}
	return s
}
