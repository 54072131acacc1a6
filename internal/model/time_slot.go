package model

import "time"

// Slot statuses.
const (
	SlotAvailable   = "available"
	SlotBooked      = "booked"
	SlotUnavailable = "unavailable"
)

// Day categories a slot applies to.
const (
	DayWeekdays = "Weekdays"
	DayWeekends = "Weekends"
	DayHolidays = "Holidays"
)

// TimeSlot is a recurring bookable window on a facility. Status is either
// free for booking or held by a confirmed booking; owners may also take a
// slot out of service with "unavailable".
//
// Fields:
//
//	ID              – primary key identifier.
//	FacilityID      – owning facility.
//	Day             – Weekdays, Weekends or Holidays.
//	StartTime       – "HH:MM:SS" start of the window.
//	EndTime         – "HH:MM:SS" end of the window.
//	Price           – list price.
//	DiscountedPrice – promotional price.
//	Status          – available, booked or unavailable.
//	Version         – optimistic locking counter, bumped on every status write.
type TimeSlot struct {
	ID              uint64    `json:"id"`               // time_slots.id
	FacilityID      uint64    `json:"facility_id"`      // time_slots.facility_id
	Day             string    `json:"day"`              // time_slots.day
	StartTime       string    `json:"start_time"`       // time_slots.start_time
	EndTime         string    `json:"end_time"`         // time_slots.end_time
	Price           Money     `json:"price"`            // time_slots.price
	DiscountedPrice Money     `json:"discounted_price"` // time_slots.discounted_price
	Status          string    `json:"status"`           // time_slots.status
	Version         uint32    `json:"-"`                // time_slots.version
	CreatedAt       time.Time `json:"created_at"`       // time_slots.created_at
	UpdatedAt       time.Time `json:"updated_at"`       // time_slots.updated_at
}
