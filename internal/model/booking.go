package model

import "time"

// Booking statuses.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCanceled  = "canceled"
)

// ValidBookingStatus reports whether s is one of the booking statuses.
func ValidBookingStatus(s string) bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCanceled:
		return true
	}
	return false
}

// Booking is a customer's reservation request for a facility slot on a date.
// It is created pending and only payment reconciliation (or an owner) moves
// it to confirmed.
//
// Fields:
//
//	ID         – primary key identifier.
//	CustomerID – user who created the booking.
//	FacilityID – facility being booked.
//	SlotID     – time slot reference (nullable).
//	Email      – contact email given at booking time.
//	Phone      – contact phone given at booking time.
//	Date       – calendar date of play.
//	Time       – display range such as "18:00 - 19:00".
//	Price      – charged price (after the partial-payment rule).
//	Status     – pending, confirmed, completed or canceled.
type Booking struct {
	ID         uint64    `json:"id"`          // bookings.id
	CustomerID uint64    `json:"customer_id"` // bookings.customer_id
	FacilityID uint64    `json:"facility_id"` // bookings.facility_id
	SlotID     *uint64   `json:"slot_id"`     // bookings.slot_id (nullable)
	Email      string    `json:"email"`       // bookings.email
	Phone      string    `json:"phone"`       // bookings.phone
	Date       time.Time `json:"date"`        // bookings.date
	Time       string    `json:"time"`        // bookings.time
	Price      Money     `json:"price"`       // bookings.price
	Status     string    `json:"status"`      // bookings.status
	CreatedAt  time.Time `json:"created_at"`  // bookings.created_at
	UpdatedAt  time.Time `json:"updated_at"`  // bookings.updated_at

	Payment *Payment `json:"payment,omitempty"`
}
