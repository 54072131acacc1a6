// Package queue defines the booking events published to RabbitMQ and the
// consumer that writes them to the booking audit log.
package queue

// Queue names; the default exchange routes by queue name.
const (
	BookingConfirmedQueue = "booking.confirmed"
	BookingCanceledQueue  = "booking.canceled"
)

// BookingConfirmedEvent is published after a payment reconciliation commits
// a confirmed booking. It carries enough for downstream consumers to log or
// notify without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID       uint64 `json:"booking_id"`
	CustomerID      uint64 `json:"customer_id"`
	FacilityID      uint64 `json:"facility_id"`
	SlotID          uint64 `json:"slot_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	TransactionUUID string `json:"transaction_uuid"`
	TransactionCode string `json:"transaction_code"`
	RefID           string `json:"ref_id"`
	TotalAmount     string `json:"total_amount"`
	PaymentType     string `json:"payment_type"`
	ConfirmedAt     string `json:"confirmed_at"`
}

// BookingCanceledEvent is published when a booking is canceled. RefundDue is
// set when money was captured for it and has to be returned out of band.
type BookingCanceledEvent struct {
	BookingID       uint64 `json:"booking_id"`
	CustomerID      uint64 `json:"customer_id"`
	FacilityID      uint64 `json:"facility_id"`
	TransactionUUID string `json:"transaction_uuid"`
	TotalAmount     string `json:"total_amount"`
	Reason          string `json:"reason"`
	RefundDue       bool   `json:"refund_due"`
	CanceledAt      string `json:"canceled_at"`
}
