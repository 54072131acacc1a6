package model

import "time"

// Payment statuses as stored in payments.payment_status.
const (
	PaymentPending       = "Pending Payment"
	PaymentFullyPaid     = "Fully Paid"
	PaymentPartiallyPaid = "Partially Paid"
	PaymentRefunded      = "Refunded"
)

// Payment types chosen at booking time.
const (
	PaymentTypeFull    = "full"
	PaymentTypePartial = "partial"
)

// Payment is the one-to-one accounting record of a booking. TotalAmount is
// fixed when the row is created; afterwards only Status, TransactionCode and
// RefID change. TransactionUUID correlates the outbound initiation with the
// gateway callback.
type Payment struct {
	ID              uint64    `json:"id"`
	BookingID       uint64    `json:"booking_id"`
	Amount          Money     `json:"amount"`
	TaxAmount       Money     `json:"tax_amount"`
	ServiceCharge   Money     `json:"service_charge"`
	DeliveryCharge  Money     `json:"delivery_charge"`
	TotalAmount     Money     `json:"total_amount"`
	TransactionUUID string    `json:"transaction_uuid"`
	Status          string    `json:"payment_status"`
	TransactionCode *string   `json:"transaction_code"`
	RefID           *string   `json:"ref_id"`
	Type            string    `json:"payment_type"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Settled reports whether the payment has reached a terminal accounting
// state that gateway redirects must not downgrade.
func (p *Payment) Settled() bool {
	return p.Status == PaymentFullyPaid || p.Status == PaymentRefunded
}
