// Package service holds the booking core: the orchestrator that creates
// bookings and payment intents, the reconciliation engine that settles them
// against the eSewa gateway, manual status transitions and the pending
// payment sweep. Persistence is reached through the narrow interfaces below
// so every multi-row change runs inside one database.TxRunner unit of work.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/futsal-booking/internal/gateway"
	"github.com/iliyamo/futsal-booking/internal/model"
)

// PartialPaymentPercent is the share of the price charged up front for a
// "partial" payment.
const PartialPaymentPercent = 25

// Actor is the authenticated caller as carried by the access token.
type Actor struct {
	ID   uint64
	Role string
}

// FacilityStore is implemented by repository.FacilityRepo.
type FacilityStore interface {
	Create(ctx context.Context, f *model.Facility) error
	GetByID(ctx context.Context, id uint64) (*model.Facility, error)
}

// SlotLedger is implemented by repository.SlotRepo.
type SlotLedger interface {
	Create(ctx context.Context, ts *model.TimeSlot) error
	GetByID(ctx context.Context, id uint64) (*model.TimeSlot, error)
	ListByFacility(ctx context.Context, facilityID uint64) ([]model.TimeSlot, error)
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.TimeSlot, error)
	SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, version uint32, status string) error
	CountConfirmedTx(ctx context.Context, tx *sql.Tx, slotID uint64, date time.Time, excludeBookingID uint64) (int, error)
	CountHoldersTx(ctx context.Context, tx *sql.Tx, slotID uint64, excludeBookingID uint64) (int, error)
}

// BookingStore is implemented by repository.BookingRepo.
type BookingStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error
	ListByCustomer(ctx context.Context, customerID uint64) ([]model.Booking, error)
	ListByFacility(ctx context.Context, facilityID uint64) ([]model.Booking, error)
}

// PaymentStore is implemented by repository.PaymentRepo.
type PaymentStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
	GetByTransactionUUID(ctx context.Context, uuid string) (*model.Payment, error)
	GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error)
	LockByTransactionUUIDTx(ctx context.Context, tx *sql.Tx, uuid string) (*model.Payment, error)
	LockByBookingIDTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Payment, error)
	SettleTx(ctx context.Context, tx *sql.Tx, id uint64, status, transactionCode string) error
	SetRefIDTx(ctx context.Context, tx *sql.Tx, id uint64, refID string) error
	SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Payment, error)
}

// Gateway is implemented by *gateway.Client.
type Gateway interface {
	CheckStatus(ctx context.Context, productCode string, total model.Money, transactionUUID string) (gateway.StatusResult, error)
	InitiationForm(p *model.Payment) gateway.Form
	ProductCode() string
	SecretKey() string
	FormURL() string
}

// EventPublisher is implemented by *queue.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, queueName string, event any) error
}

// ChargedAmount applies the payment-type rule to a list price.
func ChargedAmount(price model.Money, paymentType string) model.Money {
	if paymentType == model.PaymentTypePartial {
		return price.Percent(PartialPaymentPercent)
	}
	return price
}
