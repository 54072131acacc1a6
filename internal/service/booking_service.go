package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/apperr"
	"github.com/iliyamo/futsal-booking/internal/database"
	"github.com/iliyamo/futsal-booking/internal/gateway"
	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/repository"
)

// BookingService is the booking orchestrator. It records booking intents
// with their payment rows and hands out signed initiation forms; it never
// touches slot availability, which only reconciliation may change.
type BookingService struct {
	tx         database.TxRunner
	facilities FacilityStore
	slots      SlotLedger
	bookings   BookingStore
	payments   PaymentStore
	gw         Gateway
	log        *zap.Logger
}

// NewBookingService wires the orchestrator.
func NewBookingService(tx database.TxRunner, facilities FacilityStore, slots SlotLedger, bookings BookingStore,
	payments PaymentStore, gw Gateway, log *zap.Logger) *BookingService {
	return &BookingService{
		tx:         tx,
		facilities: facilities,
		slots:      slots,
		bookings:   bookings,
		payments:   payments,
		gw:         gw,
		log:        log,
	}
}

// CreateBookingInput is a customer's booking request.
type CreateBookingInput struct {
	CustomerID  uint64
	FacilityID  uint64
	SlotID      uint64
	Date        time.Time
	Time        string
	Price       model.Money
	PaymentType string
	Email       string
	Phone       string
}

// CreateBooking stores a pending booking and its Pending Payment row in one
// transaction. Several pending bookings may reference the same slot; the
// first to settle wins it.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	in.PaymentType = strings.ToLower(strings.TrimSpace(in.PaymentType))
	if in.PaymentType != model.PaymentTypeFull && in.PaymentType != model.PaymentTypePartial {
		return nil, apperr.New(apperr.Validation, "payment_type must be full or partial")
	}
	if in.Price <= 0 {
		return nil, apperr.New(apperr.Validation, "price must be positive")
	}
	if in.Date.IsZero() {
		return nil, apperr.New(apperr.Validation, "date is required")
	}

	f, err := s.facilities.GetByID(ctx, in.FacilityID)
	if err != nil {
		return nil, notFound(err, "facility not found")
	}
	if f.Status != model.FacilityActive {
		return nil, apperr.New(apperr.Validation, "facility is not accepting bookings")
	}
	slot, err := s.slots.GetByID(ctx, in.SlotID)
	if err != nil {
		return nil, notFound(err, "time slot not found")
	}
	if slot.FacilityID != f.ID {
		return nil, apperr.New(apperr.NotFound, "time slot not found")
	}

	charged := ChargedAmount(in.Price, in.PaymentType)
	slotID := slot.ID
	b := &model.Booking{
		CustomerID: in.CustomerID,
		FacilityID: f.ID,
		SlotID:     &slotID,
		Email:      in.Email,
		Phone:      in.Phone,
		Date:       in.Date.UTC().Truncate(24 * time.Hour),
		Time:       in.Time,
		Price:      charged,
		Status:     model.BookingPending,
	}
	p := &model.Payment{
		Amount:          charged,
		TotalAmount:     charged,
		TransactionUUID: uuid.NewString(),
		Status:          model.PaymentPending,
		Type:            in.PaymentType,
	}

	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
			return err
		}
		p.BookingID = b.ID
		return s.payments.CreateTx(ctx, tx, p)
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not create booking", err)
	}

	s.log.Info("booking created",
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("slot_id", slotID),
		zap.String("transaction_uuid", p.TransactionUUID),
		zap.Stringer("total_amount", p.TotalAmount))
	b.Payment = p
	return b, nil
}

// PaymentInitiation is what the client posts to the gateway.
type PaymentInitiation struct {
	FormURL string       `json:"form_url"`
	Fields  gateway.Form `json:"fields"`
}

// InitiatePayment builds the signed eSewa form for the caller's pending
// booking. The signature is always computed here from stored values.
func (s *BookingService) InitiatePayment(ctx context.Context, customerID, bookingID uint64) (*PaymentInitiation, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking not found")
	}
	if b.CustomerID != customerID {
		return nil, apperr.New(apperr.NotFound, "booking not found")
	}
	p, err := s.payments.GetByBookingID(ctx, b.ID)
	if err != nil {
		return nil, notFound(err, "payment not found")
	}
	if b.Status != model.BookingPending || p.Status != model.PaymentPending {
		return nil, apperr.Newf(apperr.InvalidStatus, "booking is %s and payment is %s", b.Status, p.Status)
	}
	return &PaymentInitiation{FormURL: s.gw.FormURL(), Fields: s.gw.InitiationForm(p)}, nil
}

// GetBooking returns a booking with its payment. Only the customer who made
// it and the facility owner can see it; anyone else gets NotFound.
func (s *BookingService) GetBooking(ctx context.Context, actor Actor, id uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "booking not found")
	}
	if b.CustomerID != actor.ID {
		f, err := s.facilities.GetByID(ctx, b.FacilityID)
		if err != nil || f.OwnerID != actor.ID {
			return nil, apperr.New(apperr.NotFound, "booking not found")
		}
	}
	if err := s.attachPayment(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListMyBookings returns the customer's bookings, newest first.
func (s *BookingService) ListMyBookings(ctx context.Context, customerID uint64) ([]model.Booking, error) {
	list, err := s.bookings.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not list bookings", err)
	}
	for i := range list {
		if err := s.attachPayment(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// ListFacilityBookings returns every booking on a facility the caller owns.
func (s *BookingService) ListFacilityBookings(ctx context.Context, ownerID, facilityID uint64) ([]model.Booking, error) {
	if _, err := s.ownedFacility(ctx, ownerID, facilityID); err != nil {
		return nil, err
	}
	list, err := s.bookings.ListByFacility(ctx, facilityID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not list bookings", err)
	}
	for i := range list {
		if err := s.attachPayment(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *BookingService) attachPayment(ctx context.Context, b *model.Booking) error {
	p, err := s.payments.GetByBookingID(ctx, b.ID)
	switch {
	case err == nil:
		b.Payment = p
	case errors.Is(err, repository.ErrPaymentNotFound):
	default:
		return apperr.Wrap(apperr.Internal, "could not load payment", err)
	}
	return nil
}

func (s *BookingService) ownedFacility(ctx context.Context, ownerID, facilityID uint64) (*model.Facility, error) {
	f, err := s.facilities.GetByID(ctx, facilityID)
	if err != nil {
		return nil, notFound(err, "facility not found")
	}
	if f.OwnerID != ownerID {
		return nil, apperr.New(apperr.Forbidden, "facility belongs to another owner")
	}
	return f, nil
}

// notFound maps repository sentinels to NotFound and anything else to
// Internal.
func notFound(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrFacilityNotFound),
		errors.Is(err, repository.ErrSlotNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return apperr.Wrap(apperr.NotFound, msg, err)
	}
	return apperr.Wrap(apperr.Internal, "database error", err)
}
