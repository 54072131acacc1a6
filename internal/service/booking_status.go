package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/apperr"
	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/queue"
	"github.com/iliyamo/futsal-booking/internal/repository"
)

// UpdateBookingStatus applies a manual transition. The facility owner may
// set any status; the booking's customer may only cancel. Canceling a Fully
// Paid booking marks the payment Refunded. The slot follows the booking:
// entering confirmed books it and leaving confirmed frees it once no other
// confirmed booking holds it.
func (s *ReconcileService) UpdateBookingStatus(ctx context.Context, actor Actor, bookingID uint64, status string) (*model.Booking, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !model.ValidBookingStatus(status) {
		return nil, apperr.Newf(apperr.InvalidStatus, "invalid status %q", status)
	}

	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking not found")
	}
	isOwner := false
	if actor.Role == model.RoleOwner {
		f, err := s.fac.GetByID(ctx, current.FacilityID)
		if err != nil && !errors.Is(err, repository.ErrFacilityNotFound) {
			return nil, apperr.Wrap(apperr.Internal, "database error", err)
		}
		isOwner = f != nil && f.OwnerID == actor.ID
	}
	if !isOwner {
		if current.CustomerID != actor.ID {
			return nil, apperr.New(apperr.Forbidden, "not allowed to change this booking")
		}
		if status != model.BookingCanceled {
			return nil, apperr.New(apperr.Forbidden, "customers may only cancel their bookings")
		}
	}

	var canceled *queue.BookingCanceledEvent
	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		// payment before booking, the order settle and the sweeper use
		p, err := s.payments.LockByBookingIDTx(ctx, tx, bookingID)
		if err != nil && !errors.Is(err, repository.ErrPaymentNotFound) {
			return err
		}
		b, err := s.bookings.LockTx(ctx, tx, bookingID)
		if err != nil {
			return notFound(err, "booking not found")
		}
		if b.Status == status {
			return nil
		}

		if status == model.BookingConfirmed {
			if err := s.bookSlot(ctx, tx, b); err != nil {
				return err
			}
		} else if b.Status == model.BookingConfirmed {
			// the holder count excludes b, so release before the status write
			if err := s.releaseSlot(ctx, tx, b); err != nil {
				return err
			}
		}

		refund := false
		if status == model.BookingCanceled && p != nil && p.Status == model.PaymentFullyPaid {
			if err := s.payments.SetStatusTx(ctx, tx, p.ID, model.PaymentRefunded); err != nil {
				return err
			}
			refund = true
		}
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, status); err != nil {
			return err
		}

		if status == model.BookingCanceled {
			canceled = &queue.BookingCanceledEvent{
				BookingID:  b.ID,
				CustomerID: b.CustomerID,
				FacilityID: b.FacilityID,
				Reason:     "canceled by " + strings.ToLower(actor.Role),
				RefundDue:  refund,
				CanceledAt: s.now().UTC().Format(time.RFC3339),
			}
			if p != nil {
				canceled.TransactionUUID = p.TransactionUUID
				canceled.TotalAmount = p.TotalAmount.String()
			}
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			s.log.Error("booking status update failed", zap.Uint64("booking_id", bookingID), zap.Error(err))
			return nil, apperr.Wrap(apperr.Internal, "could not update booking", err)
		}
		return nil, err
	}

	s.log.Info("booking status changed",
		zap.Uint64("booking_id", bookingID),
		zap.String("from", current.Status),
		zap.String("to", status),
		zap.Uint64("actor_id", actor.ID))
	if canceled != nil {
		s.publish(ctx, queue.BookingCanceledQueue, canceled)
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking not found")
	}
	if p, err := s.payments.GetByBookingID(ctx, b.ID); err == nil {
		b.Payment = p
	}
	return b, nil
}

// bookSlot gives b's slot to b for its date, failing with SlotConflict when
// another confirmed booking already has it.
func (s *ReconcileService) bookSlot(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if b.SlotID == nil {
		return apperr.New(apperr.SlotConflict, "booking no longer has a time slot")
	}
	slot, err := s.slots.LockTx(ctx, tx, *b.SlotID)
	if err != nil {
		return notFound(err, "time slot not found")
	}
	if slot.Status == model.SlotUnavailable {
		return apperr.New(apperr.SlotConflict, "time slot is unavailable")
	}
	n, err := s.slots.CountConfirmedTx(ctx, tx, slot.ID, b.Date, b.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.New(apperr.SlotConflict, "time slot is already booked for that date")
	}
	if err := s.slots.SetStatusTx(ctx, tx, slot.ID, slot.Version, model.SlotBooked); err != nil {
		if errors.Is(err, repository.ErrSlotVersionConflict) {
			return apperr.Wrap(apperr.SlotConflict, "time slot was taken by another booking", err)
		}
		return err
	}
	return nil
}
