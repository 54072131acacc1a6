package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/apperr"
	"github.com/iliyamo/futsal-booking/internal/gateway"
	"github.com/iliyamo/futsal-booking/internal/lock"
	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/queue"
)

// SweepReport counts what one sweep did.
type SweepReport struct {
	Checked   int
	Confirmed int
	Canceled  int
	Skipped   int
	Failed    int
}

// SweepPending settles payments whose success callback never arrived and
// cancels bookings the customer abandoned. Gateway failures are logged and
// left for the next run.
func (s *ReconcileService) SweepPending(ctx context.Context, now time.Time) (SweepReport, error) {
	var rep SweepReport
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	list, err := s.payments.ListStalePending(ctx, now.Add(-s.cfg.MinAge), batch)
	if err != nil {
		return rep, apperr.Wrap(apperr.Internal, "could not list pending payments", err)
	}

	for i := range list {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		p := &list[i]
		rep.Checked++
		log := s.log.With(zap.String("transaction_uuid", p.TransactionUUID), zap.Uint64("booking_id", p.BookingID))

		res, err := s.gw.CheckStatus(ctx, s.gw.ProductCode(), p.TotalAmount, p.TransactionUUID)
		if err != nil {
			rep.Failed++
			log.Warn("sweep status check failed", zap.Error(err))
			continue
		}

		switch res.Status {
		case gateway.StatusComplete:
			_, err := s.settle(ctx, p.TransactionUUID, "", &res)
			switch {
			case err == nil:
				rep.Confirmed++
			case apperr.Is(err, apperr.SlotConflict):
				rep.Canceled++
			default:
				rep.Failed++
				log.Warn("sweep settlement failed", zap.Error(err))
			}
		case gateway.StatusNotFound, gateway.StatusCanceled:
			if now.Sub(p.CreatedAt) < s.cfg.PendingBookingTTL {
				rep.Skipped++
				continue
			}
			done, err := s.expire(ctx, p.TransactionUUID, res.Status)
			switch {
			case err != nil:
				rep.Failed++
				log.Warn("sweep expiry failed", zap.Error(err))
			case done:
				rep.Canceled++
			default:
				rep.Skipped++
			}
		default:
			rep.Skipped++
		}
	}

	if rep.Checked > 0 {
		s.log.Info("pending payment sweep finished",
			zap.Int("checked", rep.Checked),
			zap.Int("confirmed", rep.Confirmed),
			zap.Int("canceled", rep.Canceled),
			zap.Int("skipped", rep.Skipped),
			zap.Int("failed", rep.Failed))
	}
	return rep, nil
}

// expire cancels an abandoned booking whose payment is still pending.
func (s *ReconcileService) expire(ctx context.Context, transactionUUID, gatewayStatus string) (bool, error) {
	release, err := s.locker.Acquire(ctx, transactionUUID, s.cfg.LockTTL)
	if errors.Is(err, lock.ErrHeld) {
		return false, nil
	}
	if err != nil {
		release = func() {}
	}
	defer release()

	var ev *queue.BookingCanceledEvent
	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		p, err := s.payments.LockByTransactionUUIDTx(ctx, tx, transactionUUID)
		if err != nil {
			return err
		}
		if p.Status != model.PaymentPending {
			return nil
		}
		b, err := s.bookings.LockTx(ctx, tx, p.BookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingPending {
			return nil
		}
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingCanceled); err != nil {
			return err
		}
		ev = &queue.BookingCanceledEvent{
			BookingID:       b.ID,
			CustomerID:      b.CustomerID,
			FacilityID:      b.FacilityID,
			TransactionUUID: p.TransactionUUID,
			TotalAmount:     p.TotalAmount.String(),
			Reason:          "payment abandoned (gateway: " + gatewayStatus + ")",
			CanceledAt:      s.now().UTC().Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if ev == nil {
		return false, nil
	}
	s.publish(ctx, queue.BookingCanceledQueue, ev)
	return true, nil
}
