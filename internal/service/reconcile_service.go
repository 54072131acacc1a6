package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/apperr"
	"github.com/iliyamo/futsal-booking/internal/config"
	"github.com/iliyamo/futsal-booking/internal/database"
	"github.com/iliyamo/futsal-booking/internal/gateway"
	"github.com/iliyamo/futsal-booking/internal/lock"
	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/queue"
	"github.com/iliyamo/futsal-booking/internal/repository"
	"github.com/iliyamo/futsal-booking/internal/signature"
)

// requiredSignedFields must be covered by a callback signature; without
// them a valid signature says nothing about which payment settled.
var requiredSignedFields = []string{"transaction_uuid", "status", "total_amount"}

// ReconcileService is the gateway reconciliation engine. It is the only
// component that moves a booking to confirmed and a slot to booked on the
// strength of a payment.
type ReconcileService struct {
	tx       database.TxRunner
	slots    SlotLedger
	bookings BookingStore
	payments PaymentStore
	fac      FacilityStore
	gw       Gateway
	locker   lock.Locker
	events   EventPublisher
	cfg      config.ReconcileConfig
	log      *zap.Logger

	now func() time.Time
}

// NewReconcileService wires the engine.
func NewReconcileService(tx database.TxRunner, facilities FacilityStore, slots SlotLedger, bookings BookingStore,
	payments PaymentStore, gw Gateway, locker lock.Locker, events EventPublisher,
	cfg config.ReconcileConfig, log *zap.Logger) *ReconcileService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &ReconcileService{
		tx:       tx,
		fac:      facilities,
		slots:    slots,
		bookings: bookings,
		payments: payments,
		gw:       gw,
		locker:   locker,
		events:   events,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Outcome locates the booking a successful reconciliation confirmed.
type Outcome struct {
	BookingID  uint64
	FacilityID uint64
	SlotID     uint64
	// AlreadySettled is set when the payment was confirmed by an earlier
	// callback and nothing was written this time.
	AlreadySettled bool
}

// RedirectPath is the "<facility>/<slot>/<booking>" locator the frontend
// success page expects.
func (o *Outcome) RedirectPath() string {
	return fmt.Sprintf("%d/%d/%d", o.FacilityID, o.SlotID, o.BookingID)
}

// HandleGatewayCallback reconciles an eSewa success redirect. encoded is
// the raw "data" query parameter.
func (s *ReconcileService) HandleGatewayCallback(ctx context.Context, encoded string) (*Outcome, error) {
	cb, err := gateway.DecodeCallback(encoded)
	if err != nil {
		return nil, apperr.Wrap(apperr.MalformedPayload, "callback payload could not be decoded", err)
	}
	if cb.TransactionUUID == "" {
		return nil, apperr.New(apperr.MalformedPayload, "callback payload has no transaction_uuid")
	}
	log := s.log.With(zap.String("transaction_uuid", cb.TransactionUUID))

	p, err := s.payments.GetByTransactionUUID(ctx, cb.TransactionUUID)
	if err != nil {
		return nil, notFound(err, "payment not found")
	}

	if err := s.verifySignature(cb); err != nil {
		log.Warn("callback signature rejected", zap.Error(err))
		return nil, err
	}
	if cb.Status != gateway.StatusComplete {
		return nil, apperr.Newf(apperr.PaymentNotCompleted, "payment not completed (status %q)", cb.Status)
	}
	if code, ok := cb.Value("product_code"); ok && code != s.gw.ProductCode() {
		return nil, apperr.New(apperr.PaymentVerificationFailed, "product code does not match this merchant")
	}
	total, err := model.ParseMoney(cb.TotalAmount)
	if err != nil || total != p.TotalAmount {
		log.Warn("callback amount mismatch",
			zap.String("callback_total", cb.TotalAmount),
			zap.Stringer("stored_total", p.TotalAmount))
		return nil, apperr.New(apperr.PaymentVerificationFailed, "callback amount does not match the payment")
	}

	return s.settle(ctx, p.TransactionUUID, cb.TransactionCode, nil)
}

func (s *ReconcileService) verifySignature(cb *gateway.Callback) error {
	names := signature.ParseNames(cb.SignedFieldNames)
	for _, f := range requiredSignedFields {
		if !slices.Contains(names, f) {
			return apperr.Newf(apperr.InvalidSignature, "signed_field_names must cover %s", f)
		}
	}
	fields, err := cb.SignedFields()
	if err != nil {
		return apperr.Wrap(apperr.InvalidSignature, "signed fields are incomplete", err)
	}
	if !signature.Verify(fields, s.gw.SecretKey(), cb.Signature) {
		return apperr.New(apperr.InvalidSignature, "invalid signature")
	}
	return nil
}

// settle runs the reconciliation transaction for one payment. verified
// carries a status check the caller already made; when nil the gateway is
// asked from inside the transaction so a disagreement rolls every tentative
// write back together.
func (s *ReconcileService) settle(ctx context.Context, transactionUUID, transactionCode string, verified *gateway.StatusResult) (*Outcome, error) {
	log := s.log.With(zap.String("transaction_uuid", transactionUUID))

	release, err := s.locker.Acquire(ctx, transactionUUID, s.cfg.LockTTL)
	switch {
	case errors.Is(err, lock.ErrHeld):
		return nil, apperr.New(apperr.ReconciliationInProgress, "payment is already being reconciled, retry shortly")
	case err != nil:
		// row locks still serialize us
		log.Warn("idempotency lock unavailable", zap.Error(err))
		release = func() {}
	}
	defer release()

	var (
		out       Outcome
		conflict  bool
		confirmed *queue.BookingConfirmedEvent
		canceled  *queue.BookingCanceledEvent
	)
	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		p, err := s.payments.LockByTransactionUUIDTx(ctx, tx, transactionUUID)
		if err != nil {
			return notFound(err, "payment not found")
		}
		b, err := s.bookings.LockTx(ctx, tx, p.BookingID)
		if err != nil {
			return notFound(err, "booking not found")
		}
		out = Outcome{BookingID: b.ID, FacilityID: b.FacilityID}
		if b.SlotID != nil {
			out.SlotID = *b.SlotID
		}

		switch p.Status {
		case model.PaymentFullyPaid:
			out.AlreadySettled = true
			return nil
		case model.PaymentRefunded:
			conflict = true
			return nil
		}

		// an owner already confirmed or completed it by hand
		if b.Status == model.BookingConfirmed || b.Status == model.BookingCompleted {
			if err := s.payments.SettleTx(ctx, tx, p.ID, model.PaymentFullyPaid, transactionCode); err != nil {
				return err
			}
			res, err := s.verify(ctx, p, verified)
			if err != nil {
				return err
			}
			return s.payments.SetRefIDTx(ctx, tx, p.ID, res.RefID)
		}

		slot, lost, err := s.claimable(ctx, tx, b)
		if err != nil {
			return err
		}
		if lost {
			res, err := s.verify(ctx, p, verified)
			if err != nil {
				return err
			}
			if err := s.payments.SettleTx(ctx, tx, p.ID, model.PaymentRefunded, transactionCode); err != nil {
				return err
			}
			if err := s.payments.SetRefIDTx(ctx, tx, p.ID, res.RefID); err != nil {
				return err
			}
			if b.Status != model.BookingCanceled {
				if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingCanceled); err != nil {
					return err
				}
			}
			conflict = true
			canceled = &queue.BookingCanceledEvent{
				BookingID:       b.ID,
				CustomerID:      b.CustomerID,
				FacilityID:      b.FacilityID,
				TransactionUUID: p.TransactionUUID,
				TotalAmount:     p.TotalAmount.String(),
				Reason:          "slot taken before payment settled",
				RefundDue:       true,
				CanceledAt:      s.now().UTC().Format(time.RFC3339),
			}
			return nil
		}

		// tentative writes, reverted together if the gateway disagrees
		if err := s.payments.SettleTx(ctx, tx, p.ID, model.PaymentFullyPaid, transactionCode); err != nil {
			return err
		}
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingConfirmed); err != nil {
			return err
		}
		if err := s.slots.SetStatusTx(ctx, tx, slot.ID, slot.Version, model.SlotBooked); err != nil {
			if errors.Is(err, repository.ErrSlotVersionConflict) {
				return apperr.Wrap(apperr.SlotConflict, "time slot was taken by another booking", err)
			}
			return err
		}

		res, err := s.verify(ctx, p, verified)
		if err != nil {
			return err
		}
		if err := s.payments.SetRefIDTx(ctx, tx, p.ID, res.RefID); err != nil {
			return err
		}
		confirmed = &queue.BookingConfirmedEvent{
			BookingID:       b.ID,
			CustomerID:      b.CustomerID,
			FacilityID:      b.FacilityID,
			SlotID:          slot.ID,
			Date:            b.Date.Format("2006-01-02"),
			Time:            b.Time,
			TransactionUUID: p.TransactionUUID,
			TransactionCode: transactionCode,
			RefID:           res.RefID,
			TotalAmount:     p.TotalAmount.String(),
			PaymentType:     p.Type,
			ConfirmedAt:     s.now().UTC().Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		if k := apperr.KindOf(err); k == apperr.Internal {
			log.Error("reconciliation failed", zap.Error(err))
			return nil, apperr.Wrap(apperr.Internal, "reconciliation failed", err)
		}
		log.Info("reconciliation rejected", zap.Error(err))
		return nil, err
	}

	if confirmed != nil {
		log.Info("booking confirmed", zap.Uint64("booking_id", out.BookingID), zap.String("ref_id", confirmed.RefID))
		s.publish(ctx, queue.BookingConfirmedQueue, confirmed)
	}
	if canceled != nil {
		log.Warn("slot lost, booking canceled and payment marked refunded", zap.Uint64("booking_id", out.BookingID))
		s.publish(ctx, queue.BookingCanceledQueue, canceled)
	}
	if conflict {
		return nil, apperr.New(apperr.SlotConflict, "time slot was taken by another booking; payment will be refunded")
	}
	return &out, nil
}

// claimable locks the booking's slot and reports whether it can no longer
// go to b.
func (s *ReconcileService) claimable(ctx context.Context, tx *sql.Tx, b *model.Booking) (*model.TimeSlot, bool, error) {
	if b.Status == model.BookingCanceled || b.SlotID == nil {
		return nil, true, nil
	}
	slot, err := s.slots.LockTx(ctx, tx, *b.SlotID)
	if errors.Is(err, repository.ErrSlotNotFound) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if slot.Status == model.SlotUnavailable {
		return slot, true, nil
	}
	n, err := s.slots.CountConfirmedTx(ctx, tx, slot.ID, b.Date, b.ID)
	if err != nil {
		return nil, false, err
	}
	return slot, n > 0, nil
}

// verify asks the gateway for its own record of p unless the caller has
// already done so.
func (s *ReconcileService) verify(ctx context.Context, p *model.Payment, verified *gateway.StatusResult) (gateway.StatusResult, error) {
	if verified != nil {
		return *verified, nil
	}
	res, err := s.gw.CheckStatus(ctx, s.gw.ProductCode(), p.TotalAmount, p.TransactionUUID)
	if err != nil {
		return res, apperr.Wrap(apperr.GatewayUnavailable, "payment gateway did not answer, retry later", err)
	}
	if res.Status != gateway.StatusComplete {
		return res, apperr.Newf(apperr.PaymentVerificationFailed, "payment verification failed: gateway reports %s", res.Status)
	}
	return res, nil
}

// HandleGatewayFailureCallback processes an eSewa failure redirect. The
// payment and booking return to pending unless the payment already settled;
// an unsigned redirect never downgrades a settled payment.
func (s *ReconcileService) HandleGatewayFailureCallback(ctx context.Context, encoded string) error {
	cb, err := gateway.DecodeCallback(encoded)
	if err != nil {
		return apperr.Wrap(apperr.MalformedPayload, "callback payload could not be decoded", err)
	}
	if cb.TransactionUUID == "" {
		return apperr.New(apperr.MalformedPayload, "callback payload has no transaction_uuid")
	}
	if _, err := s.payments.GetByTransactionUUID(ctx, cb.TransactionUUID); err != nil {
		return notFound(err, "payment not found")
	}
	if cb.Status == gateway.StatusComplete {
		return nil
	}

	return s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		p, err := s.payments.LockByTransactionUUIDTx(ctx, tx, cb.TransactionUUID)
		if err != nil {
			return notFound(err, "payment not found")
		}
		if p.Settled() {
			return nil
		}
		b, err := s.bookings.LockTx(ctx, tx, p.BookingID)
		if err != nil {
			return notFound(err, "booking not found")
		}
		if p.Status != model.PaymentPending {
			if err := s.payments.SetStatusTx(ctx, tx, p.ID, model.PaymentPending); err != nil {
				return err
			}
		}
		if b.Status == model.BookingConfirmed {
			if err := s.releaseSlot(ctx, tx, b); err != nil {
				return err
			}
			if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingPending); err != nil {
				return err
			}
		}
		s.log.Info("payment failure recorded",
			zap.String("transaction_uuid", p.TransactionUUID),
			zap.String("gateway_status", cb.Status))
		return nil
	})
}

// releaseSlot returns b's slot to available when no other confirmed booking
// still holds it.
func (s *ReconcileService) releaseSlot(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if b.SlotID == nil {
		return nil
	}
	slot, err := s.slots.LockTx(ctx, tx, *b.SlotID)
	if errors.Is(err, repository.ErrSlotNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if slot.Status != model.SlotBooked {
		return nil
	}
	n, err := s.slots.CountHoldersTx(ctx, tx, slot.ID, b.ID)
	if err != nil || n > 0 {
		return err
	}
	return s.slots.SetStatusTx(ctx, tx, slot.ID, slot.Version, model.SlotAvailable)
}

func (s *ReconcileService) publish(ctx context.Context, queueName string, event any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, queueName, event); err != nil {
		s.log.Warn("event publish failed", zap.String("queue", queueName), zap.Error(err))
	}
}
