package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/futsal-booking/internal/model"
)

// PaymentRepo persists payments. Once created, only payment_status,
// transaction_code and ref_id are written; amounts never change.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to db.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, booking_id, amount, tax_amount, service_charge, delivery_charge, total_amount, transaction_uuid, payment_status, transaction_code, ref_id, payment_type, created_at, updated_at`

func scanPayment(s scanner) (*model.Payment, error) {
	var p model.Payment
	var code, ref sql.NullString
	if err := s.Scan(&p.ID, &p.BookingID, &p.Amount, &p.TaxAmount, &p.ServiceCharge, &p.DeliveryCharge,
		&p.TotalAmount, &p.TransactionUUID, &p.Status, &code, &ref, &p.Type, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if code.Valid {
		p.TransactionCode = &code.String
	}
	if ref.Valid {
		p.RefID = &ref.String
	}
	return &p, nil
}

func (r *PaymentRepo) one(q scanner) (*model.Payment, error) {
	p, err := scanPayment(q)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// CreateTx inserts p inside tx and sets its ID.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (booking_id, amount, tax_amount, service_charge, delivery_charge, total_amount, transaction_uuid, payment_status, payment_type) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.BookingID, p.Amount, p.TaxAmount, p.ServiceCharge, p.DeliveryCharge,
		p.TotalAmount, p.TransactionUUID, p.Status, p.Type)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByTransactionUUID returns the payment correlated with a gateway
// transaction or ErrPaymentNotFound.
func (r *PaymentRepo) GetByTransactionUUID(ctx context.Context, uuid string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_uuid = ?`
	return r.one(r.db.QueryRowContext(ctx, q, uuid))
}

// GetByBookingID returns the booking's payment or ErrPaymentNotFound.
func (r *PaymentRepo) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = ?`
	return r.one(r.db.QueryRowContext(ctx, q, bookingID))
}

// LockByTransactionUUIDTx reads the payment with an exclusive row lock.
func (r *PaymentRepo) LockByTransactionUUIDTx(ctx context.Context, tx *sql.Tx, uuid string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_uuid = ? FOR UPDATE`
	return r.one(tx.QueryRowContext(ctx, q, uuid))
}

// LockByBookingIDTx reads the booking's payment with an exclusive row lock.
func (r *PaymentRepo) LockByBookingIDTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = ? FOR UPDATE`
	return r.one(tx.QueryRowContext(ctx, q, bookingID))
}

// SettleTx records a gateway outcome. An empty transactionCode keeps the
// stored one.
func (r *PaymentRepo) SettleTx(ctx context.Context, tx *sql.Tx, id uint64, status, transactionCode string) error {
	const q = `UPDATE payments SET payment_status = ?, transaction_code = COALESCE(NULLIF(?, ''), transaction_code) WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, transactionCode, id)
	return err
}

// SetRefIDTx stores the gateway's verification reference.
func (r *PaymentRepo) SetRefIDTx(ctx context.Context, tx *sql.Tx, id uint64, refID string) error {
	const q = `UPDATE payments SET ref_id = NULLIF(?, '') WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, refID, id)
	return err
}

// SetStatusTx changes only the payment status.
func (r *PaymentRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	const q = `UPDATE payments SET payment_status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, id)
	return err
}

// ListStalePending returns pending payments created before olderThan whose
// booking is still pending, oldest first.
func (r *PaymentRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Payment, error) {
	const q = `SELECT p.id, p.booking_id, p.amount, p.tax_amount, p.service_charge, p.delivery_charge, p.total_amount,
		p.transaction_uuid, p.payment_status, p.transaction_code, p.ref_id, p.payment_type, p.created_at, p.updated_at
		FROM payments p JOIN bookings b ON b.id = p.booking_id
		WHERE p.payment_status = 'Pending Payment' AND b.status = 'pending' AND p.created_at < ?
		ORDER BY p.created_at ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, olderThan.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
