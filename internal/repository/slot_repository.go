package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/futsal-booking/internal/model"
)

// SlotRepo is the slot ledger: it owns time slot availability. Status
// writes are version checked so a stale read can never overwrite a newer
// state, and LockTx gives callers an exclusive row lock for the duration of
// their transaction.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to db.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, facility_id, day, start_time, end_time, price, discounted_price, status, version, created_at, updated_at`

func scanSlot(s scanner) (*model.TimeSlot, error) {
	var ts model.TimeSlot
	if err := s.Scan(&ts.ID, &ts.FacilityID, &ts.Day, &ts.StartTime, &ts.EndTime, &ts.Price,
		&ts.DiscountedPrice, &ts.Status, &ts.Version, &ts.CreatedAt, &ts.UpdatedAt); err != nil {
		return nil, err
	}
	return &ts, nil
}

// Create inserts a slot for an existing facility.
func (r *SlotRepo) Create(ctx context.Context, ts *model.TimeSlot) error {
	const q = `INSERT INTO time_slots (facility_id, day, start_time, end_time, price, discounted_price, status) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, ts.FacilityID, ts.Day, ts.StartTime, ts.EndTime,
		ts.Price, ts.DiscountedPrice, ts.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*ts = *created
	return nil
}

// GetByID returns the slot or ErrSlotNotFound.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*model.TimeSlot, error) {
	const q = `SELECT ` + slotColumns + ` FROM time_slots WHERE id = ?`
	ts, err := scanSlot(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return ts, err
}

// ListByFacility returns the facility's slots ordered by day and start time.
func (r *SlotRepo) ListByFacility(ctx context.Context, facilityID uint64) ([]model.TimeSlot, error) {
	const q = `SELECT ` + slotColumns + ` FROM time_slots WHERE facility_id = ? ORDER BY day, start_time`
	rows, err := r.db.QueryContext(ctx, q, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TimeSlot, 0)
	for rows.Next() {
		ts, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ts)
	}
	return out, rows.Err()
}

// LockTx reads the slot with an exclusive row lock held until tx ends.
func (r *SlotRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.TimeSlot, error) {
	const q = `SELECT ` + slotColumns + ` FROM time_slots WHERE id = ? FOR UPDATE`
	ts, err := scanSlot(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return ts, err
}

// SetStatusTx moves the slot to status if it is still at version. It
// returns ErrSlotVersionConflict when the row has moved on.
func (r *SlotRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, version uint32, status string) error {
	const q = `UPDATE time_slots SET status = ?, version = version + 1 WHERE id = ? AND version = ?`
	res, err := tx.ExecContext(ctx, q, status, id, version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotVersionConflict
	}
	return nil
}

// CountConfirmedTx counts confirmed bookings holding the slot on date,
// ignoring excludeBookingID.
func (r *SlotRepo) CountConfirmedTx(ctx context.Context, tx *sql.Tx, slotID uint64, date time.Time, excludeBookingID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings WHERE slot_id = ? AND date = ? AND status = 'confirmed' AND id <> ?`
	var n int
	err := tx.QueryRowContext(ctx, q, slotID, date.Format("2006-01-02"), excludeBookingID).Scan(&n)
	return n, err
}

// CountHoldersTx counts confirmed bookings on the slot for any date,
// ignoring excludeBookingID. Zero means the slot can return to available.
func (r *SlotRepo) CountHoldersTx(ctx context.Context, tx *sql.Tx, slotID uint64, excludeBookingID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings WHERE slot_id = ? AND status = 'confirmed' AND id <> ?`
	var n int
	err := tx.QueryRowContext(ctx, q, slotID, excludeBookingID).Scan(&n)
	return n, err
}
