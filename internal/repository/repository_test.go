package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/futsal-booking/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func beginTx(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

var paymentCols = []string{"id", "booking_id", "amount", "tax_amount", "service_charge", "delivery_charge",
	"total_amount", "transaction_uuid", "payment_status", "transaction_code", "ref_id", "payment_type",
	"created_at", "updated_at"}

func TestSlotSetStatusVersionConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSlotRepo(db)
	tx := beginTx(t, db, mock)
	ctx := context.Background()

	update := regexp.QuoteMeta(`UPDATE time_slots SET status = ?, version = version + 1 WHERE id = ? AND version = ?`)
	mock.ExpectExec(update).WithArgs(model.SlotBooked, 4, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WithArgs(model.SlotBooked, 4, 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	require.NoError(t, repo.SetStatusTx(ctx, tx, 4, 2, model.SlotBooked))
	assert.ErrorIs(t, repo.SetStatusTx(ctx, tx, 4, 2, model.SlotBooked), ErrSlotVersionConflict)
	require.NoError(t, tx.Rollback())
}

func TestSlotCountConfirmedUsesDate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSlotRepo(db)
	tx := beginTx(t, db, mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE slot_id = \? AND date = \? AND status = 'confirmed'`).
		WithArgs(4, "2026-11-20", 9).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectCommit()

	n, err := repo.CountConfirmedTx(context.Background(), tx, 4, time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC), 9)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, tx.Commit())
}

func TestSlotGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM time_slots WHERE id = \?`).WithArgs(77).WillReturnError(sql.ErrNoRows)

	_, err := NewSlotRepo(db).GetByID(context.Background(), 77)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestPaymentLockScansDecimals(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)
	tx := beginTx(t, db, mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM payments WHERE transaction_uuid = \? FOR UPDATE`).
		WithArgs("uuid-1").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(
			1, 3, []byte("250.00"), []byte("0.00"), []byte("0.00"), []byte("0.00"), []byte("250.00"),
			"uuid-1", model.PaymentPending, nil, nil, model.PaymentTypePartial, now, now))
	mock.ExpectQuery(`FROM payments WHERE transaction_uuid = \? FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(paymentCols))
	mock.ExpectRollback()

	p, err := repo.LockByTransactionUUIDTx(context.Background(), tx, "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, model.Money(25000), p.TotalAmount)
	assert.Equal(t, uint64(3), p.BookingID)
	assert.Nil(t, p.TransactionCode)
	assert.Nil(t, p.RefID)

	_, err = repo.LockByTransactionUUIDTx(context.Background(), tx, "missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	require.NoError(t, tx.Rollback())
}

func TestPaymentSettleKeepsExistingCode(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payments SET payment_status = ?, transaction_code = COALESCE(NULLIF(?, ''), transaction_code) WHERE id = ?`)).
		WithArgs(model.PaymentFullyPaid, "", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payments SET ref_id = NULLIF(?, '') WHERE id = ?`)).
		WithArgs("REF-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SettleTx(context.Background(), tx, 1, model.PaymentFullyPaid, ""))
	require.NoError(t, repo.SetRefIDTx(context.Background(), tx, 1, "REF-1"))
	require.NoError(t, tx.Commit())
}

func TestPaymentListStalePending(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	cutoff := now.Add(-5 * time.Minute)

	mock.ExpectQuery(`WHERE p.payment_status = 'Pending Payment' AND b.status = 'pending' AND p.created_at < \?`).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows(paymentCols).
			AddRow(1, 3, "1000.00", "0", "0", "0", "1000.00", "a", model.PaymentPending, nil, nil, model.PaymentTypeFull, now, now).
			AddRow(2, 4, "250.00", "0", "0", "0", "250.00", "b", model.PaymentPending, "CODE", nil, model.PaymentTypePartial, now, now))

	list, err := NewPaymentRepo(db).ListStalePending(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].TransactionUUID)
	require.NotNil(t, list[1].TransactionCode)
	assert.Equal(t, "CODE", *list[1].TransactionCode)
}

func TestBookingCreateTx(t *testing.T) {
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	slot := uint64(4)
	b := &model.Booking{
		CustomerID: 200, FacilityID: 1, SlotID: &slot,
		Date:  time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC),
		Time:  "18:00 - 19:00",
		Price: 25000, Status: model.BookingPending,
	}
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(200, 1, sqlmock.AnyArg(), "", "", "2026-11-20", "18:00 - 19:00", "250.00", model.BookingPending).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	require.NoError(t, NewBookingRepo(db).CreateTx(context.Background(), tx, b))
	assert.Equal(t, uint64(42), b.ID)
	require.NoError(t, tx.Commit())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("Sam", "sam@example.com", "hash", model.RoleCustomer).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := NewUserRepo(db).Create(context.Background(), "Sam", " Sam@Example.com ", "hash", model.RoleCustomer)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRecordLoginFailure(t *testing.T) {
	db, mock := newMock(t)
	until := time.Date(2026, 10, 16, 12, 15, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE users SET\s+lock_until = CASE WHEN login_attempts \+ 1 >= \?`).
		WithArgs(5, until, until, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewUserRepo(db).RecordLoginFailure(context.Background(), 7, 5, until))
}

func TestTokenValidateRefreshInvalid(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM refresh_tokens WHERE token_hash = \? AND revoked_at IS NULL AND expires_at > \?`).
		WithArgs("h", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := NewTokenRepo(db).ValidateRefresh(context.Background(), "h", time.Now())
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}
