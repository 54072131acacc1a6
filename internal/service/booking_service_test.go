package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/futsal-booking/internal/apperr"
	"github.com/iliyamo/futsal-booking/internal/gateway"
	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/signature"
)

func TestCreateBookingCharges(t *testing.T) {
	cases := []struct {
		paymentType string
		want        model.Money
	}{
		{model.PaymentTypeFull, 100000},
		{model.PaymentTypePartial, 25000},
	}
	for _, tc := range cases {
		t.Run(tc.paymentType, func(t *testing.T) {
			f := newFixture(t)
			b := f.book(t, customerID, playDate, tc.paymentType)

			assert.Equal(t, model.BookingPending, b.Status)
			assert.Equal(t, tc.want, b.Price)
			require.NotNil(t, b.Payment)
			p := f.db.paymentFor(b.ID)
			assert.Equal(t, tc.want, p.TotalAmount)
			assert.Equal(t, tc.want, p.Amount)
			assert.Zero(t, p.TaxAmount+p.ServiceCharge+p.DeliveryCharge)
			assert.Equal(t, model.PaymentPending, p.Status)
			assert.Equal(t, tc.paymentType, p.Type)
			assert.Len(t, p.TransactionUUID, 36)

			// booking never touches the slot
			assert.Equal(t, model.SlotAvailable, f.db.slot(f.slotID).Status)
		})
	}
}

func TestCreateBookingUniqueTransactionUUIDs(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, customerID, playDate, model.PaymentTypeFull)
	b := f.book(t, customerID, playDate, model.PaymentTypeFull)
	assert.NotEqual(t, a.Payment.TransactionUUID, b.Payment.TransactionUUID)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	other, err := f.booking.CreateFacility(context.Background(), ownerID, FacilityInput{Name: "Other", Capacity: 10})
	require.NoError(t, err)

	base := CreateBookingInput{
		CustomerID: customerID, FacilityID: f.facilityID, SlotID: f.slotID,
		Date: playDate, Time: "18:00 - 19:00", Price: 100000, PaymentType: model.PaymentTypeFull,
	}
	cases := map[string]struct {
		mutate func(*CreateBookingInput)
		kind   apperr.Kind
	}{
		"unknown facility":       {func(in *CreateBookingInput) { in.FacilityID = 9999 }, apperr.NotFound},
		"unknown slot":           {func(in *CreateBookingInput) { in.SlotID = 9999 }, apperr.NotFound},
		"slot of other facility": {func(in *CreateBookingInput) { in.FacilityID = other.ID }, apperr.NotFound},
		"bad payment type":       {func(in *CreateBookingInput) { in.PaymentType = "installments" }, apperr.Validation},
		"zero price":             {func(in *CreateBookingInput) { in.Price = 0 }, apperr.Validation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			_, err := f.booking.CreateBooking(context.Background(), in)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestCreateBookingIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.db.failPaymentCreate = errors.New("duplicate transaction_uuid")

	_, err := f.booking.CreateBooking(context.Background(), CreateBookingInput{
		CustomerID: customerID, FacilityID: f.facilityID, SlotID: f.slotID,
		Date: playDate, Price: 100000, PaymentType: model.PaymentTypeFull,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))

	list, err := f.booking.ListMyBookings(context.Background(), customerID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, customerID, playDate, model.PaymentTypePartial)

	init, err := f.booking.InitiatePayment(context.Background(), customerID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, f.gw.FormURL(), init.FormURL)
	assert.Equal(t, "250.00", init.Fields.TotalAmount)
	assert.Equal(t, b.Payment.TransactionUUID, init.Fields.TransactionUUID)
	assert.Equal(t, signature.InitiationFields, init.Fields.SignedFieldNames)

	fields := []signature.Field{
		{Name: "total_amount", Value: init.Fields.TotalAmount},
		{Name: "transaction_uuid", Value: init.Fields.TransactionUUID},
		{Name: "product_code", Value: init.Fields.ProductCode},
	}
	assert.True(t, signature.Verify(fields, testSecret, init.Fields.Signature))

	t.Run("someone else's booking", func(t *testing.T) {
		_, err := f.booking.InitiatePayment(context.Background(), customerID+1, b.ID)
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})

	t.Run("already paid", func(t *testing.T) {
		_, err := f.reconcile.HandleGatewayCallback(context.Background(), callback(t, b.Payment, gateway.StatusComplete, nil))
		require.NoError(t, err)
		_, err = f.booking.InitiatePayment(context.Background(), customerID, b.ID)
		assert.Equal(t, apperr.InvalidStatus, apperr.KindOf(err))
	})
}

func TestGetBookingVisibility(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, customerID, playDate, model.PaymentTypeFull)

	got, err := f.booking.GetBooking(context.Background(), Actor{ID: customerID, Role: model.RoleCustomer}, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Payment)
	assert.Equal(t, b.Payment.TransactionUUID, got.Payment.TransactionUUID)

	_, err = f.booking.GetBooking(context.Background(), Actor{ID: ownerID, Role: model.RoleOwner}, b.ID)
	require.NoError(t, err)

	_, err = f.booking.GetBooking(context.Background(), Actor{ID: 777, Role: model.RoleCustomer}, b.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestListFacilityBookingsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	f.book(t, customerID, playDate, model.PaymentTypeFull)

	list, err := f.booking.ListFacilityBookings(context.Background(), ownerID, f.facilityID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.booking.ListFacilityBookings(context.Background(), ownerID+1, f.facilityID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestCreateSlotValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]SlotInput{
		"bad day":   {Day: "Mondays", StartTime: "06:00", EndTime: "07:00", Price: 1},
		"bad clock": {StartTime: "6am", EndTime: "07:00", Price: 1},
		"inverted":  {StartTime: "08:00", EndTime: "07:00", Price: 1},
		"no price":  {StartTime: "06:00", EndTime: "07:00"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.booking.CreateSlot(context.Background(), ownerID, f.facilityID, in)
			assert.Equal(t, apperr.Validation, apperr.KindOf(err))
		})
	}

	_, err := f.booking.CreateSlot(context.Background(), ownerID+1, f.facilityID,
		SlotInput{StartTime: "06:00", EndTime: "07:00", Price: 1})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	ts, err := f.booking.CreateSlot(context.Background(), ownerID, f.facilityID,
		SlotInput{StartTime: "06:00", EndTime: "07:00", Price: 50000})
	require.NoError(t, err)
	assert.Equal(t, "06:00:00", ts.StartTime)
	assert.Equal(t, model.DayWeekdays, ts.Day)
	assert.Equal(t, model.SlotAvailable, ts.Status)
}
