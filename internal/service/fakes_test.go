package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"maps"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/config"
	"github.com/iliyamo/futsal-booking/internal/gateway"
	"github.com/iliyamo/futsal-booking/internal/lock"
	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/repository"
	"github.com/iliyamo/futsal-booking/internal/signature"
)

const (
	testSecret  = "8gBm/:&EnhH.1/q"
	testProduct = "EPAYTEST"
	ownerID     = 100
	customerID  = 200
)

// memDB is an in-memory stand-in for MySQL. Transactions are serialized,
// which is what the row locks give the real engine, and a failed
// transaction restores the snapshot taken when it began.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	facilities map[uint64]model.Facility
	slots      map[uint64]model.TimeSlot
	bookings   map[uint64]model.Booking
	payments   map[uint64]model.Payment
	seq        uint64

	// locks records the row kind of every Lock*Tx call in order.
	locks []string

	failPaymentCreate error
}

type memState struct {
	facilities map[uint64]model.Facility
	slots      map[uint64]model.TimeSlot
	bookings   map[uint64]model.Booking
	payments   map[uint64]model.Payment
}

func newMemDB() *memDB {
	return &memDB{
		facilities: map[uint64]model.Facility{},
		slots:      map[uint64]model.TimeSlot{},
		bookings:   map[uint64]model.Booking{},
		payments:   map[uint64]model.Payment{},
	}
}

func (m *memDB) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	snap := memState{maps.Clone(m.facilities), maps.Clone(m.slots), maps.Clone(m.bookings), maps.Clone(m.payments)}
	m.mu.Unlock()
	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.facilities, m.slots, m.bookings, m.payments = snap.facilities, snap.slots, snap.bookings, snap.payments
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memDB) recordLock(kind string) {
	m.mu.Lock()
	m.locks = append(m.locks, kind)
	m.mu.Unlock()
}

func (m *memDB) lockOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.locks)
}

func (m *memDB) resetLocks() {
	m.mu.Lock()
	m.locks = nil
	m.mu.Unlock()
}

func (m *memDB) nextID() uint64 {
	m.seq++
	return m.seq
}

func (m *memDB) booking(id uint64) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memDB) slot(id uint64) model.TimeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id]
}

func (m *memDB) paymentFor(bookingID uint64) model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			return p
		}
	}
	return model.Payment{}
}

// memFacilities implements FacilityStore.
type memFacilities struct{ *memDB }

func (s memFacilities) Create(ctx context.Context, f *model.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = s.nextID()
	f.CreatedAt = time.Now().UTC()
	s.facilities[f.ID] = *f
	return nil
}

func (s memFacilities) GetByID(ctx context.Context, id uint64) (*model.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facilities[id]
	if !ok {
		return nil, repository.ErrFacilityNotFound
	}
	return &f, nil
}

// memSlots implements SlotLedger.
type memSlots struct{ *memDB }

func (s memSlots) Create(ctx context.Context, ts *model.TimeSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts.ID = s.nextID()
	s.slots[ts.ID] = *ts
	return nil
}

func (s memSlots) GetByID(ctx context.Context, id uint64) (*model.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.slots[id]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	return &ts, nil
}

func (s memSlots) ListByFacility(ctx context.Context, facilityID uint64) ([]model.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TimeSlot, 0)
	for _, ts := range s.slots {
		if ts.FacilityID == facilityID {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memSlots) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.TimeSlot, error) {
	s.recordLock("slot")
	return s.GetByID(ctx, id)
}

func (s memSlots) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, version uint32, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.slots[id]
	if !ok || ts.Version != version {
		return repository.ErrSlotVersionConflict
	}
	ts.Status = status
	ts.Version++
	s.slots[id] = ts
	return nil
}

func (s memSlots) CountConfirmedTx(ctx context.Context, tx *sql.Tx, slotID uint64, date time.Time, excludeBookingID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.ID != excludeBookingID && b.SlotID != nil && *b.SlotID == slotID &&
			b.Status == model.BookingConfirmed && b.Date.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (s memSlots) CountHoldersTx(ctx context.Context, tx *sql.Tx, slotID uint64, excludeBookingID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.ID != excludeBookingID && b.SlotID != nil && *b.SlotID == slotID && b.Status == model.BookingConfirmed {
			n++
		}
	}
	return n, nil
}

// memBookings implements BookingStore.
type memBookings struct{ *memDB }

func (s memBookings) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.nextID()
	b.CreatedAt = time.Now().UTC()
	stored := *b
	stored.Payment = nil
	s.bookings[b.ID] = stored
	return nil
}

func (s memBookings) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (s memBookings) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	s.recordLock("booking")
	return s.GetByID(ctx, id)
}

func (s memBookings) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = status
	s.bookings[id] = b
	return nil
}

func (s memBookings) list(keep func(model.Booking) bool) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s memBookings) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Booking, error) {
	return s.list(func(b model.Booking) bool { return b.CustomerID == customerID }), nil
}

func (s memBookings) ListByFacility(ctx context.Context, facilityID uint64) ([]model.Booking, error) {
	return s.list(func(b model.Booking) bool { return b.FacilityID == facilityID }), nil
}

// memPayments implements PaymentStore.
type memPayments struct{ *memDB }

func (s memPayments) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPaymentCreate != nil {
		return s.failPaymentCreate
	}
	p.ID = s.nextID()
	p.CreatedAt = time.Now().UTC()
	s.payments[p.ID] = *p
	return nil
}

func (s memPayments) find(match func(model.Payment) bool) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if match(p) {
			return &p, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (s memPayments) GetByTransactionUUID(ctx context.Context, uuid string) (*model.Payment, error) {
	return s.find(func(p model.Payment) bool { return p.TransactionUUID == uuid })
}

func (s memPayments) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	return s.find(func(p model.Payment) bool { return p.BookingID == bookingID })
}

func (s memPayments) LockByTransactionUUIDTx(ctx context.Context, tx *sql.Tx, uuid string) (*model.Payment, error) {
	s.recordLock("payment")
	return s.GetByTransactionUUID(ctx, uuid)
}

func (s memPayments) LockByBookingIDTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Payment, error) {
	s.recordLock("payment")
	return s.GetByBookingID(ctx, bookingID)
}

func (s memPayments) update(id uint64, fn func(p *model.Payment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	fn(&p)
	s.payments[id] = p
	return nil
}

func (s memPayments) SettleTx(ctx context.Context, tx *sql.Tx, id uint64, status, transactionCode string) error {
	return s.update(id, func(p *model.Payment) {
		p.Status = status
		if transactionCode != "" {
			p.TransactionCode = &transactionCode
		}
	})
}

func (s memPayments) SetRefIDTx(ctx context.Context, tx *sql.Tx, id uint64, refID string) error {
	return s.update(id, func(p *model.Payment) {
		p.RefID = nil
		if refID != "" {
			p.RefID = &refID
		}
	})
}

func (s memPayments) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	return s.update(id, func(p *model.Payment) { p.Status = status })
}

func (s memPayments) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Payment, 0)
	for _, p := range s.payments {
		b := s.bookings[p.BookingID]
		if p.Status == model.PaymentPending && b.Status == model.BookingPending && p.CreatedAt.Before(olderThan) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memDB) backdate(paymentID uint64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.payments[paymentID]
	p.CreatedAt = at
	m.payments[paymentID] = p
}

// fakeGateway answers status checks from a table and delegates form
// building and credentials to a real client.
type fakeGateway struct {
	*gateway.Client

	mu      sync.Mutex
	results map[string]gateway.StatusResult
	def     gateway.StatusResult
	err     error
	calls   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		Client: gateway.New(gateway.Config{
			SecretKey:   testSecret,
			ProductCode: testProduct,
			FormURL:     "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
			SuccessURL:  "http://localhost:5173/success",
			FailureURL:  "http://localhost:8080/v1/payments/esewa/failure",
		}),
		results: map[string]gateway.StatusResult{},
		def:     gateway.StatusResult{Status: gateway.StatusComplete, RefID: "REF-1"},
	}
}

func (g *fakeGateway) CheckStatus(ctx context.Context, productCode string, total model.Money, transactionUUID string) (gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return gateway.StatusResult{}, g.err
	}
	if r, ok := g.results[transactionUUID]; ok {
		return r, nil
	}
	return g.def, nil
}

func (g *fakeGateway) set(def gateway.StatusResult, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.def, g.err = def, err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type published struct {
	queue string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingPublisher) Publish(ctx context.Context, queueName string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{queueName, event})
	return nil
}

func (r *recordingPublisher) on(queueName string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.queue == queueName {
			out = append(out, e.event)
		}
	}
	return out
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, lock.ErrHeld
}

type fixture struct {
	db        *memDB
	gw        *fakeGateway
	events    *recordingPublisher
	booking   *BookingService
	reconcile *ReconcileService

	facilityID uint64
	slotID     uint64
}

var playDate = time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	gw := newFakeGateway()
	events := &recordingPublisher{}
	log := zap.NewNop()
	cfg := config.ReconcileConfig{
		Enabled:           true,
		MinAge:            5 * time.Minute,
		PendingBookingTTL: 2 * time.Hour,
		BatchSize:         50,
		LockTTL:           30 * time.Second,
	}
	f := &fixture{db: db, gw: gw, events: events}
	f.booking = NewBookingService(db, memFacilities{db}, memSlots{db}, memBookings{db}, memPayments{db}, gw, log)
	f.reconcile = NewReconcileService(db, memFacilities{db}, memSlots{db}, memBookings{db}, memPayments{db},
		gw, lock.NoopLocker{}, events, cfg, log)

	fac, err := f.booking.CreateFacility(context.Background(), ownerID, FacilityInput{Name: "Arena", Capacity: 10})
	require.NoError(t, err)
	slot, err := f.booking.CreateSlot(context.Background(), ownerID, fac.ID, SlotInput{
		Day: model.DayWeekdays, StartTime: "18:00", EndTime: "19:00", Price: 100000,
	})
	require.NoError(t, err)
	f.facilityID, f.slotID = fac.ID, slot.ID
	return f
}

func (f *fixture) book(t *testing.T, customer uint64, date time.Time, paymentType string) *model.Booking {
	t.Helper()
	b, err := f.booking.CreateBooking(context.Background(), CreateBookingInput{
		CustomerID:  customer,
		FacilityID:  f.facilityID,
		SlotID:      f.slotID,
		Date:        date,
		Time:        "18:00 - 19:00",
		Price:       100000,
		PaymentType: paymentType,
		Email:       "player@example.com",
		Phone:       "9800000000",
	})
	require.NoError(t, err)
	return b
}

const callbackSignedFields = "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names"

// callback builds the base64 "data" parameter eSewa would send for p,
// signed with the test secret. tamper runs after signing.
func callback(t *testing.T, p *model.Payment, status string, tamper func(map[string]string)) string {
	t.Helper()
	payload := map[string]string{
		"transaction_code":   "000AWEO",
		"status":             status,
		"total_amount":       p.TotalAmount.String()[:len(p.TotalAmount.String())-1],
		"transaction_uuid":   p.TransactionUUID,
		"product_code":       testProduct,
		"signed_field_names": callbackSignedFields,
	}
	fields, err := signature.FieldsFrom(signature.ParseNames(callbackSignedFields), func(n string) (string, bool) {
		v, ok := payload[n]
		return v, ok
	})
	require.NoError(t, err)
	payload["signature"] = signature.Sign(fields, testSecret)
	if tamper != nil {
		tamper(payload)
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func sortedQueues(r *recordingPublisher) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.queue)
	}
	slices.Sort(out)
	return out
}
