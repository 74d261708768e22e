package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-box-office/internal/apperr"
	"github.com/iliyamo/cinema-box-office/internal/model"
	"github.com/iliyamo/cinema-box-office/internal/repository"
)

// memStore is an in-memory stand-in for the MySQL gateway.  Sessions buffer
// their writes and apply them on Commit, so a failed operation leaves the
// world untouched just like a rolled-back transaction.  lockSeatErrs lets a
// test inject store-level failures to exercise the retry path.
type memStore struct {
	mu           sync.Mutex
	screenings   map[string]*model.Screening
	seats        map[string]*model.Seat
	reservations map[string]*model.Reservation
	sales        map[string]*model.Sale // keyed by reservation ID
	lockSeatErrs []error
	lockOrder    []string
}

func newMemStore() *memStore {
	return &memStore{
		screenings:   map[string]*model.Screening{},
		seats:        map[string]*model.Seat{},
		reservations: map[string]*model.Reservation{},
		sales:        map[string]*model.Sale{},
	}
}

func (m *memStore) Begin(ctx context.Context) (Session, error) {
	return &memSession{st: m}, nil
}

type memSession struct {
	st   *memStore
	muts []func()
	done bool
}

func (s *memSession) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	for _, mut := range s.muts {
		mut()
	}
	return nil
}

func (s *memSession) Rollback() error {
	s.done = true
	s.muts = nil
	return nil
}

func (s *memSession) Screening(ctx context.Context, screeningID string) (*model.Screening, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	sc, ok := s.st.screenings[screeningID]
	if !ok {
		return nil, apperr.NotFound("Screening %s not found", screeningID)
	}
	cp := *sc
	return &cp, nil
}

func (s *memSession) LockSeat(ctx context.Context, screeningID, label string) (*model.Seat, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if len(s.st.lockSeatErrs) > 0 {
		err := s.st.lockSeatErrs[0]
		s.st.lockSeatErrs = s.st.lockSeatErrs[1:]
		return nil, err
	}
	s.st.lockOrder = append(s.st.lockOrder, label)
	for _, seat := range s.st.seats {
		if seat.ScreeningID == screeningID && seat.Label == label {
			cp := *seat
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("Seat %s not found in screening %s", label, screeningID)
}

func (s *memSession) LockReservation(ctx context.Context, reservationID string) (*repository.ReservationSeat, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	res, ok := s.st.reservations[reservationID]
	if !ok {
		return nil, apperr.NotFound("Reservation %s not found", reservationID)
	}
	return &repository.ReservationSeat{Reservation: *res, Seat: *s.st.seats[res.SeatID]}, nil
}

func (s *memSession) LockReservationForUser(ctx context.Context, reservationID, userID string) (*repository.ReservationContext, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	res, ok := s.st.reservations[reservationID]
	if !ok || res.UserID != userID {
		return nil, apperr.NotFound("Reservation %s not found", reservationID)
	}
	seat := s.st.seats[res.SeatID]
	return &repository.ReservationContext{
		Reservation: *res,
		Seat:        *seat,
		Screening:   *s.st.screenings[seat.ScreeningID],
	}, nil
}

func (s *memSession) LockPendingSiblings(ctx context.Context, userID, screeningID string, expiresAt time.Time) ([]repository.ReservationSeat, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []repository.ReservationSeat
	for _, res := range s.st.reservations {
		seat := s.st.seats[res.SeatID]
		if res.UserID == userID && seat.ScreeningID == screeningID &&
			res.ExpiresAt.Equal(expiresAt) && res.Status == model.ReservationPending {
			out = append(out, repository.ReservationSeat{Reservation: *res, Seat: *seat})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat.Label < out[j].Seat.Label })
	return out, nil
}

func (s *memSession) InsertReservation(ctx context.Context, res *model.Reservation) error {
	cp := *res
	s.muts = append(s.muts, func() { s.st.reservations[cp.ID] = &cp })
	return nil
}

func (s *memSession) InsertSale(ctx context.Context, sale *model.Sale) error {
	cp := *sale
	s.muts = append(s.muts, func() { s.st.sales[cp.ReservationID] = &cp })
	return nil
}

func (s *memSession) UpdateSeatStatus(ctx context.Context, seatID string, status model.SeatStatus) error {
	s.muts = append(s.muts, func() { s.st.seats[seatID].Status = status })
	return nil
}

func (s *memSession) UpdateReservationStatus(ctx context.Context, reservationID string, status model.ReservationStatus) error {
	s.muts = append(s.muts, func() { s.st.reservations[reservationID].Status = status })
	return nil
}

func (s *memSession) FindSaleByReservation(ctx context.Context, reservationID string) (*model.Sale, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	sale, ok := s.st.sales[reservationID]
	if !ok {
		return nil, apperr.NotFound("Sale for reservation %s not found", reservationID)
	}
	cp := *sale
	return &cp, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []string
	bodies []any
}

func (f *fakeSink) Publish(ctx context.Context, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.bodies = append(f.bodies, payload)
	return nil
}

type fakeScheduler struct {
	mu     sync.Mutex
	ids    []string
	delays []time.Duration
}

func (f *fakeScheduler) Schedule(ctx context.Context, reservationID string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, reservationID)
	f.delays = append(f.delays, delay)
	return nil
}

type world struct {
	store       *memStore
	sink        *fakeSink
	sched       *fakeScheduler
	coord       *Coordinator
	screeningID string
	now         time.Time
}

func newWorld(t *testing.T) *world {
	t.Helper()
	st := newMemStore()
	screeningID := uuid.NewString()
	now := time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC)
	st.screenings[screeningID] = &model.Screening{
		ID: screeningID, MovieName: "Stalker", StartTime: now.Add(2 * time.Hour),
		RoomNumber: 4, TicketPriceCents: 1500, IsActive: true,
	}
	for _, label := range []string{"A1", "A2", "B1"} {
		id := uuid.NewString()
		st.seats[id] = &model.Seat{
			ID: id, ScreeningID: screeningID, Label: label,
			RowLabel: label[:1], Status: model.SeatAvailable,
		}
	}
	sink := &fakeSink{}
	sched := &fakeScheduler{}
	retry := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}
	coord := NewCoordinator(st, sink, sched, 30*time.Second, retry, zap.NewNop())
	coord.now = func() time.Time { return now }
	return &world{store: st, sink: sink, sched: sched, coord: coord, screeningID: screeningID, now: now}
}

func (w *world) seatByLabel(t *testing.T, label string) *model.Seat {
	t.Helper()
	for _, seat := range w.store.seats {
		if seat.Label == label {
			return seat
		}
	}
	t.Fatalf("no seat labelled %s", label)
	return nil
}

func TestCreateHoldLocksSeatsInSortedOrder(t *testing.T) {
	w := newWorld(t)

	res, err := w.coord.CreateHold(context.Background(), "user-1", w.screeningID, []string{"B1", "A2", "A1"})
	require.NoError(t, err)
	require.Len(t, res.Reservations, 3)

	assert.Equal(t, []string{"A1", "A2", "B1"}, w.store.lockOrder)
	assert.Equal(t, w.now.Add(30*time.Second), res.ExpiresAt)
	for _, held := range res.Reservations {
		stored := w.store.reservations[held.ReservationID]
		require.NotNil(t, stored)
		assert.Equal(t, model.ReservationPending, stored.Status)
		assert.True(t, stored.ExpiresAt.Equal(res.ExpiresAt))
		assert.Equal(t, model.SeatReserved, w.store.seats[held.SeatID].Status)
	}
}

func TestCreateHoldValidation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, err := w.coord.CreateHold(ctx, "user-1", "not-a-uuid", []string{"A1"})
	assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(err))

	_, err = w.coord.CreateHold(ctx, "user-1", w.screeningID, nil)
	assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(err))

	_, err = w.coord.CreateHold(ctx, "user-1", w.screeningID, []string{"A1", "A1"})
	assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(err))

	_, err = w.coord.CreateHold(ctx, "", w.screeningID, []string{"A1"})
	assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(err))
}

func TestCreateHoldConflictLeavesNothingBehind(t *testing.T) {
	w := newWorld(t)
	w.seatByLabel(t, "A2").Status = model.SeatReserved

	_, err := w.coord.CreateHold(context.Background(), "user-1", w.screeningID, []string{"A1", "A2"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "A2")

	// A1 was locked first but the aborted session must not have reserved it.
	assert.Equal(t, model.SeatAvailable, w.seatByLabel(t, "A1").Status)
	assert.Empty(t, w.store.reservations)
	assert.Empty(t, w.sink.events)
	assert.Empty(t, w.sched.ids)
}

func TestCreateHoldInactiveScreening(t *testing.T) {
	w := newWorld(t)
	w.store.screenings[w.screeningID].IsActive = false

	_, err := w.coord.CreateHold(context.Background(), "user-1", w.screeningID, []string{"A1"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCreateHoldPublishesAndSchedules(t *testing.T) {
	w := newWorld(t)

	res, err := w.coord.CreateHold(context.Background(), "user-1", w.screeningID, []string{"A1", "B1"})
	require.NoError(t, err)

	require.Equal(t, []string{EventReservationCreated, EventReservationCreated}, w.sink.events)
	require.Len(t, w.sched.ids, 2)
	for i, held := range res.Reservations {
		assert.Equal(t, held.ReservationID, w.sched.ids[i])
		assert.Equal(t, 30*time.Second, w.sched.delays[i])
		ev := w.sink.bodies[i].(ReservationCreatedEvent)
		assert.Equal(t, held.ReservationID, ev.ReservationID)
		assert.Equal(t, held.SeatLabel, ev.SeatLabel)
	}
}

func TestConfirmPromotesWholeGroup(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	hold, err := w.coord.CreateHold(ctx, "user-1", w.screeningID, []string{"A1", "B1"})
	require.NoError(t, err)
	w.sink.events = nil

	target := hold.Reservations[1]
	got, err := w.coord.ConfirmPayment(ctx, "user-1", target.ReservationID)
	require.NoError(t, err)

	assert.Equal(t, target.ReservationID, got.Sale.ReservationID)
	assert.Equal(t, "B1", got.SeatLabel)
	assert.Equal(t, "Stalker", got.MovieName)
	assert.Equal(t, uint32(1500), got.Sale.AmountCents)

	// Both reservations in the group are promoted with one shared payment time.
	var paid []time.Time
	for _, held := range hold.Reservations {
		assert.Equal(t, model.ReservationConfirmed, w.store.reservations[held.ReservationID].Status)
		assert.Equal(t, model.SeatSold, w.store.seats[held.SeatID].Status)
		sale := w.store.sales[held.ReservationID]
		require.NotNil(t, sale)
		paid = append(paid, sale.PaidAt)
	}
	assert.True(t, paid[0].Equal(paid[1]))
	assert.Equal(t, []string{EventPaymentConfirmed, EventPaymentConfirmed}, w.sink.events)
}

func TestConfirmIsIdempotent(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	hold, err := w.coord.CreateHold(ctx, "user-1", w.screeningID, []string{"A1"})
	require.NoError(t, err)
	target := hold.Reservations[0].ReservationID

	first, err := w.coord.ConfirmPayment(ctx, "user-1", target)
	require.NoError(t, err)
	w.sink.events = nil

	second, err := w.coord.ConfirmPayment(ctx, "user-1", target)
	require.NoError(t, err)
	assert.Equal(t, first.Sale.ID, second.Sale.ID)
	assert.Len(t, w.store.sales, 1)
	assert.Empty(t, w.sink.events, "replay must not re-emit payment events")
}

func TestConfirmExpiredHold(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	hold, err := w.coord.CreateHold(ctx, "user-1", w.screeningID, []string{"A1"})
	require.NoError(t, err)

	w.coord.now = func() time.Time { return w.now.Add(31 * time.Second) }
	_, err = w.coord.ConfirmPayment(ctx, "user-1", hold.Reservations[0].ReservationID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "expired")
}

func TestConfirmOwnershipDoesNotLeak(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	hold, err := w.coord.CreateHold(ctx, "user-1", w.screeningID, []string{"A1"})
	require.NoError(t, err)

	_, err = w.coord.ConfirmPayment(ctx, "user-2", hold.Reservations[0].ReservationID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestConfirmNonPendingReservation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	hold, err := w.coord.CreateHold(ctx, "user-1", w.screeningID, []string{"A1"})
	require.NoError(t, err)
	target := hold.Reservations[0].ReservationID
	w.store.reservations[target].Status = model.ReservationExpired

	_, err = w.coord.ConfirmPayment(ctx, "user-1", target)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "EXPIRED")
}

func TestExpireUnknownReservationIsNoop(t *testing.T) {
	w := newWorld(t)

	res, err := w.coord.Expire(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.False(t, res.Released)
	assert.Zero(t, res.Retry)
}

func TestExpireConfirmedReservationIsNoop(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	hold, err := w.coord.CreateHold(ctx, "user-1", w.screeningID, []string{"A1"})
	require.NoError(t, err)
	target := hold.Reservations[0]
	_, err = w.coord.ConfirmPayment(ctx, "user-1", target.ReservationID)
	require.NoError(t, err)
	w.sink.events = nil

	res, err := w.coord.Expire(ctx, target.ReservationID)
	require.NoError(t, err)
	assert.False(t, res.Released)
	assert.Equal(t, model.SeatSold, w.store.seats[target.SeatID].Status)
	assert.Empty(t, w.sink.events)
}

func TestExpireEarlyTimerReportsResidual(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	hold, err := w.coord.CreateHold(ctx, "user-1", w.screeningID, []string{"A1"})
	require.NoError(t, err)
	target := hold.Reservations[0]

	w.coord.now = func() time.Time { return w.now.Add(20 * time.Second) }
	res, err := w.coord.Expire(ctx, target.ReservationID)
	require.NoError(t, err)
	assert.False(t, res.Released)
	assert.Equal(t, 10*time.Second, res.Retry)
	assert.Equal(t, model.ReservationPending, w.store.reservations[target.ReservationID].Status)
	assert.Equal(t, model.SeatReserved, w.store.seats[target.SeatID].Status)
}

func TestExpireReleasesSeat(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	hold, err := w.coord.CreateHold(ctx, "user-1", w.screeningID, []string{"A1"})
	require.NoError(t, err)
	target := hold.Reservations[0]
	w.sink.events = nil

	w.coord.now = func() time.Time { return w.now.Add(31 * time.Second) }
	res, err := w.coord.Expire(ctx, target.ReservationID)
	require.NoError(t, err)
	assert.True(t, res.Released)
	assert.Equal(t, model.ReservationExpired, w.store.reservations[target.ReservationID].Status)
	assert.Equal(t, model.SeatAvailable, w.store.seats[target.SeatID].Status)
	assert.Equal(t, []string{EventReservationExpired, EventSeatReleased}, w.sink.events)

	// Redelivery of the same command after release changes nothing.
	again, err := w.coord.Expire(ctx, target.ReservationID)
	require.NoError(t, err)
	assert.False(t, again.Released)
}

func TestCreateHoldRetriesStoreConflicts(t *testing.T) {
	w := newWorld(t)
	deadlock := apperr.New(apperr.KindStoreConflict, "Deadlock found when trying to get lock")
	w.store.lockSeatErrs = []error{deadlock, deadlock}

	res, err := w.coord.CreateHold(context.Background(), "user-1", w.screeningID, []string{"A1"})
	require.NoError(t, err)
	require.Len(t, res.Reservations, 1)
	assert.Equal(t, model.SeatReserved, w.seatByLabel(t, "A1").Status)
}

func TestCreateHoldGivesUpAfterMaxAttempts(t *testing.T) {
	w := newWorld(t)
	deadlock := apperr.New(apperr.KindStoreConflict, "Deadlock found when trying to get lock")
	w.store.lockSeatErrs = []error{deadlock, deadlock, deadlock}

	_, err := w.coord.CreateHold(context.Background(), "user-1", w.screeningID, []string{"A1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindStoreConflict, apperr.KindOf(err))
	assert.Empty(t, w.store.reservations)
}
