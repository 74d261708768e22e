// Package service implements the reservation coordinator: the two-phase
// hold/confirm protocol, expiration, and the post-commit event stream.  All
// seat and reservation transitions happen inside a single transactional
// session with exclusive row locks; events and timers are emitted only after
// the session commits.
package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-box-office/internal/apperr"
	"github.com/iliyamo/cinema-box-office/internal/model"
	"github.com/iliyamo/cinema-box-office/internal/repository"
)

// Session is the transactional surface the coordinator works against.  It is
// satisfied by *repository.Session; tests substitute a fake.
type Session interface {
	Screening(ctx context.Context, screeningID string) (*model.Screening, error)
	LockSeat(ctx context.Context, screeningID, label string) (*model.Seat, error)
	LockReservation(ctx context.Context, reservationID string) (*repository.ReservationSeat, error)
	LockReservationForUser(ctx context.Context, reservationID, userID string) (*repository.ReservationContext, error)
	LockPendingSiblings(ctx context.Context, userID, screeningID string, expiresAt time.Time) ([]repository.ReservationSeat, error)
	InsertReservation(ctx context.Context, res *model.Reservation) error
	InsertSale(ctx context.Context, sale *model.Sale) error
	UpdateSeatStatus(ctx context.Context, seatID string, status model.SeatStatus) error
	UpdateReservationStatus(ctx context.Context, reservationID string, status model.ReservationStatus) error
	FindSaleByReservation(ctx context.Context, reservationID string) (*model.Sale, error)
	Commit() error
	Rollback() error
}

// Store opens transactional sessions.
type Store interface {
	Begin(ctx context.Context) (Session, error)
}

// EventSink receives domain events after the owning transaction commits.
// Publish failures are logged and swallowed: the state change already
// happened and must not be un-reported to the caller.
type EventSink interface {
	Publish(ctx context.Context, event string, payload any) error
}

// DelayScheduler enqueues an expiration command that becomes visible to the
// consumer after the given delay.
type DelayScheduler interface {
	Schedule(ctx context.Context, reservationID string, delay time.Duration) error
}

// ExpireResult reports what an expire call did.  Released means the
// reservation transitioned to EXPIRED and its seat returned to the pool.
// Retry, when positive, means the timer fired before the deadline and the
// command should be re-enqueued with that residual delay.
type ExpireResult struct {
	Released bool
	Retry    time.Duration
}

// HeldSeat is one reservation created by a hold.
type HeldSeat struct {
	ReservationID string
	SeatID        string
	SeatLabel     string
}

// HoldResult is the outcome of CreateHold.  Every reservation in it shares
// the same expiry instant, which is what groups them for confirmation.
type HoldResult struct {
	Reservations []HeldSeat
	ExpiresAt    time.Time
}

// ConfirmResult describes the sale created (or found, on an idempotent
// replay) for the reservation the caller named.  Sibling sales from the same
// booking group are created in the same transaction but not returned.
type ConfirmResult struct {
	Sale       model.Sale
	SeatLabel  string
	MovieName  string
	RoomNumber uint32
}

// Coordinator owns the reservation state machine.
type Coordinator struct {
	store  Store
	events EventSink
	delay  DelayScheduler
	ttl    time.Duration
	retry  RetryConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewCoordinator wires a coordinator.  ttl is how long a hold stays PENDING
// before the expiration timer fires.
func NewCoordinator(store Store, events EventSink, delay DelayScheduler, ttl time.Duration, retry RetryConfig, log *zap.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		events: events,
		delay:  delay,
		ttl:    ttl,
		retry:  retry,
		log:    log,
		now:    time.Now,
	}
}

// CreateHold places a PENDING reservation on each requested seat and starts
// the shared expiration timer.  Seats are locked in sorted label order, so
// two overlapping holds always contend on their first common seat instead of
// deadlocking.  If any seat is unavailable the whole hold fails and no seat
// changes state.
func (c *Coordinator) CreateHold(ctx context.Context, userID, screeningID string, seatLabels []string) (*HoldResult, error) {
	if userID == "" {
		return nil, apperr.InvalidRequest("Missing user identity")
	}
	if _, err := uuid.Parse(screeningID); err != nil {
		return nil, apperr.InvalidRequest("Invalid screening id")
	}
	if len(seatLabels) == 0 {
		return nil, apperr.InvalidRequest("At least one seat label is required")
	}
	labels := make([]string, len(seatLabels))
	copy(labels, seatLabels)
	sort.Strings(labels)
	for i, l := range labels {
		if l == "" {
			return nil, apperr.InvalidRequest("Seat labels must not be empty")
		}
		if i > 0 && labels[i-1] == l {
			return nil, apperr.InvalidRequest("Duplicate seat label %s", l)
		}
	}

	var result *HoldResult
	err := c.retry.do(ctx, c.log, "create_hold", func() error {
		var err error
		result, err = c.createHold(ctx, userID, screeningID, labels)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, held := range result.Reservations {
		c.publish(ctx, EventReservationCreated, ReservationCreatedEvent{
			ReservationID: held.ReservationID,
			SeatID:        held.SeatID,
			SeatLabel:     held.SeatLabel,
			UserID:        userID,
			ExpiresAt:     result.ExpiresAt.Format(time.RFC3339Nano),
		})
		if err := c.delay.Schedule(ctx, held.ReservationID, c.ttl); err != nil {
			// The hold is already committed.  Confirm still checks the
			// deadline against the clock, so an unscheduled timer can block
			// the seat but never produce a stale sale.
			c.log.Error("schedule expiration failed",
				zap.String("reservation_id", held.ReservationID), zap.Error(err))
		}
	}
	return result, nil
}

func (c *Coordinator) createHold(ctx context.Context, userID, screeningID string, labels []string) (*HoldResult, error) {
	now := c.now().UTC()
	// Truncated to the store's timestamp resolution so the fingerprint
	// round-trips identically through MySQL.
	expiresAt := now.Add(c.ttl).Truncate(time.Microsecond)

	sess, err := c.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Rollback() }()

	screening, err := sess.Screening(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if !screening.IsActive {
		return nil, apperr.Conflict("Screening %s is not open for booking", screeningID)
	}

	held := make([]HeldSeat, 0, len(labels))
	for _, label := range labels {
		seat, err := sess.LockSeat(ctx, screeningID, label)
		if err != nil {
			return nil, err
		}
		if seat.Status != model.SeatAvailable {
			return nil, apperr.Conflict("Seat %s is not available (current status: %s)", label, seat.Status)
		}
		if err := sess.UpdateSeatStatus(ctx, seat.ID, model.SeatReserved); err != nil {
			return nil, err
		}
		res := &model.Reservation{
			ID:        uuid.NewString(),
			SeatID:    seat.ID,
			UserID:    userID,
			Status:    model.ReservationPending,
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := sess.InsertReservation(ctx, res); err != nil {
			return nil, err
		}
		held = append(held, HeldSeat{ReservationID: res.ID, SeatID: seat.ID, SeatLabel: label})
	}

	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return &HoldResult{Reservations: held, ExpiresAt: expiresAt}, nil
}

// ConfirmPayment promotes a pending reservation to CONFIRMED, sells the
// seat, and does the same for every sibling reservation in the booking group
// (same user, screening and expiry), all in one transaction with one shared
// payment time.  Confirming an already-confirmed reservation returns the
// existing sale unchanged.
func (c *Coordinator) ConfirmPayment(ctx context.Context, userID, reservationID string) (*ConfirmResult, error) {
	if userID == "" {
		return nil, apperr.InvalidRequest("Missing user identity")
	}
	if _, err := uuid.Parse(reservationID); err != nil {
		return nil, apperr.InvalidRequest("Invalid reservation id")
	}

	var (
		result *ConfirmResult
		sales  []PaymentConfirmedEvent
	)
	err := c.retry.do(ctx, c.log, "confirm_payment", func() error {
		var err error
		result, sales, err = c.confirmPayment(ctx, userID, reservationID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, ev := range sales {
		c.publish(ctx, EventPaymentConfirmed, ev)
	}
	return result, nil
}

func (c *Coordinator) confirmPayment(ctx context.Context, userID, reservationID string) (*ConfirmResult, []PaymentConfirmedEvent, error) {
	sess, err := c.store.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = sess.Rollback() }()

	rc, err := sess.LockReservationForUser(ctx, reservationID, userID)
	if err != nil {
		return nil, nil, err
	}

	if rc.Reservation.Status == model.ReservationConfirmed {
		sale, err := sess.FindSaleByReservation(ctx, reservationID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil, apperr.InvalidState("Reservation %s is confirmed but has no sale", reservationID)
		}
		if err != nil {
			return nil, nil, err
		}
		return &ConfirmResult{
			Sale:       *sale,
			SeatLabel:  rc.Seat.Label,
			MovieName:  rc.Screening.MovieName,
			RoomNumber: rc.Screening.RoomNumber,
		}, nil, nil
	}
	if rc.Reservation.Status != model.ReservationPending {
		return nil, nil, apperr.Conflict("Reservation is not pending (status: %s)", rc.Reservation.Status)
	}

	now := c.now().UTC()
	if now.After(rc.Reservation.ExpiresAt) {
		// The timer will release the seat shortly; the hold is already dead.
		return nil, nil, apperr.Conflict("Reservation has expired")
	}

	siblings, err := sess.LockPendingSiblings(ctx, userID, rc.Seat.ScreeningID, rc.Reservation.ExpiresAt)
	if err != nil {
		return nil, nil, err
	}

	paidAt := now
	var (
		result *ConfirmResult
		events []PaymentConfirmedEvent
	)
	for _, sib := range siblings {
		if err := sess.UpdateReservationStatus(ctx, sib.Reservation.ID, model.ReservationConfirmed); err != nil {
			return nil, nil, err
		}
		if err := sess.UpdateSeatStatus(ctx, sib.Seat.ID, model.SeatSold); err != nil {
			return nil, nil, err
		}
		sale := model.Sale{
			ID:            uuid.NewString(),
			SeatID:        sib.Seat.ID,
			UserID:        userID,
			ReservationID: sib.Reservation.ID,
			AmountCents:   rc.Screening.TicketPriceCents,
			PaidAt:        paidAt,
			CreatedAt:     paidAt,
		}
		if err := sess.InsertSale(ctx, &sale); err != nil {
			return nil, nil, err
		}
		events = append(events, PaymentConfirmedEvent{
			SaleID:        sale.ID,
			ReservationID: sale.ReservationID,
			SeatID:        sale.SeatID,
			SeatLabel:     sib.Seat.Label,
			UserID:        userID,
			AmountCents:   sale.AmountCents,
		})
		if sib.Reservation.ID == reservationID {
			result = &ConfirmResult{
				Sale:       sale,
				SeatLabel:  sib.Seat.Label,
				MovieName:  rc.Screening.MovieName,
				RoomNumber: rc.Screening.RoomNumber,
			}
		}
	}
	if result == nil {
		// The target row was locked PENDING above, so it must be in the group.
		return nil, nil, apperr.InvalidState("Reservation %s missing from its own booking group", reservationID)
	}

	if err := sess.Commit(); err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// Expire transitions a pending reservation whose deadline has passed to
// EXPIRED and releases its seat.  It is the idempotent target of the delayed
// expiration queue: a reservation that is gone, already terminal, or not yet
// due results in a no-op (with a residual-delay hint in the last case), never
// an error, so redeliveries are harmless.
func (c *Coordinator) Expire(ctx context.Context, reservationID string) (ExpireResult, error) {
	var (
		result   ExpireResult
		expired  *ReservationExpiredEvent
		released *SeatReleasedEvent
	)
	err := c.retry.do(ctx, c.log, "expire", func() error {
		var err error
		result, expired, released, err = c.expire(ctx, reservationID)
		return err
	})
	if err != nil {
		return ExpireResult{}, err
	}

	if expired != nil {
		c.publish(ctx, EventReservationExpired, *expired)
	}
	if released != nil {
		c.publish(ctx, EventSeatReleased, *released)
	}
	return result, nil
}

func (c *Coordinator) expire(ctx context.Context, reservationID string) (ExpireResult, *ReservationExpiredEvent, *SeatReleasedEvent, error) {
	sess, err := c.store.Begin(ctx)
	if err != nil {
		return ExpireResult{}, nil, nil, err
	}
	defer func() { _ = sess.Rollback() }()

	rs, err := sess.LockReservation(ctx, reservationID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return ExpireResult{}, nil, nil, nil
	}
	if err != nil {
		return ExpireResult{}, nil, nil, err
	}
	if rs.Reservation.Status != model.ReservationPending {
		// Confirmed, cancelled, or already expired: nothing left to do.
		return ExpireResult{}, nil, nil, nil
	}

	now := c.now().UTC()
	if !now.After(rs.Reservation.ExpiresAt) {
		return ExpireResult{Retry: rs.Reservation.ExpiresAt.Sub(now)}, nil, nil, nil
	}

	if err := sess.UpdateReservationStatus(ctx, rs.Reservation.ID, model.ReservationExpired); err != nil {
		return ExpireResult{}, nil, nil, err
	}
	var released *SeatReleasedEvent
	if rs.Seat.Status == model.SeatReserved {
		if err := sess.UpdateSeatStatus(ctx, rs.Seat.ID, model.SeatAvailable); err != nil {
			return ExpireResult{}, nil, nil, err
		}
		released = &SeatReleasedEvent{
			SeatID:      rs.Seat.ID,
			SeatLabel:   rs.Seat.Label,
			ScreeningID: rs.Seat.ScreeningID,
		}
	}

	if err := sess.Commit(); err != nil {
		return ExpireResult{}, nil, nil, err
	}
	expired := &ReservationExpiredEvent{
		ReservationID: rs.Reservation.ID,
		SeatID:        rs.Seat.ID,
		SeatLabel:     rs.Seat.Label,
		UserID:        rs.Reservation.UserID,
	}
	return ExpireResult{Released: true}, expired, released, nil
}

func (c *Coordinator) publish(ctx context.Context, event string, payload any) {
	if err := c.events.Publish(ctx, event, payload); err != nil {
		c.log.Error("publish event failed", zap.String("event", event), zap.Error(err))
	}
}
