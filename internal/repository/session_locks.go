package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-box-office/internal/apperr"
	"github.com/iliyamo/cinema-box-office/internal/model"
)

// ReservationSeat pairs a reservation with the seat it holds.  The two rows
// are locked together by the queries that return it.
type ReservationSeat struct {
	Reservation model.Reservation
	Seat        model.Seat
}

// ReservationContext adds the seat's screening to a ReservationSeat.  It is
// what the confirm path needs: the screening carries the ticket price and
// identifies the booking group.
type ReservationContext struct {
	Reservation model.Reservation
	Seat        model.Seat
	Screening   model.Screening
}

// Screening fetches a screening by ID without locking it.  Screening rows
// are immutable during booking, so a plain read inside the transaction is
// enough.
func (s *Session) Screening(ctx context.Context, screeningID string) (*model.Screening, error) {
	const q = `SELECT id, movie_name, start_time, room_number, ticket_price_cents, is_active, created_at, updated_at
	           FROM screenings WHERE id = ?`
	var sc model.Screening
	err := s.tx.QueryRowContext(ctx, q, screeningID).Scan(
		&sc.ID, &sc.MovieName, &sc.StartTime, &sc.RoomNumber,
		&sc.TicketPriceCents, &sc.IsActive, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Screening %s not found", screeningID)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &sc, nil
}

// LockSeat fetches one seat by screening and label and takes an exclusive
// row lock on it.  A concurrent session contending on the same seat blocks
// here until this session ends, then observes the committed status.
func (s *Session) LockSeat(ctx context.Context, screeningID, label string) (*model.Seat, error) {
	const q = `SELECT id, screening_id, label, row_label, status, created_at, updated_at
	           FROM seats WHERE screening_id = ? AND label = ? FOR UPDATE`
	var seat model.Seat
	err := s.tx.QueryRowContext(ctx, q, screeningID, label).Scan(
		&seat.ID, &seat.ScreeningID, &seat.Label, &seat.RowLabel,
		&seat.Status, &seat.CreatedAt, &seat.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Seat %s not found in screening %s", label, screeningID)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &seat, nil
}

// LockReservation fetches a reservation joined with its seat and locks both
// rows.  Used by the expire path, which does not care who owns the hold.
func (s *Session) LockReservation(ctx context.Context, reservationID string) (*ReservationSeat, error) {
	const q = `SELECT r.id, r.seat_id, r.user_id, r.status, r.expires_at, r.created_at, r.updated_at,
	                  se.id, se.screening_id, se.label, se.row_label, se.status, se.created_at, se.updated_at
	           FROM reservations r
	           JOIN seats se ON se.id = r.seat_id
	           WHERE r.id = ?
	           FOR UPDATE`
	var rs ReservationSeat
	err := s.tx.QueryRowContext(ctx, q, reservationID).Scan(
		&rs.Reservation.ID, &rs.Reservation.SeatID, &rs.Reservation.UserID,
		&rs.Reservation.Status, &rs.Reservation.ExpiresAt,
		&rs.Reservation.CreatedAt, &rs.Reservation.UpdatedAt,
		&rs.Seat.ID, &rs.Seat.ScreeningID, &rs.Seat.Label, &rs.Seat.RowLabel,
		&rs.Seat.Status, &rs.Seat.CreatedAt, &rs.Seat.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Reservation %s not found", reservationID)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &rs, nil
}

// LockReservationForUser fetches a reservation joined with its seat and the
// seat's screening, constrained to the given user, and locks the rows.  A
// reservation owned by someone else is indistinguishable from a missing one
// so ownership information does not leak.
func (s *Session) LockReservationForUser(ctx context.Context, reservationID, userID string) (*ReservationContext, error) {
	const q = `SELECT r.id, r.seat_id, r.user_id, r.status, r.expires_at, r.created_at, r.updated_at,
	                  se.id, se.screening_id, se.label, se.row_label, se.status, se.created_at, se.updated_at,
	                  sc.id, sc.movie_name, sc.start_time, sc.room_number, sc.ticket_price_cents, sc.is_active, sc.created_at, sc.updated_at
	           FROM reservations r
	           JOIN seats se ON se.id = r.seat_id
	           JOIN screenings sc ON sc.id = se.screening_id
	           WHERE r.id = ? AND r.user_id = ?
	           FOR UPDATE`
	var rc ReservationContext
	err := s.tx.QueryRowContext(ctx, q, reservationID, userID).Scan(
		&rc.Reservation.ID, &rc.Reservation.SeatID, &rc.Reservation.UserID,
		&rc.Reservation.Status, &rc.Reservation.ExpiresAt,
		&rc.Reservation.CreatedAt, &rc.Reservation.UpdatedAt,
		&rc.Seat.ID, &rc.Seat.ScreeningID, &rc.Seat.Label, &rc.Seat.RowLabel,
		&rc.Seat.Status, &rc.Seat.CreatedAt, &rc.Seat.UpdatedAt,
		&rc.Screening.ID, &rc.Screening.MovieName, &rc.Screening.StartTime,
		&rc.Screening.RoomNumber, &rc.Screening.TicketPriceCents, &rc.Screening.IsActive,
		&rc.Screening.CreatedAt, &rc.Screening.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Reservation %s not found", reservationID)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &rc, nil
}

// LockPendingSiblings fetches and locks every reservation still PENDING that
// shares the booking-group fingerprint {userID, screeningID, expiresAt}.
// The result includes the target reservation itself and is ordered by seat
// label so group promotion happens in a stable order.
func (s *Session) LockPendingSiblings(ctx context.Context, userID, screeningID string, expiresAt time.Time) ([]ReservationSeat, error) {
	const q = `SELECT r.id, r.seat_id, r.user_id, r.status, r.expires_at, r.created_at, r.updated_at,
	                  se.id, se.screening_id, se.label, se.row_label, se.status, se.created_at, se.updated_at
	           FROM reservations r
	           JOIN seats se ON se.id = r.seat_id
	           WHERE r.user_id = ? AND se.screening_id = ? AND r.expires_at = ? AND r.status = 'PENDING'
	           ORDER BY se.label
	           FOR UPDATE`
	rows, err := s.tx.QueryContext(ctx, q, userID, screeningID, expiresAt)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var siblings []ReservationSeat
	for rows.Next() {
		var rs ReservationSeat
		if err := rows.Scan(
			&rs.Reservation.ID, &rs.Reservation.SeatID, &rs.Reservation.UserID,
			&rs.Reservation.Status, &rs.Reservation.ExpiresAt,
			&rs.Reservation.CreatedAt, &rs.Reservation.UpdatedAt,
			&rs.Seat.ID, &rs.Seat.ScreeningID, &rs.Seat.Label, &rs.Seat.RowLabel,
			&rs.Seat.Status, &rs.Seat.CreatedAt, &rs.Seat.UpdatedAt,
		); err != nil {
			return nil, classify(err)
		}
		siblings = append(siblings, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return siblings, nil
}
