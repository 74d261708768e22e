package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-box-office/internal/apperr"
	"github.com/iliyamo/cinema-box-office/internal/model"
)

// InsertReservation inserts a new reservation row.  The caller supplies the
// ID and timestamps; nothing is generated by the database so the record
// returned to the client matches the stored row exactly.
func (s *Session) InsertReservation(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (id, seat_id, user_id, status, expires_at, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.tx.ExecContext(ctx, q,
		res.ID, res.SeatID, res.UserID, res.Status, res.ExpiresAt,
		res.CreatedAt, res.UpdatedAt,
	)
	return classify(err)
}

// InsertSale inserts a new sale row.  The unique key on reservation_id makes
// a second sale for the same reservation impossible at the store level.
func (s *Session) InsertSale(ctx context.Context, sale *model.Sale) error {
	const q = `INSERT INTO sales (id, seat_id, user_id, reservation_id, amount_cents, paid_at, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.tx.ExecContext(ctx, q,
		sale.ID, sale.SeatID, sale.UserID, sale.ReservationID,
		sale.AmountCents, sale.PaidAt, sale.CreatedAt,
	)
	return classify(err)
}

// UpdateSeatStatus sets the status of one seat.  The caller must already
// hold the row lock via LockSeat or one of the reservation joins.
func (s *Session) UpdateSeatStatus(ctx context.Context, seatID string, status model.SeatStatus) error {
	_, err := s.tx.ExecContext(ctx, `UPDATE seats SET status = ? WHERE id = ?`, status, seatID)
	return classify(err)
}

// UpdateReservationStatus sets the status of one reservation.  The caller
// must already hold the row lock.
func (s *Session) UpdateReservationStatus(ctx context.Context, reservationID string, status model.ReservationStatus) error {
	_, err := s.tx.ExecContext(ctx, `UPDATE reservations SET status = ? WHERE id = ?`, status, reservationID)
	return classify(err)
}

// FindSaleByReservation looks up the sale created for a reservation.  Used
// by the confirm idempotency short-circuit.
func (s *Session) FindSaleByReservation(ctx context.Context, reservationID string) (*model.Sale, error) {
	const q = `SELECT id, seat_id, user_id, reservation_id, amount_cents, paid_at, created_at
	           FROM sales WHERE reservation_id = ?`
	var sale model.Sale
	err := s.tx.QueryRowContext(ctx, q, reservationID).Scan(
		&sale.ID, &sale.SeatID, &sale.UserID, &sale.ReservationID,
		&sale.AmountCents, &sale.PaidAt, &sale.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Sale for reservation %s not found", reservationID)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &sale, nil
}
