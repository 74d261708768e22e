package model

import "time"

// Sale is the append-only record of a confirmed purchase.  Exactly one sale
// exists per confirmed reservation; sales are never mutated or deleted.
//
// Fields:
//
//	ID            – primary key (UUID string).
//	SeatID        – the purchased seat.
//	UserID        – buyer identifier, copied from the reservation.
//	ReservationID – the confirmed reservation (unique reference).
//	AmountCents   – amount paid, in cents.
//	PaidAt        – when payment was asserted; shared across a booking group.
//	CreatedAt     – creation timestamp.
type Sale struct {
	ID            string    `json:"id"`
	SeatID        string    `json:"seat_id"`
	UserID        string    `json:"user_id"`
	ReservationID string    `json:"reservation_id"`
	AmountCents   uint32    `json:"amount_cents"`
	PaidAt        time.Time `json:"paid_at"`
	CreatedAt     time.Time `json:"created_at"`
}
