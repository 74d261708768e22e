package model

import "time"

// ReservationStatus enumerates the states of a hold.  Transitions are
// monotonic: a reservation leaves PENDING exactly once and never returns.
// CANCELLED exists in the enum for a future user-initiated cancel operation;
// no operation in this service produces it today.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Terminal reports whether the status is a final state.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationConfirmed || s == ReservationExpired || s == ReservationCancelled
}

// Reservation is a time-bounded exclusive hold on exactly one seat by one
// buyer.  Reservations created by a single multi-seat hold request share the
// same ExpiresAt; the tuple {UserID, screening, ExpiresAt} therefore
// identifies the booking group without a stored group column.
//
// Fields:
//
//	ID        – primary key (UUID string).
//	SeatID    – the held seat.
//	UserID    – opaque identifier of the buyer.
//	Status    – PENDING, CONFIRMED, EXPIRED or CANCELLED.
//	ExpiresAt – absolute deadline after which the hold may be reclaimed.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type Reservation struct {
	ID        string            `json:"id"`
	SeatID    string            `json:"seat_id"`
	UserID    string            `json:"user_id"`
	Status    ReservationStatus `json:"status"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
