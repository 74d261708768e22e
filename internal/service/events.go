package service

// Domain event names, used as routing keys on the events exchange.  Events
// are published only after the triggering transaction has committed, so no
// phantom events can arise from rolled-back state.  Delivery is best-effort
// at-least-once; consumers are assumed idempotent.
const (
	EventReservationCreated = "reservation.created"
	EventPaymentConfirmed   = "payment.confirmed"
	EventReservationExpired = "reservation.expired"
	EventSeatReleased       = "seat.released"
)

// ReservationCreatedEvent is emitted after a hold commits, once per
// reservation in the request.
type ReservationCreatedEvent struct {
	ReservationID string `json:"reservation_id"`
	SeatID        string `json:"seat_id"`
	SeatLabel     string `json:"seat_label"`
	UserID        string `json:"user_id"`
	ExpiresAt     string `json:"expires_at"`
}

// PaymentConfirmedEvent is emitted after a confirm commits, once per sale
// in the booking group.
type PaymentConfirmedEvent struct {
	SaleID        string `json:"sale_id"`
	ReservationID string `json:"reservation_id"`
	SeatID        string `json:"seat_id"`
	SeatLabel     string `json:"seat_label"`
	UserID        string `json:"user_id"`
	AmountCents   uint32 `json:"amount_cents"`
}

// ReservationExpiredEvent is emitted after an expiration commits.
type ReservationExpiredEvent struct {
	ReservationID string `json:"reservation_id"`
	SeatID        string `json:"seat_id"`
	SeatLabel     string `json:"seat_label"`
	UserID        string `json:"user_id"`
}

// SeatReleasedEvent is emitted alongside ReservationExpiredEvent when the
// seat returns to the pool.
type SeatReleasedEvent struct {
	SeatID      string `json:"seat_id"`
	SeatLabel   string `json:"seat_label"`
	ScreeningID string `json:"screening_id"`
}
