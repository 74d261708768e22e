package model

import "time"

// SeatStatus enumerates the lifecycle of a seat within a screening.  SOLD is
// terminal; AVAILABLE may be re-entered only from RESERVED when a hold
// expires.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatSold      SeatStatus = "SOLD"
)

// Seat describes one bookable position within a screening.  Seats are
// uniquely identified by their screening and label (e.g. "A3").  They are
// created when the screening is provisioned and never destroyed; only the
// status changes afterwards.
//
// Fields:
//
//	ID          – primary key (UUID string).
//	ScreeningID – screening this seat belongs to.
//	Label       – human-readable seat label, unique per screening.
//	RowLabel    – letter or string designating the row.
//	Status      – AVAILABLE, RESERVED or SOLD.
//	CreatedAt   – creation timestamp.
//	UpdatedAt   – last update timestamp.
type Seat struct {
	ID          string     `json:"id"`
	ScreeningID string     `json:"screening_id"`
	Label       string     `json:"label"`
	RowLabel    string     `json:"row_label"`
	Status      SeatStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
