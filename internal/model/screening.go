package model

import "time"

// Screening represents one scheduled showing of a movie in a specific room
// at a specific time.  A screening owns a fixed seat inventory that is
// provisioned exactly once, when the screening is created.
//
// Fields:
//
//	ID               – primary key (UUID string).
//	MovieName        – title of the movie being shown.
//	StartTime        – when the screening begins (UTC).
//	RoomNumber       – room in which the screening takes place.
//	TicketPriceCents – price of every seat in this screening, in cents.
//	IsActive         – whether the screening is open for booking.
//	CreatedAt        – creation timestamp.
//	UpdatedAt        – last update timestamp.
type Screening struct {
	ID               string    `json:"id"`
	MovieName        string    `json:"movie_name"`
	StartTime        time.Time `json:"start_time"`
	RoomNumber       uint32    `json:"room_number"`
	TicketPriceCents uint32    `json:"ticket_price_cents"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
