package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-box-office/internal/model"
)

// ReservationRepo provides the read-only reservation queries used by the
// listing endpoints.  All mutations go through a Session.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReservationDetail is a reservation joined with its seat and screening for
// display to customers.
type ReservationDetail struct {
	ID         string                  `json:"id"`
	SeatLabel  string                  `json:"seat_label"`
	Status     model.ReservationStatus `json:"status"`
	ExpiresAt  string                  `json:"expires_at"`
	MovieName  string                  `json:"movie_name"`
	StartTime  string                  `json:"start_time"`
	RoomNumber uint32                  `json:"room_number"`
	CreatedAt  string                  `json:"created_at"`
}

// ListByUser returns all reservations for the given user, newest first.
// When no reservations exist, an empty slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string) ([]ReservationDetail, error) {
	const q = `SELECT r.id, se.label, r.status, r.expires_at, sc.movie_name, sc.start_time, sc.room_number, r.created_at
	           FROM reservations r
	           JOIN seats se ON se.id = r.seat_id
	           JOIN screenings sc ON sc.id = se.screening_id
	           WHERE r.user_id = ?
	           ORDER BY r.created_at DESC, se.label`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		var expiresAt, startTime, createdAt time.Time
		if err := rows.Scan(
			&d.ID, &d.SeatLabel, &d.Status, &expiresAt,
			&d.MovieName, &startTime, &d.RoomNumber, &createdAt,
		); err != nil {
			return nil, classify(err)
		}
		d.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
		d.StartTime = startTime.UTC().Format(time.RFC3339)
		d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return details, nil
}
