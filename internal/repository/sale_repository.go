package repository

import (
	"context"
	"database/sql"
	"time"
)

// SaleRepo provides the read-only sale queries used by the history
// endpoints.  Sales are created only by the coordinator, through a Session.
type SaleRepo struct {
	db *sql.DB
}

// NewSaleRepo returns a SaleRepo bound to the given database.
func NewSaleRepo(db *sql.DB) *SaleRepo { return &SaleRepo{db: db} }

// SaleDetail is a sale joined with its seat and screening for display.
type SaleDetail struct {
	ID            string `json:"id"`
	ReservationID string `json:"reservation_id"`
	SeatLabel     string `json:"seat_label"`
	MovieName     string `json:"movie_name"`
	StartTime     string `json:"start_time"`
	RoomNumber    uint32 `json:"room_number"`
	AmountCents   uint32 `json:"amount_cents"`
	PaidAt        string `json:"paid_at"`
}

const saleDetailQuery = `SELECT s.id, s.reservation_id, se.label, sc.movie_name, sc.start_time, sc.room_number, s.amount_cents, s.paid_at
	FROM sales s
	JOIN seats se ON se.id = s.seat_id
	JOIN screenings sc ON sc.id = se.screening_id`

// ListByUser returns the purchase history of one user, newest first.
func (r *SaleRepo) ListByUser(ctx context.Context, userID string) ([]SaleDetail, error) {
	q := saleDetailQuery + ` WHERE s.user_id = ? ORDER BY s.paid_at DESC, se.label`
	return r.query(ctx, q, userID)
}

// ListByScreening returns all sales for one screening ordered by seat label.
func (r *SaleRepo) ListByScreening(ctx context.Context, screeningID string) ([]SaleDetail, error) {
	q := saleDetailQuery + ` WHERE se.screening_id = ? ORDER BY se.label`
	return r.query(ctx, q, screeningID)
}

func (r *SaleRepo) query(ctx context.Context, q string, args ...interface{}) ([]SaleDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	details := make([]SaleDetail, 0)
	for rows.Next() {
		var d SaleDetail
		var startTime, paidAt time.Time
		if err := rows.Scan(
			&d.ID, &d.ReservationID, &d.SeatLabel, &d.MovieName,
			&startTime, &d.RoomNumber, &d.AmountCents, &paidAt,
		); err != nil {
			return nil, classify(err)
		}
		d.StartTime = startTime.UTC().Format(time.RFC3339)
		d.PaidAt = paidAt.UTC().Format(time.RFC3339Nano)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return details, nil
}
