package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-box-office/internal/apperr"
	"github.com/iliyamo/cinema-box-office/internal/model"
)

// ScreeningRepo provides provisioning and read access for screenings and
// their seat inventory.  Provisioning happens once per screening; after
// that only the coordinator mutates seat status, through a Session.
type ScreeningRepo struct {
	db *sql.DB
}

// NewScreeningRepo returns a ScreeningRepo bound to the given database.
func NewScreeningRepo(db *sql.DB) *ScreeningRepo { return &ScreeningRepo{db: db} }

// Create inserts a screening together with its full seat grid in one
// transaction.  Seats start AVAILABLE.  The generated IDs and timestamps
// are populated on the passed records.
func (r *ScreeningRepo) Create(ctx context.Context, sc *model.Screening, seats []model.Seat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC().Truncate(time.Second)
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	sc.CreatedAt = now
	sc.UpdatedAt = now
	const insScreening = `INSERT INTO screenings (id, movie_name, start_time, room_number, ticket_price_cents, is_active, created_at, updated_at)
	                      VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insScreening,
		sc.ID, sc.MovieName, sc.StartTime, sc.RoomNumber,
		sc.TicketPriceCents, sc.IsActive, sc.CreatedAt, sc.UpdatedAt,
	); err != nil {
		return classify(err)
	}

	if len(seats) > 0 {
		query := `INSERT INTO seats (id, screening_id, label, row_label, status, created_at, updated_at) VALUES `
		args := make([]interface{}, 0, len(seats)*7)
		for i := range seats {
			seats[i].ID = uuid.NewString()
			seats[i].ScreeningID = sc.ID
			seats[i].Status = model.SeatAvailable
			seats[i].CreatedAt = now
			seats[i].UpdatedAt = now
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, ?)"
			args = append(args,
				seats[i].ID, seats[i].ScreeningID, seats[i].Label, seats[i].RowLabel,
				seats[i].Status, seats[i].CreatedAt, seats[i].UpdatedAt,
			)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classify(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

// ListActive returns all active screenings ordered by start time.
func (r *ScreeningRepo) ListActive(ctx context.Context) ([]model.Screening, error) {
	const q = `SELECT id, movie_name, start_time, room_number, ticket_price_cents, is_active, created_at, updated_at
	           FROM screenings WHERE is_active = 1 ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	screenings := make([]model.Screening, 0)
	for rows.Next() {
		var sc model.Screening
		if err := rows.Scan(
			&sc.ID, &sc.MovieName, &sc.StartTime, &sc.RoomNumber,
			&sc.TicketPriceCents, &sc.IsActive, &sc.CreatedAt, &sc.UpdatedAt,
		); err != nil {
			return nil, classify(err)
		}
		screenings = append(screenings, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return screenings, nil
}

// GetByID returns a single screening.
func (r *ScreeningRepo) GetByID(ctx context.Context, screeningID string) (*model.Screening, error) {
	const q = `SELECT id, movie_name, start_time, room_number, ticket_price_cents, is_active, created_at, updated_at
	           FROM screenings WHERE id = ?`
	var sc model.Screening
	err := r.db.QueryRowContext(ctx, q, screeningID).Scan(
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

// Seats returns the full seat inventory of a screening ordered by row and
// label.  The statuses reflect committed state only; a seat shown AVAILABLE
// can still be lost to a concurrent hold.
func (r *ScreeningRepo) Seats(ctx context.Context, screeningID string) ([]model.Seat, error) {
	const q = `SELECT id, screening_id, label, row_label, status, created_at, updated_at
	           FROM seats WHERE screening_id = ? ORDER BY row_label, label`
	rows, err := r.db.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		var seat model.Seat
		if err := rows.Scan(
			&seat.ID, &seat.ScreeningID, &seat.Label, &seat.RowLabel,
			&seat.Status, &seat.CreatedAt, &seat.UpdatedAt,
		); err != nil {
			return nil, classify(err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return seats, nil
}
