package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-box-office/internal/repository"
	"github.com/iliyamo/cinema-box-office/internal/service"
)

// BookingCoordinator is the slice of the coordinator the booking endpoints
// need.  Tests substitute a fake.
type BookingCoordinator interface {
	CreateHold(ctx context.Context, userID, screeningID string, seatLabels []string) (*service.HoldResult, error)
	ConfirmPayment(ctx context.Context, userID, reservationID string) (*service.ConfirmResult, error)
}

// ReservationHandler exposes the customer booking endpoints: placing holds,
// confirming payment, and listing the caller's reservations and purchases.
// All routes assume JWT authentication has already run.
type ReservationHandler struct {
	Coordinator  BookingCoordinator
	Reservations *repository.ReservationRepo
	Sales        *repository.SaleRepo
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(coord BookingCoordinator, reservations *repository.ReservationRepo, sales *repository.SaleRepo) *ReservationHandler {
	return &ReservationHandler{Coordinator: coord, Reservations: reservations, Sales: sales}
}

type holdRequest struct {
	SeatLabels []string `json:"seat_labels"`
}

type heldSeatResponse struct {
	ReservationID string `json:"reservation_id"`
	SeatLabel     string `json:"seat_label"`
}

// HoldSeats handles POST /v1/screenings/:id/hold.  The body carries a
// "seat_labels" array; all requested seats are held together or not at all.
// Returns 201 with one reservation per seat and the shared expiry, 409 when
// any seat is taken, 404 when the screening or a seat does not exist.
func (h *ReservationHandler) HoldSeats(c echo.Context) error {
	userID := getUserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body holdRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	res, err := h.Coordinator.CreateHold(c.Request().Context(), userID, c.Param("id"), body.SeatLabels)
	if err != nil {
		return fail(c, err)
	}

	held := make([]heldSeatResponse, 0, len(res.Reservations))
	for _, r := range res.Reservations {
		held = append(held, heldSeatResponse{ReservationID: r.ReservationID, SeatLabel: r.SeatLabel})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservations": held,
		"expires_at":   res.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
}

// ConfirmPayment handles POST /v1/reservations/:id/confirm.  Confirming one
// reservation settles its whole booking group; the response describes the
// sale for the reservation named in the path.  Replaying a confirm returns
// the same sale with 200 instead of an error.
func (h *ReservationHandler) ConfirmPayment(c echo.Context) error {
	userID := getUserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	res, err := h.Coordinator.ConfirmPayment(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"sale_id":        res.Sale.ID,
		"reservation_id": res.Sale.ReservationID,
		"seat_label":     res.SeatLabel,
		"movie_name":     res.MovieName,
		"room_number":    res.RoomNumber,
		"amount_cents":   res.Sale.AmountCents,
		"paid_at":        res.Sale.PaidAt.UTC().Format(time.RFC3339Nano),
	})
}

// ListReservations handles GET /v1/my/reservations.  Returns every
// reservation the caller ever placed, newest first, including expired ones.
func (h *ReservationHandler) ListReservations(c echo.Context) error {
	userID := getUserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Reservations.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListPurchases handles GET /v1/my/purchases.  Returns the caller's settled
// sales, newest first.
func (h *ReservationHandler) ListPurchases(c echo.Context) error {
	userID := getUserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Sales.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
