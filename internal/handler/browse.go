package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-box-office/internal/repository"
)

// PublicHandler exposes the unauthenticated browse endpoints.  Guests can
// inspect screenings and seat availability before deciding to book.
type PublicHandler struct {
	Screenings *repository.ScreeningRepo
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(screenings *repository.ScreeningRepo) *PublicHandler {
	return &PublicHandler{Screenings: screenings}
}

// ListScreenings handles GET /v1/screenings.  Returns all active screenings
// ordered by start time.
func (h *PublicHandler) ListScreenings(c echo.Context) error {
	items, err := h.Screenings.ListActive(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetScreeningSeats handles GET /v1/screenings/:id/seats.  Returns the
// screening and its full seat map.  Statuses are a committed-state snapshot;
// an AVAILABLE seat can still be lost to a concurrent hold, which the hold
// endpoint reports as a conflict.
func (h *PublicHandler) GetScreeningSeats(c echo.Context) error {
	ctx := c.Request().Context()
	screeningID := c.Param("id")
	screening, err := h.Screenings.GetByID(ctx, screeningID)
	if err != nil {
		return fail(c, err)
	}
	seats, err := h.Screenings.Seats(ctx, screeningID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"screening": screening,
		"seats":     seats,
	})
}
