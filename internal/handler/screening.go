package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-box-office/internal/model"
	"github.com/iliyamo/cinema-box-office/internal/repository"
)

// AdminHandler exposes the management endpoints: provisioning screenings
// with their seat grid and inspecting per-screening sales.  Routes using it
// must be wrapped with the admin-role middleware.
type AdminHandler struct {
	Screenings *repository.ScreeningRepo
	Sales      *repository.SaleRepo
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(screenings *repository.ScreeningRepo, sales *repository.SaleRepo) *AdminHandler {
	return &AdminHandler{Screenings: screenings, Sales: sales}
}

type createScreeningRequest struct {
	MovieName        string `json:"movie_name"`
	StartTime        string `json:"start_time"` // RFC 3339
	RoomNumber       uint32 `json:"room_number"`
	TicketPriceCents uint32 `json:"ticket_price_cents"`
	Rows             int    `json:"rows"`
	SeatsPerRow      int    `json:"seats_per_row"`
}

// CreateScreening handles POST /v1/screenings.  It provisions a screening
// together with its seat grid in one transaction.  Rows are lettered A
// onward and seats numbered from 1, so a 2x3 room yields A1..A3 and B1..B3.
// Returns 201 with the created screening and its seat count.
func (h *AdminHandler) CreateScreening(c echo.Context) error {
	var body createScreeningRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.MovieName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "movie_name is required"})
	}
	startTime, err := time.Parse(time.RFC3339, body.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be RFC 3339"})
	}
	if body.TicketPriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket_price_cents is required"})
	}
	if body.Rows < 1 || body.Rows > 26 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rows must be between 1 and 26"})
	}
	if body.SeatsPerRow < 1 || body.SeatsPerRow > 99 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats_per_row must be between 1 and 99"})
	}

	screening := &model.Screening{
		MovieName:        body.MovieName,
		StartTime:        startTime.UTC(),
		RoomNumber:       body.RoomNumber,
		TicketPriceCents: body.TicketPriceCents,
		IsActive:         true,
	}
	seats := make([]model.Seat, 0, body.Rows*body.SeatsPerRow)
	for row := 0; row < body.Rows; row++ {
		rowLabel := string(rune('A' + row))
		for n := 1; n <= body.SeatsPerRow; n++ {
			seats = append(seats, model.Seat{
				Label:    fmt.Sprintf("%s%d", rowLabel, n),
				RowLabel: rowLabel,
			})
		}
	}

	if err := h.Screenings.Create(c.Request().Context(), screening, seats); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"screening":  screening,
		"seat_count": len(seats),
	})
}

// ListSales handles GET /v1/screenings/:id/sales.  Returns every settled
// sale for the screening ordered by seat label, plus the revenue total.
func (h *AdminHandler) ListSales(c echo.Context) error {
	ctx := c.Request().Context()
	screeningID := c.Param("id")
	if _, err := h.Screenings.GetByID(ctx, screeningID); err != nil {
		return fail(c, err)
	}
	items, err := h.Sales.ListByScreening(ctx, screeningID)
	if err != nil {
		return fail(c, err)
	}
	var total uint64
	for _, s := range items {
		total += uint64(s.AmountCents)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":               items,
		"total_revenue_cents": total,
	})
}
