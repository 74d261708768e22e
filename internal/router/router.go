// Package router maps HTTP routes to handlers and applies the middleware
// each group needs.  Public browse routes carry no auth; booking routes
// require a bearer token and are rate limited; management routes require
// the ADMIN role on top.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-box-office/internal/handler"
	"github.com/iliyamo/cinema-box-office/internal/middleware"
)

// Handlers bundles everything the router wires up.
type Handlers struct {
	Public      *handler.PublicHandler
	Reservation *handler.ReservationHandler
	Admin       *handler.AdminHandler
}

// Register wires all routes on the given Echo instance.  rdb may be nil, in
// which case the booking endpoints run without rate limiting.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Unauthenticated browsing.
	e.GET("/v1/screenings", h.Public.ListScreenings)
	e.GET("/v1/screenings/:id/seats", h.Public.GetScreeningSeats)

	// Customer booking endpoints.  The rate limit sits after JWTAuth so the
	// bucket key includes the user, not just the client IP.
	booking := e.Group("/v1")
	booking.Use(middleware.JWTAuth(jwtSecret))
	booking.Use(middleware.RateLimit(rdb, 20, 10, time.Second, 5*time.Minute))
	booking.POST("/screenings/:id/hold", h.Reservation.HoldSeats)
	booking.POST("/reservations/:id/confirm", h.Reservation.ConfirmPayment)
	booking.GET("/my/reservations", h.Reservation.ListReservations)
	booking.GET("/my/purchases", h.Reservation.ListPurchases)

	// Management endpoints.
	admin := e.Group("/v1")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireAdmin())
	admin.POST("/screenings", h.Admin.CreateScreening)
	admin.GET("/screenings/:id/sales", h.Admin.ListSales)
}
