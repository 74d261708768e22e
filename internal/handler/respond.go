package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-box-office/internal/apperr"
)

// fail translates a coordinator or repository error into an HTTP response.
// Business-level kinds carry caller-facing messages and are returned
// verbatim; store and broker failures surface with opaque messages so
// internals do not leak.
func fail(c echo.Context, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case apperr.KindConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case apperr.KindInvalidRequest:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case apperr.KindStoreConflict:
		// Retries are exhausted by the time this reaches a handler.
		return c.JSON(http.StatusConflict, echo.Map{"error": "the store is contended, please retry"})
	case apperr.KindTimeout:
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "the operation timed out"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// getUserID extracts the authenticated user's ID injected by the JWT
// middleware.  An empty result means the route was registered without the
// middleware, which is a wiring bug, so the caller answers 401.
func getUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}
