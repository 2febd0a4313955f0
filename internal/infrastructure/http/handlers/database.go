package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// NamedPinger is a database that can also report its name.
type NamedPinger interface {
	Pinger
	Name() string
}

// DatabaseHandler serves the connectivity diagnostics used by the storefront
// during development.
type DatabaseHandler struct {
	db NamedPinger
}

func NewDatabaseHandler(db NamedPinger) *DatabaseHandler {
	return &DatabaseHandler{db: db}
}

type pingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Ping handles GET /api/auth/test-db.
func (h *DatabaseHandler) Ping(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, pingResponse{
			Success: false,
			Message: "database connection failed: " + err.Error(),
		})
	}
	return c.JSON(http.StatusOK, pingResponse{
		Success: true,
		Message: "database connection is working",
	})
}

type connectionDetails struct {
	Name string `json:"name"`
}

type connectionResponse struct {
	Status    string            `json:"status"`
	Connected bool              `json:"connected"`
	Details   connectionDetails `json:"details"`
}

// Status handles GET /api/test-db.
func (h *DatabaseHandler) Status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
	defer cancel()

	resp := connectionResponse{
		Status:    "connected",
		Connected: true,
		Details:   connectionDetails{Name: h.db.Name()},
	}
	code := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "disconnected"
		resp.Connected = false
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}
