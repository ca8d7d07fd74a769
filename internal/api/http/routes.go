package httpapi

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-acquisition/internal/acquisition"
	"github.com/i474232898/weather-acquisition/internal/connectivity"
	"github.com/i474232898/weather-acquisition/internal/weather"
)

var validate = validator.New()

// Acquirer is the part of the acquisition state machine exposed over HTTP.
type Acquirer interface {
	Snapshot() acquisition.Snapshot
	Search(ctx context.Context, city string) (acquisition.Snapshot, error)
	Retry(ctx context.Context) (acquisition.Snapshot, error)
	Settings() weather.Settings
	UpdateSettings(ctx context.Context, s weather.Settings) (acquisition.Snapshot, error)
	ClearCache(ctx context.Context)
}

// ConnectivityReporter reports the last observed network state.
type ConnectivityReporter interface {
	Current() connectivity.State
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, acq Acquirer, conn ConnectivityReporter) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(acq.Snapshot())
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		snap, err := acq.Retry(c.UserContext())
		if err != nil {
			return attemptError(err)
		}
		return c.JSON(snap)
	})

	v1.Get("/weather/search", func(c *fiber.Ctx) error {
		q := searchQuery{City: strings.TrimSpace(c.Query("city"))}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "city query parameter is required")
		}

		snap, err := acq.Search(c.UserContext(), q.City)
		if err != nil {
			return attemptError(err)
		}
		return c.JSON(snap)
	})

	v1.Get("/settings", func(c *fiber.Ctx) error {
		return c.JSON(acq.Settings())
	})

	v1.Put("/settings", func(c *fiber.Ctx) error {
		var s weather.Settings
		if err := c.BodyParser(&s); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
		}
		if err := validate.Struct(s); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap, err := acq.UpdateSettings(c.UserContext(), s)
		if err != nil {
			return attemptError(err)
		}
		return c.JSON(snap)
	})

	v1.Delete("/cache", func(c *fiber.Ctx) error {
		acq.ClearCache(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/connectivity", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"state": conn.Current()})
	})
}

// searchQuery holds query parameters for the search endpoint.
type searchQuery struct {
	City string `validate:"required,max=100"`
}

// attemptError maps acquisition errors to HTTP errors. Retrieval failures are
// not errors here: they are reported inside the snapshot.
func attemptError(err error) error {
	switch {
	case errors.Is(err, acquisition.ErrSuperseded):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, acquisition.ErrEmptyCity), errors.Is(err, acquisition.ErrInvalidSettings):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to acquire weather data")
	}
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
