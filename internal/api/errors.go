package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gopm2/gopm2/pkg/pm2"
)

// errorResponse maps the library's typed errors onto HTTP status codes.
// Validation problems are the caller's fault, missing targets are 404,
// daemon-side failures are gateway errors.
func errorResponse(c echo.Context, err error) error {
	var (
		notFound   *pm2.NotFoundError
		exists     *pm2.AlreadyExistsError
		invalid    *pm2.InvalidStateError
		validation *pm2.ValidationError
		configErr  *pm2.ConfigurationError
		connection *pm2.ConnectionError
		commandErr *pm2.CommandError
	)

	switch {
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, map[string]any{
			"error":      notFound.Error(),
			"identifier": notFound.Identifier,
			"kind":       string(notFound.Kind),
		})
	case errors.As(err, &exists):
		return c.JSON(http.StatusConflict, map[string]string{"error": exists.Error()})
	case errors.As(err, &invalid):
		return c.JSON(http.StatusConflict, map[string]string{"error": invalid.Error()})
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": validation.Error()})
	case errors.As(err, &configErr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": configErr.Error()})
	case errors.As(err, &connection):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": connection.Error()})
	case errors.As(err, &commandErr):
		status := http.StatusBadGateway
		if commandErr.TimedOut {
			status = http.StatusGatewayTimeout
		}
		return c.JSON(status, map[string]any{
			"error":    commandErr.Error(),
			"exitCode": commandErr.ExitCode,
		})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
