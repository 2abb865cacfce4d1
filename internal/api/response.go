package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the envelope of every JSON API reply.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, Response{
		Status:  code,
		Message: http.StatusText(code),
		Data:    data,
	})
}

func ok(c echo.Context, data interface{}) error { return respond(c, http.StatusOK, data) }

func badRequest(c echo.Context, errs []ValidationError) error {
	return respond(c, http.StatusBadRequest, errs)
}

func notFound(c echo.Context, msg string) error {
	return respond(c, http.StatusNotFound, msg)
}

func internalError(c echo.Context) error {
	return respond(c, http.StatusInternalServerError, "something went wrong")
}
