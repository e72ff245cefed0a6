package errors

import (
	"errors"
	"net/http"

	"github.com/wiltort/bot-constructor/impl/core"
	"github.com/wiltort/bot-constructor/internal/lib/api/response"

	"github.com/go-chi/render"
)

// Status maps a core error to an HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Respond renders err in the error envelope. Internal errors are not
// exposed to the client.
func Respond(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	render.Status(r, status)
	render.JSON(w, r, response.Error(message))
}
