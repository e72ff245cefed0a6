package bots

import (
	"log/slog"
	"net/http"

	httperr "github.com/wiltort/bot-constructor/internal/http-server/handlers/errors"
	"github.com/wiltort/bot-constructor/internal/lib/api/response"
	"github.com/wiltort/bot-constructor/internal/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func Summary(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := handler.Summary(r.Context())
		if err != nil {
			log.With(
				sl.Module("http.handlers.bots"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			).Error("failed to build summary", sl.Err(err))
			httperr.Respond(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(summary))
	}
}
