package bots

import (
	"log/slog"
	"net/http"

	httperr "github.com/wiltort/bot-constructor/internal/http-server/handlers/errors"
	"github.com/wiltort/bot-constructor/internal/lib/api/response"
	"github.com/wiltort/bot-constructor/internal/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func Status(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.bots")

		botID := chi.URLParam(r, "id")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("bot_id", botID),
		)

		status, err := handler.BotStatus(r.Context(), botID)
		if err != nil {
			logger.Error("failed to get bot status", sl.Err(err))
			httperr.Respond(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(status))
	}
}
