package steps

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

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.steps")

		scenarioID := chi.URLParam(r, "id")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("scenario_id", scenarioID),
		)

		steps, err := handler.ListSteps(r.Context(), scenarioID)
		if err != nil {
			logger.Error("failed to list steps", sl.Err(err))
			httperr.Respond(w, r, err)
			return
		}

		logger.Debug("steps listed", slog.Int("count", len(steps)))
		render.JSON(w, r, response.Ok(steps))
	}
}
