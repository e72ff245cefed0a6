package steps

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wiltort/bot-constructor/entity"
	httperr "github.com/wiltort/bot-constructor/internal/http-server/handlers/errors"
	"github.com/wiltort/bot-constructor/internal/lib/api/response"
	"github.com/wiltort/bot-constructor/internal/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.steps")

		scenarioID := chi.URLParam(r, "id")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("scenario_id", scenarioID),
		)

		var step entity.Step
		if err := render.Bind(r, &step); err != nil {
			logger.Debug("invalid step", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid step: %v", err)))
			return
		}

		created, err := handler.CreateStep(r.Context(), scenarioID, &step)
		if err != nil {
			logger.Error("failed to create step", sl.Err(err))
			httperr.Respond(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(created))
	}
}

func Update(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.steps")

		scenarioID := chi.URLParam(r, "id")
		stepID := chi.URLParam(r, "step_id")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("scenario_id", scenarioID),
			slog.String("step_id", stepID),
		)

		var step entity.Step
		if err := render.Bind(r, &step); err != nil {
			logger.Debug("invalid step", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid step: %v", err)))
			return
		}

		updated, err := handler.UpdateStep(r.Context(), scenarioID, stepID, &step)
		if err != nil {
			logger.Error("failed to update step", sl.Err(err))
			httperr.Respond(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(updated))
	}
}

func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scenarioID := chi.URLParam(r, "id")
		stepID := chi.URLParam(r, "step_id")

		if err := handler.DeleteStep(r.Context(), scenarioID, stepID); err != nil {
			log.With(
				sl.Module("http.handlers.steps"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("scenario_id", scenarioID),
				slog.String("step_id", stepID),
			).Error("failed to delete step", sl.Err(err))
			httperr.Respond(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(nil))
	}
}
