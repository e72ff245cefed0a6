package bots

import (
	"context"
	"log/slog"
	"net/http"

	httperr "github.com/wiltort/bot-constructor/internal/http-server/handlers/errors"
	"github.com/wiltort/bot-constructor/internal/lib/api/response"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
	"github.com/wiltort/bot-constructor/internal/taskqueue"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func StartAll(log *slog.Logger, handler Core) http.HandlerFunc {
	return all(log, "start_all", handler.StartAll)
}

func StopAll(log *slog.Logger, handler Core) http.HandlerFunc {
	return all(log, "stop_all", handler.StopAll)
}

func all(log *slog.Logger, op string, queue func(ctx context.Context) ([]taskqueue.Info, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.bots"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("op", op),
		)

		tasks, err := queue(r.Context())
		if err != nil {
			logger.Error("failed to queue tasks", sl.Err(err))
			httperr.Respond(w, r, err)
			return
		}

		accepted := make([]TaskAccepted, 0, len(tasks))
		for _, info := range tasks {
			accepted = append(accepted, TaskAccepted{TaskID: info.ID, BotID: info.BotID, Type: info.Type})
		}
		logger.Info("tasks queued", slog.Int("count", len(accepted)))
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.Ok(accepted))
	}
}
