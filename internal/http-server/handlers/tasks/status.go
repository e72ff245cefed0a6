package tasks

import (
	"context"
	"log/slog"
	"net/http"

	httperr "github.com/wiltort/bot-constructor/internal/http-server/handlers/errors"
	"github.com/wiltort/bot-constructor/internal/lib/api/response"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
	"github.com/wiltort/bot-constructor/internal/taskqueue"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	TaskStatus(ctx context.Context, taskID string) (*taskqueue.Info, error)
}

func Status(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := chi.URLParam(r, "task_id")

		info, err := handler.TaskStatus(r.Context(), taskID)
		if err != nil {
			log.With(
				sl.Module("http.handlers.tasks"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("task_id", taskID),
			).Debug("task status", sl.Err(err))
			httperr.Respond(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(info))
	}
}
