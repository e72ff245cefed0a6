package bots

import (
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

// TaskAccepted is returned for every queued lifecycle command.
type TaskAccepted struct {
	TaskID string             `json:"task_id"`
	BotID  string             `json:"bot_id"`
	Type   taskqueue.TaskType `json:"type"`
}

// Task queues a start, stop or restart command for the bot in the path.
func Task(log *slog.Logger, handler Core, taskType taskqueue.TaskType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.bots")

		botID := chi.URLParam(r, "id")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("bot_id", botID),
			slog.String("type", string(taskType)),
		)

		info, err := handler.EnqueueTask(r.Context(), taskType, botID)
		if err != nil {
			logger.Error("failed to queue task", sl.Err(err))
			httperr.Respond(w, r, err)
			return
		}

		logger.Debug("task queued", slog.String("task_id", info.ID))
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.Ok(TaskAccepted{
			TaskID: info.ID,
			BotID:  info.BotID,
			Type:   info.Type,
		}))
	}
}
