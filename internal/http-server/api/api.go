package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/wiltort/bot-constructor/internal/config"
	"github.com/wiltort/bot-constructor/internal/http-server/handlers/bots"
	httperr "github.com/wiltort/bot-constructor/internal/http-server/handlers/errors"
	"github.com/wiltort/bot-constructor/internal/http-server/handlers/steps"
	"github.com/wiltort/bot-constructor/internal/http-server/handlers/tasks"
	"github.com/wiltort/bot-constructor/internal/http-server/middleware/authenticate"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
	"github.com/wiltort/bot-constructor/internal/taskqueue"
	"github.com/wiltort/bot-constructor/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	ws.Authenticator
	bots.Core
	tasks.Core
	steps.Core
}

// NewRouter builds the control API. The websocket endpoint checks the key
// itself, everything else goes through the authenticate middleware.
func NewRouter(log *slog.Logger, handler Handler, hub *ws.Hub) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.NotFound(httperr.NotFound(log))
	router.MethodNotAllowed(httperr.NotAllowed(log))

	router.Route("/api/v1", func(v1 chi.Router) {
		if hub != nil {
			wsLog := log.With(sl.Module("ws"))
			v1.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
				ws.ServeWs(hub, handler, wsLog, w, r)
			})
		}

		v1.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Use(authenticate.New(log, handler))

			r.Route("/bots", func(r chi.Router) {
				r.Post("/start_all", bots.StartAll(log, handler))
				r.Post("/stop_all", bots.StopAll(log, handler))
				r.Get("/summary", bots.Summary(log, handler))
				r.Route("/{id}", func(r chi.Router) {
					r.Post("/start", bots.Task(log, handler, taskqueue.TaskStart))
					r.Post("/stop", bots.Task(log, handler, taskqueue.TaskStop))
					r.Post("/restart", bots.Task(log, handler, taskqueue.TaskRestart))
					r.Get("/status", bots.Status(log, handler))
				})
			})
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/{task_id}", tasks.Status(log, handler))
			})
			r.Route("/scenarios/{id}/steps", func(r chi.Router) {
				r.Get("/", steps.List(log, handler))
				r.Post("/", steps.Create(log, handler))
				r.Put("/{step_id}", steps.Update(log, handler))
				r.Delete("/{step_id}", steps.Delete(log, handler))
			})
		})
	})

	return router
}

// New serves the control API until ctx is cancelled.
func New(ctx context.Context, conf *config.Config, log *slog.Logger, handler Handler, hub *ws.Hub) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  NewRouter(log, handler, hub),
		ErrorLog: httpLog,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.httpServer.Shutdown(shutdownCtx); err != nil {
			server.log.Error("api server shutdown", sl.Err(err))
		}
	}()

	server.log.Info("starting api server", slog.String("address", serverAddress))

	err = server.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
