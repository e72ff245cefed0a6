package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wiltort/bot-constructor/ai/gpt"
	"github.com/wiltort/bot-constructor/bot/chat"
	"github.com/wiltort/bot-constructor/bot/chat/telegram"
	"github.com/wiltort/bot-constructor/bot/runtime"
	"github.com/wiltort/bot-constructor/bot/scenario"
	"github.com/wiltort/bot-constructor/impl/core"
	"github.com/wiltort/bot-constructor/internal/config"
	repository "github.com/wiltort/bot-constructor/internal/database"
	"github.com/wiltort/bot-constructor/internal/http-server/api"
	"github.com/wiltort/bot-constructor/internal/lib/logger"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
	"github.com/wiltort/bot-constructor/internal/taskqueue"
	"github.com/wiltort/bot-constructor/internal/ws"

	"github.com/redis/go-redis/v9"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	lg.Info("starting bot constructor", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(conf, lg)
	if err != nil {
		lg.Error("storage", sl.Err(err))
		return
	}
	defer closeRepo()

	handler := core.New(lg)
	handler.SetAuthKey(conf.Listen.ApiKey)
	handler.SetRepository(repo)
	handler.SetRestartDelay(conf.Runtime.RestartDelay)
	if conf.Health.Enabled {
		handler.SetHealthInterval(conf.Health.Interval)
	}

	if conf.Seed != "" {
		seed, err := scenario.LoadSeed(conf.Seed)
		if err != nil {
			lg.Error("load seed", slog.String("path", conf.Seed), sl.Err(err))
			return
		}
		if err = handler.ImportSeed(ctx, seed); err != nil {
			lg.Error("import seed", slog.String("path", conf.Seed), sl.Err(err))
			return
		}
	}

	registry := runtime.NewRegistry(
		repo,
		func(token string, log *slog.Logger) (runtime.Transport, error) {
			transport, err := telegram.NewTransport(token, log)
			if err != nil {
				return nil, err
			}
			return transport, nil
		},
		func(apiKey, baseURL string) chat.Completer {
			return gpt.NewCompleter(apiKey, baseURL, lg)
		},
		runtime.Options{
			StartGrace:  conf.Runtime.StartGrace,
			StopTimeout: conf.Runtime.StopTimeout,
			HistorySize: conf.Runtime.HistorySize,
		},
		lg,
	)
	handler.SetRegistry(registry)

	hub := ws.NewHub(lg)
	registry.SetStatusListener(hub.PublishStatus)
	handler.SetNotifier(hub)
	go hub.Run(ctx)

	queue, results := taskBackend(conf, lg)
	pool := taskqueue.NewPool(
		queue,
		results,
		handler.Execute,
		taskqueue.RetryPolicy{
			MaxAttempts:    conf.Tasks.MaxAttempts,
			InitialBackoff: conf.Tasks.Backoff,
			MaxBackoff:     conf.Tasks.MaxBackoff,
			Multiplier:     2,
		},
		conf.Tasks.Workers,
		lg,
	)
	handler.SetTaskPool(pool)
	go pool.Run(ctx)

	handler.Init(ctx, conf.Runtime.Autostart)

	// *** blocking start with http server ***
	err = api.New(ctx, conf, lg, handler, hub)
	if err != nil {
		lg.Error("server start", sl.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Runtime.StopTimeout+5*time.Second)
	defer cancel()
	stopped := handler.Shutdown(shutdownCtx)
	lg.Info("service stopped", slog.Int("bots_stopped", stopped))
}

func openRepository(conf *config.Config, lg *slog.Logger) (core.Repository, func(), error) {
	switch conf.Storage.Driver {
	case "mongo":
		db, err := repository.NewMongoClient(conf, lg)
		if err != nil {
			return nil, nil, err
		}
		lg.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("port", conf.Mongo.Port),
			slog.String("user", conf.Mongo.User),
			slog.String("database", conf.Mongo.Database),
		).Info("mongo client initialized")
		return db, func() {}, nil
	default:
		db, err := repository.OpenSQLite(conf.Storage.SqlitePath, lg)
		if err != nil {
			return nil, nil, err
		}
		lg.With(
			slog.String("path", conf.Storage.SqlitePath),
		).Info("sqlite storage initialized")
		return db, func() {
			if err := db.Close(); err != nil {
				lg.Error("close sqlite", sl.Err(err))
			}
		}, nil
	}
}

// taskBackend keeps the queue and task results in Redis when it is enabled
// and reachable, in memory otherwise.
func taskBackend(conf *config.Config, lg *slog.Logger) (taskqueue.Queue, taskqueue.ResultStore) {
	if conf.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := client.Ping(ctx).Err()
		if err == nil {
			lg.With(
				slog.String("addr", conf.Redis.Addr),
				slog.String("prefix", conf.Redis.Prefix),
			).Info("redis task queue initialized")
			return taskqueue.NewRedisQueue(client, conf.Redis.Prefix),
				taskqueue.NewRedisResults(client, conf.Redis.Prefix, conf.Tasks.ResultTTL)
		}
		lg.Error("redis unavailable, using in-memory task queue", slog.String("addr", conf.Redis.Addr), sl.Err(err))
		_ = client.Close()
	}
	return taskqueue.NewInMemoryQueue(1024), taskqueue.NewMemoryResults(conf.Tasks.ResultTTL)
}
