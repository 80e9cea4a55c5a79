package main

import (
	"context"
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/wooadmin/internal/app"
	"github.com/briangreenhill/wooadmin/internal/config"
	"github.com/briangreenhill/wooadmin/internal/jobs"
)

const (
	sweepSpec = "@every 15m"
	warmSpec  = "@every 1h"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config")
	}
	logger := app.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	// the worker has no /metrics endpoint
	stack, err := app.Open(context.Background(), cfg, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup")
	}
	defer stack.Close() //nolint:errcheck

	redis := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency:    4,
		StrictPriority: false,
		Queues: map[string]int{
			jobs.QueueCache: 10, // higher priority
			"default":      5,  // default priority
		},
	})
	mux := asynq.NewServeMux()
	h := &jobs.Handlers{Cache: stack.Cache, Woo: stack.Woo, Log: logger}
	h.Register(mux)

	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{})
	sweep, err := jobs.NewCacheSweepTask(jobs.CacheSweepPayload{RequestedBy: "scheduler"})
	if err != nil {
		logger.Fatal().Err(err).Msg("build sweep task")
	}
	warm, err := jobs.NewCacheWarmTask(jobs.CacheWarmPayload{Categories: true, Products: true})
	if err != nil {
		logger.Fatal().Err(err).Msg("build warm task")
	}
	for spec, task := range map[string]*asynq.Task{sweepSpec: sweep, warmSpec: warm} {
		id, err := scheduler.Register(spec, task)
		if err != nil {
			logger.Fatal().Err(err).Str("spec", spec).Msg("schedule")
		}
		logger.Info().Str("entry", id).Str("spec", spec).Str("task", task.Type()).Msg("[asynq] scheduled")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
	defer scheduler.Shutdown()

	logger.Info().Str("cache", cfg.Cache.Backend).Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker")
	}
}
