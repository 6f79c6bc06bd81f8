package pairing

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// GCTaskType is the asynq task type name the periodic scheduler enqueues
// and the worker mux dispatches on.
const GCTaskType = "pairing:gc"

// GCTaskConfig mirrors the teacher's AsynqSchedulerConfig shape so the
// pairing sweep reuses the same Redis-backed queue setup as the rest of
// the asynq stack instead of introducing a second convention.
type GCTaskConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CronSpec      string // e.g. "@every 1m"
}

// GCScheduler drives the registry's periodic GC sweep through asynq rather
// than an ad-hoc goroutine ticker, so the sweep survives process restarts
// with the same at-least-once semantics as the rest of the task queue.
type GCScheduler struct {
	scheduler *asynq.Scheduler
	server    *asynq.Server
	entryID   string
}

// NewGCScheduler wires registry.GC into an asynq periodic task and starts
// the asynq worker server that handles it. Call Start to begin the cron
// loop that enqueues the task; call Stop for a clean shutdown.
func NewGCScheduler(cfg GCTaskConfig, registry *Registry) (*GCScheduler, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	scheduler := asynq.NewScheduler(redisOpt, nil)
	cronSpec := cfg.CronSpec
	if cronSpec == "" {
		cronSpec = "@every 1m"
	}
	entryID, err := scheduler.Register(cronSpec, asynq.NewTask(GCTaskType, nil))
	if err != nil {
		return nil, fmt.Errorf("pairing: register gc schedule: %w", err)
	}

	server := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 1})
	mux := asynq.NewServeMux()
	mux.HandleFunc(GCTaskType, func(ctx context.Context, _ *asynq.Task) error {
		registry.GC()
		return nil
	})

	g := &GCScheduler{scheduler: scheduler, server: server, entryID: entryID}
	go func() {
		_ = server.Run(mux)
	}()
	return g, nil
}

// Start begins the scheduler's cron loop; it runs until Stop is called.
func (g *GCScheduler) Start() error {
	return g.scheduler.Start()
}

func (g *GCScheduler) Stop() {
	g.scheduler.Shutdown()
	g.server.Shutdown()
}
