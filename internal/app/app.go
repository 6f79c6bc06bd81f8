package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis"
	"gorm.io/gorm"

	"github.com/jwvaartjes/dental-relay/internal/asr"
	"github.com/jwvaartjes/dental-relay/internal/audio"
	"github.com/jwvaartjes/dental-relay/internal/auth"
	"github.com/jwvaartjes/dental-relay/internal/config"
	"github.com/jwvaartjes/dental-relay/internal/httpapi"
	"github.com/jwvaartjes/dental-relay/internal/lexicon"
	"github.com/jwvaartjes/dental-relay/internal/normalize"
	"github.com/jwvaartjes/dental-relay/internal/pairing"
	"github.com/jwvaartjes/dental-relay/internal/scheduler"
	"github.com/jwvaartjes/dental-relay/internal/wsrelay"
	"github.com/jwvaartjes/dental-relay/pkg/Logger"
)

// App wires together every component the spec names: the C1 lexicon
// loader, C2 normalizer, C3 audio params, C4 ASR adapter, C5 scheduler, C7
// pairing registry, C9 auth service, and the C8/C10 transport surfaces that
// sit on top of them.
type App struct {
	Config *config.Settings
	Logger *Logger.Logger
	DB     *gorm.DB
	RC     *redis.Client

	Lexicon    *lexicon.Loader
	Normalizer *normalize.Normalizer
	ASR        asr.Adapter
	Scheduler  *scheduler.Scheduler
	Pairing    *pairing.Registry
	Mirror     *pairing.RedisMirror
	GC         *pairing.GCScheduler
	Tokens     *auth.Service
	Admins     auth.AdminStore

	Hub       *wsrelay.Hub
	WSHandler *wsrelay.Handler
}

// NewApp builds and wires every component. The scheduler's consumer loop,
// the pairing GC cron, and the stale-session sweep are started by Start;
// the only goroutine running after NewApp returns is the pairing GC's
// asynq worker server (when Redis is configured), which
// pairing.NewGCScheduler starts as it is built.
func NewApp(cfg *config.Settings, logger *Logger.Logger, db *gorm.DB, rc *redis.Client) (*App, error) {
	a := &App{Config: cfg, Logger: logger, DB: db, RC: rc}

	if err := a.setupDependencies(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) setupDependencies() error {
	a.Normalizer = normalize.New()

	audioParams := audio.Params{
		SmallThresholdBytes: a.Config.Audio.SmallThresholdBytes,
		AccumulateCount:     a.Config.Audio.AccumulateCount,
		MaxDurationMs:       a.Config.Audio.MaxDurationMs,
		SampleRate:          a.Config.Audio.SampleRate,
		Channels:            a.Config.Audio.Channels,
		SampleWidth:         a.Config.Audio.SampleWidth,
	}

	lexStore := lexicon.NewGormStore(a.DB)
	a.Lexicon = lexicon.NewLoader(lexStore)

	asrAdapter, err := asr.NewAdapter(asr.Config{
		ModelID:          a.Config.Asr.ModelID,
		OpenAIAPIKey:     a.Config.Asr.OpenAIAPIKey,
		AzureAPIKey:      a.Config.Asr.AzureAPIKey,
		AzureEndpoint:    a.Config.Asr.AzureEndpoint,
		AzureAPIVersion:  a.Config.Asr.AzureAPIVersion,
		LocalEndpoint:    a.Config.Asr.LocalEndpoint,
		RequestTimeoutMs: a.Config.Asr.RequestTimeoutMs,
	})
	if err != nil {
		return fmt.Errorf("build asr adapter: %w", err)
	}
	a.ASR = asrAdapter

	jwtSecret := a.Config.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		a.Logger.Warnf("jwt secret not configured, using default (not secure for production)")
	}
	a.Tokens = auth.NewService(jwtSecret, time.Duration(a.Config.Auth.WSTokenTTLMinutes)*time.Minute)
	a.Admins = auth.NewGormAdminStore(a.DB)

	a.Pairing = pairing.New(time.Duration(a.Config.Pairing.CodeTTLMinutes) * time.Minute)

	if a.Config.Redis.Addr != "" {
		a.Mirror = pairing.NewRedisMirror(a.Config.Redis.Addr, a.Config.Redis.Pass, a.Config.Redis.DB)
		a.Pairing.SetMirror(a.Mirror)

		gc, err := pairing.NewGCScheduler(pairing.GCTaskConfig{
			RedisAddr:     a.Config.Redis.Addr,
			RedisPassword: a.Config.Redis.Pass,
			RedisDB:       a.Config.Redis.DB,
			CronSpec:      fmt.Sprintf("@every %ds", a.Config.Pairing.GCIntervalS),
		}, a.Pairing)
		if err != nil {
			return fmt.Errorf("build pairing gc scheduler: %w", err)
		}
		a.GC = gc
	}

	schedCfg := scheduler.Config{
		QueueCapacity:    a.Config.Scheduler.QueueSize,
		EnqueueWait:      time.Duration(a.Config.Scheduler.EnqueueTimeoutMs) * time.Millisecond,
		BatchSize:        a.Config.Scheduler.BatchSize,
		BatchWait:        time.Duration(a.Config.Scheduler.BatchWaitMs) * time.Millisecond,
		ParallelWorkers:  a.Config.Scheduler.ParallelWorkers,
		SilenceThreshold: time.Duration(a.Config.Scheduler.SilenceThresholdMs) * time.Millisecond,
		FailureThreshold: a.Config.Scheduler.FailureThreshold,
		RecoveryTimeout:  time.Duration(a.Config.Scheduler.RecoveryTimeoutS) * time.Second,
	}

	// Hub is the scheduler's SessionResolver and ResultPublisher; the
	// circular dependency (scheduler needs the hub, the hub needs to
	// submit into the scheduler) is broken by constructing the hub with a
	// SchedulerAdapter pointed at a scheduler built one step below.
	sched := scheduler.New(schedCfg, scheduler.Deps{
		ASR:        a.ASR,
		Normalizer: a.Normalizer,
		Lexicon:    a.Lexicon,
		AudioParam: audioParams,
	})
	a.Scheduler = sched

	hub := wsrelay.NewHub(a.Pairing, a.Tokens, wsrelay.SchedulerAdapter{Scheduler: sched}, audioParams,
		time.Duration(a.Config.Server.PingIntervalSec*2)*time.Second)
	a.Hub = hub

	sched.SetSessions(hub)
	sched.SetPublisher(hub)

	a.WSHandler = wsrelay.NewHandler(a.Logger, hub)

	return nil
}

// Router builds the gin engine serving both the C10 HTTP surface and the
// C8 WebSocket upgrade routes.
func (a *App) Router() *gin.Engine {
	r := httpapi.NewRouter(a.Logger, a.Tokens, a.Admins, a.Pairing, a.Lexicon, a.ASR, a.Normalizer, a.Scheduler)
	a.WSHandler.RegisterRoutes(r)
	return r
}

// Start launches every background loop: the scheduler consumer, the
// pairing GC cron (if Redis is configured), and the WebSocket hub's stale
// session sweep.
func (a *App) Start(ctx context.Context) {
	a.Scheduler.Start(ctx)
	if a.GC != nil {
		go func() {
			if err := a.GC.Start(); err != nil {
				a.Logger.Errorf("pairing gc scheduler stopped: %v", err)
			}
		}()
	}
	a.WSHandler.StartStaleSweep(ctx, time.Duration(a.Config.Server.PingIntervalSec)*time.Second)
}

// Shutdown stops every background component in reverse dependency order:
// the GC cron first, then the scheduler (which finalizes every client's
// pending aggregator text before returning), then the Redis mirror.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Infof("shutting down application...")

	if a.GC != nil {
		a.GC.Stop()
	}
	a.Scheduler.Stop()
	if a.Mirror != nil {
		if err := a.Mirror.Close(); err != nil {
			a.Logger.Errorf("error closing pairing redis mirror: %v", err)
		}
	}

	a.Logger.Infof("application shutdown complete")
	return nil
}
