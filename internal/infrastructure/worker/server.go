// Package worker runs the scheduler's background maintenance jobs (stuck-
// task reporting, worker heartbeat reaping) on an Asynq server/scheduler
// pair.
package worker

import (
	"context"

	"github.com/hibiken/asynq"

	domainservice "github.com/sogos/mirai-scheduler/internal/domain/service"
	"github.com/sogos/mirai-scheduler/internal/domain/worker"
)

// Server wraps the Asynq server and scheduler for background job processing.
type Server struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	handlers  *Handlers
	logger    domainservice.Logger
}

// NewServer creates a new Asynq worker server with both maintenance
// handlers registered.
func NewServer(redisAddr string, handlers *Handlers, logger domainservice.Logger) *Server {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				worker.QueueDefault: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddr},
		&asynq.SchedulerOpts{
			Logger: &asynqLogger{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TypeStuckTaskSweep, handlers.HandleStuckTaskSweep)
	mux.HandleFunc(worker.TypeWorkerHeartbeatReap, handlers.HandleWorkerHeartbeatReap)

	return &Server{
		server:    server,
		scheduler: scheduler,
		mux:       mux,
		handlers:  handlers,
		logger:    logger,
	}
}

// Run starts the Asynq server and scheduler. This method blocks until the
// server is shut down.
func (s *Server) Run() error {
	s.logger.Info("starting scheduler worker server")

	if _, err := s.scheduler.Register("@every 1m", worker.NewStuckTaskSweepTask()); err != nil {
		s.logger.Error("failed to register stuck task sweep", "error", err)
		return err
	}
	s.logger.Info("registered stuck task sweep", "schedule", "@every 1m")

	if _, err := s.scheduler.Register("@every 1m", worker.NewWorkerHeartbeatReapTask()); err != nil {
		s.logger.Error("failed to register worker heartbeat reap", "error", err)
		return err
	}
	s.logger.Info("registered worker heartbeat reap", "schedule", "@every 1m")

	go func() {
		if err := s.scheduler.Run(); err != nil {
			s.logger.Error("scheduler error", "error", err)
		}
	}()

	return s.server.Run(s.mux)
}

// Shutdown gracefully stops the server and scheduler.
func (s *Server) Shutdown() {
	s.logger.Info("shutting down scheduler worker server")
	s.scheduler.Shutdown()
	s.server.Shutdown()
}

// asynqLogger adapts our logger to Asynq's logger interface.
type asynqLogger struct {
	logger domainservice.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug("asynq", "msg", args) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info("asynq", "msg", args) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn("asynq", "msg", args) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error("asynq", "msg", args) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Error("asynq fatal", "msg", args) }
