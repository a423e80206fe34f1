package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/backup"
)

const TypeBackup = "backup:run"

// BackupRunner takes one backup snapshot.
type BackupRunner interface {
	Run(ctx context.Context) (*backup.Result, error)
}

func NewBackupTask() *asynq.Task {
	return asynq.NewTask(TypeBackup, nil, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
}

func HandleBackup(runner BackupRunner, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		res, err := runner.Run(ctx)
		if err != nil {
			logger.Error("scheduled backup failed", zap.Error(err))
			return err
		}
		logger.Info("scheduled backup done", zap.String("prefix", res.Prefix))
		return nil
	}
}

type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Schedule      string
	Location      *time.Location
	Concurrency   int
}

// Run registers the backup cron entry and processes tasks until ctx is done.
func Run(ctx context.Context, opts Options, runner BackupRunner, logger *zap.Logger) error {
	redisOpt := asynq.RedisClientOpt{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	sugar := logger.Sugar()

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: opts.Concurrency,
		Queues: map[string]int{
			"default": 1,
		},
		Logger: sugar,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBackup, HandleBackup(runner, logger))

	sched := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: opts.Location,
		Logger:   sugar,
	})
	entryID, err := sched.Register(opts.Schedule, NewBackupTask())
	if err != nil {
		return fmt.Errorf("register backup schedule %q: %w", opts.Schedule, err)
	}

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	if err := sched.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	logger.Info("backup worker started", zap.String("schedule", opts.Schedule), zap.String("entry", entryID))

	<-ctx.Done()
	logger.Info("backup worker stopping")
	sched.Shutdown()
	srv.Shutdown()
	return nil
}

// Enqueue asks a running worker to take a backup now.
func Enqueue(ctx context.Context, client *asynq.Client) (*asynq.TaskInfo, error) {
	return client.EnqueueContext(ctx, NewBackupTask())
}
