package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/appolinair2355/Mon/internal/config"
	"github.com/appolinair2355/Mon/internal/service/backup"
)

// BackupRunner performs one backup.
type BackupRunner interface {
	Run(ctx context.Context) (backup.Result, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron   *cron.Cron
	runner BackupRunner
	cfg    config.BackupConfig
	logger *zap.Logger
}

// NewScheduler creates a scheduler running in the configured timezone.
func NewScheduler(cfg config.BackupConfig, runner BackupRunner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	// standard 5-field schedule: min, hour, dom, month, dow
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:   c,
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start registers the backup job and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("backup_schedule", s.cfg.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runBackup); err != nil {
		return fmt.Errorf("schedule backup %q: %w", s.cfg.CronSchedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runBackup() {
	s.logger.Info("running scheduled backup")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("backup failed", zap.Error(err), zap.String("file", result.File))
		return
	}
	s.logger.Info("backup completed", zap.String("file", result.File), zap.Bool("mirrored", result.Mirrored))
}
