package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"visitry/internal/config"
)

// Scheduler runs the retention maintenance job on a fixed interval.
// One instance is constructed by the host application; there is no
// package-level singleton.
type Scheduler struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	cfg       *config.Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	retentionJob *RetentionJob

	retentionTicker *time.Ticker
}

// NewScheduler creates a stopped scheduler holding its own cancellable
// timer handle.
func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger) (*Scheduler, error) {
	cfg := config.GetConfig()

	s := &Scheduler{
		dbManager: dbManager,
		logger:    logger,
		isRunning: false,
		cfg:       cfg,
	}

	s.retentionJob = NewRetentionJob(dbManager, logger, cfg)

	return s, nil
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins the retention maintenance loop: one pass immediately,
// then on a fixed interval until Stop. A stopped scheduler can be
// started again.
func (s *Scheduler) Start() error {
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")

	// A fresh context per run so Stop/Start cycles work.
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.isRunning = true

	s.startRetentionJob()

	s.logger.Info("Background jobs started",
		slog.Bool("isRunning", s.isRunning))

	return nil
}

func (s *Scheduler) startRetentionJob() {
	interval := time.Duration(s.cfg.MaintenanceIntervalHours) * time.Hour
	s.logger.Info("Starting retention maintenance job", slog.Duration("interval", interval))
	s.retentionTicker = time.NewTicker(interval)

	// Capture the handles of this run; a later Stop/Start cycle
	// replaces the fields on s.
	ticker := s.retentionTicker
	ctx := s.ctx

	go func() {
		// Run initial maintenance pass
		s.logger.Info("Running initial retention maintenance...")
		s.executeJobSafely("retention", s.retentionJob.Run)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely("retention", s.retentionJob.Run)
			case <-ctx.Done():
				s.logger.Info("Retention maintenance job stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs and cancels the timer so no scheduled
// work leaks across restarts.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")

	if s.retentionTicker != nil {
		s.retentionTicker.Stop()
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// RunMaintenance triggers one retention pass outside the schedule (used
// by the admin CLI).
func (s *Scheduler) RunMaintenance() error {
	return s.retentionJob.Run()
}
