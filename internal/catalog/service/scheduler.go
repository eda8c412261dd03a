package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/develoddy/api-sequelize-sub002/internal/config"
	"go.uber.org/zap"
)

// =============================================================================
// Scheduler 定时同步
// 每个任务一个ticker协程; 与手动触发共用同步锁, 重叠时本轮跳过
// =============================================================================

type scheduledJob struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// Scheduler runs registered jobs on fixed intervals until stopped.
type Scheduler struct {
	jobs    []scheduledJob
	timeout time.Duration
	log     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler 创建调度器. timeout bounds each run, zero means unbounded.
func NewScheduler(timeout time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{timeout: timeout, log: log.Named("scheduler")}
}

// Every registers a job. A non-positive interval leaves the job disabled.
func (s *Scheduler) Every(name string, interval time.Duration, run func(ctx context.Context) error) {
	if interval <= 0 {
		return
	}
	s.jobs = append(s.jobs, scheduledJob{name: name, interval: interval, run: run})
}

// Jobs returns the number of enabled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.jobs)
}

// Start launches one goroutine per job. The first run happens one interval after start.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
		s.log.Info("scheduled sync enabled", zap.String("job", job.name), zap.Duration("interval", job.interval))
	}
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job scheduledJob) {
	defer s.wg.Done()
	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job scheduledJob) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	err := job.run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		s.log.Info("scheduled sync skipped, another run holds the lock", zap.String("job", job.name))
	case errors.Is(err, context.Canceled):
		s.log.Info("scheduled sync interrupted", zap.String("job", job.name))
	default:
		s.log.Error("scheduled sync failed", zap.String("job", job.name), zap.Error(err))
	}
}

// NewScheduler wires the catalog and stock syncs per cfg.
func (svc *Services) NewScheduler(cfg config.SyncConfig, log *zap.Logger) *Scheduler {
	s := NewScheduler(cfg.Timeout, log)
	s.Every("catalog", cfg.CatalogInterval, func(ctx context.Context) error {
		_, err := svc.Sync.SyncCatalog(ctx)
		return err
	})
	s.Every("stock", cfg.StockInterval, func(ctx context.Context) error {
		_, err := svc.Stock.SyncStock(ctx)
		return err
	})
	return s
}
