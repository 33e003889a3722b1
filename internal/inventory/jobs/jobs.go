// Package jobs runs the engine's background work as typed jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/sweep"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"go.uber.org/zap"
)

// Job is one of SweepExpired, LowStockCheck or Restock.
type Job interface {
	Name() string
	isJob()
}

// SweepExpired releases reservations past their deadline.
type SweepExpired struct{}

// LowStockCheck reconciles open alerts with current availability.
type LowStockCheck struct{}

// Restock books received goods against an item.
type Restock struct {
	ProductID string
	VariantID *string
	Quantity  int64
	Reference string
	UserID    string
}

func (SweepExpired) Name() string  { return "sweep_expired" }
func (LowStockCheck) Name() string { return "low_stock_check" }
func (Restock) Name() string       { return "restock" }

func (SweepExpired) isJob()  {}
func (LowStockCheck) isJob() {}
func (Restock) isJob()       {}

var ErrQueueFull = errors.New("job queue is full")

type Sweeper interface {
	Run(ctx context.Context) (sweep.Result, error)
}

type Config struct {
	SweepInterval         time.Duration
	LowStockCheckInterval time.Duration
	QueueSize             int
}

type Scheduler struct {
	uc      inventory.UseCase
	sweeper Sweeper
	logger  logger.ZapLogger
	cfg     Config
	queue   chan Job
}

func NewScheduler(uc inventory.UseCase, sweeper Sweeper, log logger.ZapLogger, cfg Config) *Scheduler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Scheduler{
		uc:      uc,
		sweeper: sweeper,
		logger:  log,
		cfg:     cfg,
		queue:   make(chan Job, cfg.QueueSize),
	}
}

// Dispatch runs job synchronously.
func (s *Scheduler) Dispatch(ctx context.Context, job Job) error {
	start := time.Now()
	var err error
	switch j := job.(type) {
	case SweepExpired:
		var res sweep.Result
		res, err = s.sweeper.Run(ctx)
		if err == nil && res.Expired > 0 {
			s.logger.Debug("sweep job expired reservations", zap.Int("expired", res.Expired))
		}
	case LowStockCheck:
		var n int
		n, err = s.uc.ReconcileAlerts(ctx)
		if err == nil && n > 0 {
			s.logger.Debug("low stock check updated alerts", zap.Int("items", n))
		}
	case Restock:
		if j.Quantity <= 0 {
			return inventory.InvalidInput("restock quantity must be positive")
		}
		_, err = s.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{
			ProductID:      j.ProductID,
			VariantID:      j.VariantID,
			QuantityChange: j.Quantity,
			Reason:         "restock",
			ReferenceType:  "restock",
			ReferenceID:    j.Reference,
			UserID:         j.UserID,
		})
	default:
		return fmt.Errorf("unknown job %T", job)
	}
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name(), err)
	}
	s.logger.Debug("job finished", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
	return nil
}

// Submit queues job for the worker started by Start without waiting.
func (s *Scheduler) Submit(job Job) error {
	select {
	case s.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the periodic jobs and the queue worker until ctx is done. A
// non-positive interval disables that periodic job.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.SweepInterval > 0 {
		go s.every(ctx, s.cfg.SweepInterval, SweepExpired{})
	}
	if s.cfg.LowStockCheckInterval > 0 {
		go s.every(ctx, s.cfg.LowStockCheckInterval, LowStockCheck{})
	}

	s.logger.Info("job scheduler started",
		zap.Duration("sweep_interval", s.cfg.SweepInterval),
		zap.Duration("low_stock_check_interval", s.cfg.LowStockCheckInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("job scheduler stopped")
			return
		case job := <-s.queue:
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) every(ctx context.Context, interval time.Duration, job Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.run(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if err := s.Dispatch(ctx, job); err != nil && ctx.Err() == nil {
		s.logger.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
	}
}
