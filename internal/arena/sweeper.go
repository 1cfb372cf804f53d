package arena

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SweeperConfig controls the housekeeping jobs.
type SweeperConfig struct {
	Interval time.Duration
	// StaleAfter evicts queue entries older than this; zero keeps them.
	StaleAfter time.Duration
	// TurnTimeout forfeits idle battles; zero disables it.
	TurnTimeout time.Duration
}

// Sweeper periodically evicts stale queue entries and forfeits idle battles.
type Sweeper struct {
	service   *Service
	cfg       SweeperConfig
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

// NewSweeper registers the housekeeping job. Call Start to run it.
func NewSweeper(service *Service, cfg SweeperConfig, logger *zap.Logger) (*Sweeper, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("sweeper interval must be positive, got %s", cfg.Interval)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s := &Sweeper{service: service, cfg: cfg, scheduler: scheduler, logger: logger}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(s.Sweep, context.Background()),
		gocron.WithName("arena-sweeper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to register sweeper job: %w", err)
	}
	return s, nil
}

// Start begins running the job in the background.
func (s *Sweeper) Start() {
	s.logger.Info("sweeper started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("stale_after", s.cfg.StaleAfter),
		zap.Duration("turn_timeout", s.cfg.TurnTimeout),
	)
	s.scheduler.Start()
}

// Stop waits for a running sweep and stops the scheduler.
func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

// Sweep runs one housekeeping pass. Failures are logged and retried on the
// next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.cfg.StaleAfter > 0 {
		if _, err := s.service.EvictStaleQueue(ctx, s.cfg.StaleAfter); err != nil {
			s.logger.Warn("queue eviction failed", zap.Error(err))
		}
	}
	if s.cfg.TurnTimeout > 0 {
		if _, err := s.service.ForfeitIdle(ctx, s.cfg.TurnTimeout); err != nil {
			s.logger.Warn("idle forfeit failed", zap.Error(err))
		}
	}
}
