package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically demotes idle sessions to away.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewSweeper(registry *Registry, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the sweep loop in the background until Stop or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Run blocks, sweeping every interval on the registry's clock until ctx is
// done. The next tick is armed after each sweep finishes.
func (s *Sweeper) Run(ctx context.Context) {
	clock := s.registry.clock
	tick := make(chan struct{}, 1)

	s.logger.Info("presence sweeper started", zap.Duration("interval", s.interval))
	for {
		timer := clock.AfterFunc(s.interval, func() {
			select {
			case tick <- struct{}{}:
			default:
			}
		})
		select {
		case <-tick:
			s.registry.Sweep()
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("presence sweeper stopped")
			return
		}
	}
}
