package services

import (
	"context"
	"sync"
	"time"

	"github.com/khabaroff/mockhook/src/logging"
	"github.com/rs/zerolog"
)

// Sweeper is a store with a lazy eviction pass
type Sweeper interface {
	Cleanup(ctx context.Context) (int, error)
}

// CleanupService optionally runs the eviction sweeps on a schedule, on top
// of the sweeps triggered by normal access
type CleanupService struct {
	sweepers []Sweeper
	enabled  bool
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(enabled bool, interval time.Duration, sweepers ...Sweeper) *CleanupService {
	return &CleanupService{
		sweepers: sweepers,
		enabled:  enabled,
		interval: interval,
		done:     make(chan struct{}),
		log:      logging.NewLogger("cleanup"),
	}
}

// Start starts the cleanup loop
func (cs *CleanupService) Start(ctx context.Context) {
	if !cs.enabled {
		cs.log.Info().Msg("Cleanup service is disabled, eviction runs on access")
		return
	}

	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()

		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				cs.log.Info().Msg("Cleanup service stopped")
				return
			case <-cs.done:
				cs.log.Info().Msg("Cleanup service stopped")
				return
			case <-ticker.C:
				cs.RunOnce(ctx)
			}
		}
	}()

	cs.log.Info().Dur("interval", cs.interval).Msg("Cleanup service started")
}

// Stop stops the cleanup loop and waits for it to exit
func (cs *CleanupService) Stop() {
	cs.stopOnce.Do(func() {
		close(cs.done)
	})
	cs.wg.Wait()
}

// RunOnce runs every sweep and returns the total number of evictions
func (cs *CleanupService) RunOnce(ctx context.Context) int {
	total := 0
	for _, sw := range cs.sweepers {
		n, err := sw.Cleanup(ctx)
		if err != nil {
			cs.log.Error().Err(err).Msg("Cleanup error")
			continue
		}
		total += n
	}
	if total > 0 {
		cs.log.Info().Int("evicted", total).Msg("Cleanup completed")
	}
	return total
}
