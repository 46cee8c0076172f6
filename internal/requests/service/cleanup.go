package service

import (
	"context"
	"sync"
	"time"

	hallrepo "hallbook/internal/halls/repository"
	"hallbook/internal/requests/repository"
	"hallbook/pkg/config"
)

// SweepResult reports what one cleanup pass did. A throttled or already
// running pass returns the zero value with Ran false.
type SweepResult struct {
	Ran                 bool
	ReservationsRemoved int64
	RequestsRemoved     int64
	StalePendingRemoved int64
}

// Sweeper removes elapsed reservations and requests. It runs on a timer and
// opportunistically before reads, with a minimum interval between passes so
// request-path triggers stay cheap. At most one pass runs at a time per
// process.
type Sweeper struct {
	requests repository.RequestRepository
	halls    hallrepo.HallRepository
	cfg      *config.Config
	now      func() time.Time

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

func NewSweeper(requests repository.RequestRepository, halls hallrepo.HallRepository, cfg *config.Config) *Sweeper {
	return &Sweeper{
		requests: requests,
		halls:    halls,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run executes one cleanup pass. Force bypasses the min-interval throttle
// but never the single-runner guard. Each sub-sweep is independent: one
// failing is logged and the others still run, so a sweep is safe to repeat.
func (s *Sweeper) Run(ctx context.Context, force bool) SweepResult {
	cutoff := s.now()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return SweepResult{}
	}
	if !force && !s.lastRun.IsZero() && cutoff.Sub(s.lastRun) < s.cfg.CleanupMinInterval {
		s.mu.Unlock()
		return SweepResult{}
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastRun = s.now()
		s.mu.Unlock()
	}()

	result := SweepResult{Ran: true}

	removed, err := s.halls.SweepExpired(ctx, cutoff)
	if err != nil {
		s.cfg.Log.Error("Failed to sweep expired reservations", "error", err)
	} else {
		result.ReservationsRemoved = removed
	}

	removed, err = s.requests.DeleteElapsed(ctx, cutoff)
	if err != nil {
		s.cfg.Log.Error("Failed to delete elapsed requests", "error", err)
	} else {
		result.RequestsRemoved = removed
	}

	// Pending requests whose window already started can no longer be
	// approved into a future booking; they are moot, not contested.
	removed, err = s.requests.DeleteStalePending(ctx, cutoff)
	if err != nil {
		s.cfg.Log.Error("Failed to delete stale pending requests", "error", err)
	} else {
		result.StalePendingRemoved = removed
	}

	if result.ReservationsRemoved > 0 || result.RequestsRemoved > 0 || result.StalePendingRemoved > 0 {
		s.cfg.Log.Info("Cleanup pass removed elapsed records",
			"reservations_removed", result.ReservationsRemoved,
			"requests_removed", result.RequestsRemoved,
			"stale_pending_removed", result.StalePendingRemoved,
		)
	}

	return result
}

// Start launches the periodic sweep loop. The first pass runs immediately so
// a restarted service does not serve stale state for a full interval. The
// loop stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		s.Run(ctx, true)

		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Run(ctx, false)
			}
		}
	}()
}
