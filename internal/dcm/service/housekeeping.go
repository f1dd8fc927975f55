package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/dcm/pkg/slogx"
)

// HousekeepingService periodically repairs accounts whose history entry went
// missing, so later logins and parameter changes are recorded again.
type HousekeepingService struct {
	Accounts *AccountService
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(accounts *AccountService, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Accounts: accounts,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. It is non-blocking and should be called
// after the store is ready. Call Stop() to shut the worker down. Only the
// first call has any effect, and Start after Stop does nothing.
func (s *HousekeepingService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress pass has finished. It returns at once if
// the worker was never started and is safe to call more than once.
func (s *HousekeepingService) Stop() {
	s.mu.Lock()
	started, first := s.started, !s.stopped
	s.stopped = true
	if started && first {
		close(s.stopCh)
	}
	s.mu.Unlock()

	if !started {
		return
	}
	<-s.doneCh
	if first {
		s.Logger.Info("housekeeping service stopped")
	}
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single reconciliation pass and logs the outcome.
func (s *HousekeepingService) RunOnce(ctx context.Context) {
	created, err := s.Accounts.ReconcileHistory(slogx.WithContext(ctx, s.Logger))
	if err != nil {
		s.Logger.Error("housekeeping pass failed", "error", err, "recreated", created)
		return
	}
	s.Logger.Debug("housekeeping pass completed", "recreated", created)
}
