package rates

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

// Fetcher returns the current KRW price of one USD.
type Fetcher interface {
	FetchRate(ctx context.Context) (float64, error)
}

// Service polls a forex Fetcher and publishes immutable RateSnapshot values.
// Readers never observe a half-written rate: Current returns the snapshot
// that was complete at call time, and each successful fetch installs a fresh
// snapshot with a monotonically increasing version.
type Service struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *slog.Logger

	current atomic.Pointer[domain.RateSnapshot]
	version atomic.Int64
}

// NewService creates a rate poller. It holds no snapshot until the first
// successful fetch.
func NewService(fetcher Fetcher, interval time.Duration, logger *slog.Logger) *Service {
	return &Service{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger.With(slog.String("component", "rates")),
	}
}

// Current returns the latest rate snapshot, or ErrNoRateSnapshot if no fetch
// has succeeded yet.
func (s *Service) Current() (domain.RateSnapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return domain.RateSnapshot{}, domain.ErrNoRateSnapshot
	}
	return *snap, nil
}

// Refresh performs a single fetch and installs the result. Failures leave
// the previous snapshot in place.
func (s *Service) Refresh(ctx context.Context) error {
	rate, err := s.fetcher.FetchRate(ctx)
	if err != nil {
		return err
	}
	snap := &domain.RateSnapshot{
		Rate:      rate,
		FetchedAt: time.Now(),
		Version:   s.version.Add(1),
	}
	s.current.Store(snap)
	s.logger.Debug("rate refreshed",
		slog.Float64("usd_krw", rate),
		slog.Int64("version", snap.Version),
	)
	return nil
}

// Run fetches immediately, then on every interval tick until ctx is
// cancelled. Fetch failures are logged and retried on the next tick; a stale
// snapshot stays readable the whole time.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial rate fetch failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("rate fetch failed", slog.String("error", err.Error()))
			}
		}
	}
}
