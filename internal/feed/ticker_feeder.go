// Package feed streams live domestic ticker prices into the shared price
// cache. Scan mode runs it alongside the premium ranker so the cache always
// holds fresher prices than the REST polling interval alone would give.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/minkyu-kim/kimpbot/internal/domain"
	"github.com/minkyu-kim/kimpbot/internal/platform/coinone"
)

// TickerStream is the websocket surface the feeder consumes. Satisfied by
// *coinone.WSClient.
type TickerStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, currencies []string) error
	OnTicker(handler coinone.TickerHandler)
	Close() error
}

// TickerFeeder subscribes to ticker pushes for a set of currencies and writes
// each update into the price cache.
type TickerFeeder struct {
	stream     TickerStream
	cache      domain.PriceCache
	currencies []string
	logger     *slog.Logger

	updates chan domain.TickerPrice
}

// NewTickerFeeder creates a TickerFeeder for the given currencies.
func NewTickerFeeder(stream TickerStream, cache domain.PriceCache, currencies []string, logger *slog.Logger) *TickerFeeder {
	return &TickerFeeder{
		stream:     stream,
		cache:      cache,
		currencies: currencies,
		logger:     logger.With(slog.String("component", "ticker_feeder")),
		updates:    make(chan domain.TickerPrice, 256),
	}
}

// Run connects the stream, subscribes, and writes ticker updates to the
// cache until the context is cancelled. The stream is closed on return.
func (f *TickerFeeder) Run(ctx context.Context) error {
	f.stream.OnTicker(func(tick domain.TickerPrice) {
		select {
		case f.updates <- tick:
		default:
			// Drop under backpressure; the next push for the symbol
			// supersedes this one anyway.
		}
	})

	if err := f.stream.Connect(ctx); err != nil {
		return err
	}
	defer f.stream.Close()

	if err := f.stream.Subscribe(ctx, f.currencies); err != nil {
		return err
	}

	f.logger.Info("ticker feeder started", slog.Int("currencies", len(f.currencies)))
	defer f.logger.Info("ticker feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick := <-f.updates:
			if tick.Last <= 0 {
				continue
			}
			if err := f.cache.SetPrice(ctx, tick.Symbol, tick.Last, time.Now()); err != nil {
				f.logger.Warn("cache write failed",
					slog.String("symbol", tick.Symbol),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
