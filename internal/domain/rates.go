package domain

import "time"

// RateSnapshot is an immutable USD→KRW rate observation. The fx poller
// publishes fresh snapshots; readers hold whichever snapshot was current when
// their cycle started and never see it change underneath them.
type RateSnapshot struct {
	Rate      float64
	FetchedAt time.Time
	Version   int64
}

// RateSource hands out the most recent snapshot. Implementations must return
// ErrNoRateSnapshot until the first successful fetch.
type RateSource interface {
	Current() (RateSnapshot, error)
}
