package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNoMarketData       = errors.New("market data unavailable")
	ErrBelowMinimum       = errors.New("order below exchange minimum")
	ErrNoEligibleTarget   = errors.New("no eligible target currency")
	ErrNoMatchingPosition = errors.New("no matching futures position")
	ErrTransferFailed     = errors.New("cross-exchange transfer failed")
	ErrNoRateSnapshot     = errors.New("no fx rate snapshot available")
	ErrRateLimited        = errors.New("rate limited")
	ErrLockHeld           = errors.New("lock already held")
	ErrContextDone        = errors.New("context cancelled")
)

// GatewayError wraps any failure returned by an exchange gateway call so
// callers can tell which exchange and operation failed without parsing
// message strings.
type GatewayError struct {
	Exchange string
	Op       string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Exchange, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError wraps err as a GatewayError. It returns nil when err is nil
// so gateway implementations can wrap return values unconditionally.
func NewGatewayError(exchange, op string, err error) error {
	if err == nil {
		return nil
	}
	return &GatewayError{Exchange: exchange, Op: op, Err: err}
}
