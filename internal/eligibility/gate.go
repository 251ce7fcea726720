// Package eligibility decides whether a candidate currency is safe to route
// through a full arbitrage cycle, and loads the per-currency address book
// the decision is based on.
package eligibility

import (
	"log/slog"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

// Gate evaluates eligibility checks against a table snapshot. It holds no
// mutable state; the same inputs always produce the same verdict.
type Gate struct {
	logger *slog.Logger
}

// NewGate creates a Gate.
func NewGate(logger *slog.Logger) *Gate {
	return &Gate{logger: logger.With(slog.String("component", "eligibility_gate"))}
}

// IsEligible runs the routing checks for currency in order, returning false
// on the first failure. The order is fixed for diagnostic clarity: the log
// line names the first check that failed, not an arbitrary one.
func (g *Gate) IsEligible(currency string, table domain.EligibilityTable) bool {
	rec, ok := table[currency]
	if !ok {
		g.logger.Debug("currency not in eligibility table", slog.String("currency", currency))
		return false
	}

	if rec.Unavailable {
		g.logger.Debug("currency flagged unavailable", slog.String("currency", currency))
		return false
	}
	if rec.DepositAddress.Address == "" {
		g.logger.Debug("no deposit address on record", slog.String("currency", currency))
		return false
	}
	if rec.TradeSuspended {
		g.logger.Debug("spot trading suspended on destination", slog.String("currency", currency))
		return false
	}
	if rec.WithdrawSuspended {
		g.logger.Debug("withdrawal suspended on source", slog.String("currency", currency))
		return false
	}
	if !rec.Depositable {
		g.logger.Debug("deposits disabled on destination", slog.String("currency", currency))
		return false
	}

	return true
}
