// Package sizing converts raw amounts and costs into exchange-valid order
// sizes that respect per-market precision and minimums.
package sizing

import (
	"math"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

// TruncateDecimals truncates v toward zero to the given number of decimal
// places. Rounding up is never allowed: an order sized above the wallet
// balance by a rounding artifact gets rejected by the exchange.
func TruncateDecimals(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	factor := math.Pow10(decimals)
	return math.Trunc(v*factor) / factor
}

// Truncate8 truncates toward zero at 8 decimal places, the finest granularity
// the exchanges accept for wallet transfers.
func Truncate8(v float64) float64 {
	return TruncateDecimals(v, 8)
}

// NormalizeAmount truncates a base-currency order size to the market's amount
// precision. It returns ErrNoMarketData when the market snapshot is missing
// and ErrBelowMinimum when the truncated size is under the market minimum.
func NormalizeAmount(amount float64, market *domain.Market) (float64, error) {
	if market == nil {
		return 0, domain.ErrNoMarketData
	}
	normalized := TruncateDecimals(amount, market.AmountPrecision)
	if normalized <= 0 || normalized < market.MinAmount {
		return 0, domain.ErrBelowMinimum
	}
	return normalized, nil
}

// NormalizeCost truncates a quote-currency order cost to the market's price
// precision and enforces the minimum notional.
func NormalizeCost(cost float64, market *domain.Market) (float64, error) {
	if market == nil {
		return 0, domain.ErrNoMarketData
	}
	normalized := TruncateDecimals(cost, market.PricePrecision)
	if normalized <= 0 || normalized < market.MinCost {
		return 0, domain.ErrBelowMinimum
	}
	return normalized, nil
}
