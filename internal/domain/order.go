package domain

// OrderResult is the outcome of a filled market order. A leg that failed is
// represented by a nil *OrderResult, never a partially populated one.
type OrderResult struct {
	OrderID      string
	Symbol       string
	AveragePrice float64
	FilledQty    float64
	TotalCost    float64
	Fee          float64
}

// Position is a futures position as reported by the overseas exchange.
// Size is negative for shorts, matching the exchange's positionAmt sign
// convention.
type Position struct {
	Symbol     string
	MarketID   string
	Size       float64
	EntryPrice float64
	Leverage   int
}

// TransferDirection names the two sides of a spot/futures wallet transfer on
// the overseas exchange.
type TransferDirection string

const (
	TransferSpotToFutures TransferDirection = "spot_to_futures"
	TransferFuturesToSpot TransferDirection = "futures_to_spot"
)

// TransferInstruction is the Leverage Balancer's output: move Amount USDT in
// Direction. A nil instruction means the balances already sit at the target
// ratio.
type TransferInstruction struct {
	Direction TransferDirection
	Amount    float64
}
