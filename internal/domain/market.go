package domain

// Market is a point-in-time snapshot of an exchange market's trading rules.
// Markets are refetched per operation and never cached across cycle steps;
// minimums and precision can change between calls.
type Market struct {
	Symbol          string  // unified "BASE/QUOTE", e.g. "XRP/KRW"
	ID              string  // exchange-native market identifier
	Base            string
	Quote           string
	MinCost         float64 // minimum order notional in quote currency
	MinAmount       float64 // minimum order size in base currency
	AmountPrecision int     // decimal places accepted for order size
	PricePrecision  int     // decimal places accepted for order cost
	Active          bool
	Spot            bool
	Future          bool
}

// Candidate is one entry of the externally ranked premium list. The ranking
// is descending by PremiumPercent; the orchestrator never re-sorts it.
type Candidate struct {
	Symbol         string  // domestic market symbol, e.g. "XRP/KRW"
	Currency       string  // base currency, e.g. "XRP"
	PriceDiff      float64 // domestic price minus overseas price, in quote units
	PremiumPercent float64
}

// TickerPrice is a last-trade price snapshot used by the premium ranker and
// the scan-mode feed.
type TickerPrice struct {
	Symbol string
	Last   float64
}
