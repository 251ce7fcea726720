package domain

import "context"

// Gateway is the capability interface for one spot exchange. Every method
// may block on network I/O and must honour ctx cancellation. Implementations
// wrap failures in GatewayError.
type Gateway interface {
	// Name identifies the exchange in logs and errors, e.g. "binance".
	Name() string

	FetchBalance(ctx context.Context, currency string) (float64, error)
	LoadMarkets(ctx context.Context) (map[string]Market, error)
	FetchTicker(ctx context.Context, symbol string) (TickerPrice, error)

	// PlaceMarketBuy spends cost units of the quote currency at market.
	PlaceMarketBuy(ctx context.Context, symbol string, cost float64) (*OrderResult, error)
	// PlaceMarketSell sells amount units of the base currency at market.
	PlaceMarketSell(ctx context.Context, symbol string, amount float64) (*OrderResult, error)

	FetchDepositAddress(ctx context.Context, currency string) (DepositAddress, error)
	// IsDepositable reports whether the exchange currently accepts deposits
	// of the currency. Checked at call time, not from cached eligibility.
	IsDepositable(ctx context.Context, currency string) (bool, error)

	Withdraw(ctx context.Context, currency string, amount float64, dest DepositAddress) (*WithdrawalTicket, error)
	// FetchWithdrawalStatus returns the current status of a withdrawal and,
	// once broadcast, its chain transaction id.
	FetchWithdrawalStatus(ctx context.Context, currency, withdrawalID string) (WithdrawalStatus, string, error)
	// FetchDepositByTxID looks up an incoming deposit by chain transaction id.
	FetchDepositByTxID(ctx context.Context, currency, txid string) (DepositState, error)
}

// FuturesGateway is the capability interface for a USDT-margined futures
// venue paired with a spot Gateway.
type FuturesGateway interface {
	Name() string

	FetchBalance(ctx context.Context, currency string) (float64, error)
	LoadMarkets(ctx context.Context) (map[string]Market, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	FetchPositions(ctx context.Context) ([]Position, error)

	PlaceMarketBuy(ctx context.Context, symbol string, amount float64) (*OrderResult, error)
	// PlaceMarketSellCost opens a short sized by quote-currency cost.
	PlaceMarketSellCost(ctx context.Context, symbol string, cost float64) (*OrderResult, error)
}

// FundsTransferer moves funds between the spot and futures wallets of the
// same exchange account.
type FundsTransferer interface {
	TransferFunds(ctx context.Context, direction TransferDirection, amount float64) error
}
