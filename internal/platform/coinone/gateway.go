package coinone

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

const exchangeName = "coinone"

// Gateway implements the domestic spot gateway. Every market quotes in KRW.
type Gateway struct {
	client *Client
	logger *slog.Logger
}

// NewGateway creates the Coinone gateway.
func NewGateway(client *Client, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger.With(slog.String("component", "coinone")),
	}
}

func (g *Gateway) Name() string { return exchangeName }

// FetchBalance returns the available balance of one currency.
func (g *Gateway) FetchBalance(ctx context.Context, currency string) (float64, error) {
	body, err := g.client.doPrivate(ctx, "/v2.1/account/balance", map[string]any{
		"currencies": []string{strings.ToUpper(currency)},
	})
	if err != nil {
		return 0, domain.NewGatewayError(exchangeName, "fetch balance", err)
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, domain.NewGatewayError(exchangeName, "fetch balance", err)
	}
	for _, b := range resp.Balances {
		if strings.EqualFold(b.Currency, currency) {
			available, err := asFloat(b.Available)
			if err != nil {
				return 0, domain.NewGatewayError(exchangeName, "fetch balance", err)
			}
			return available, nil
		}
	}
	return 0, nil
}

// LoadMarkets returns every tradable KRW market keyed by unified symbol.
func (g *Gateway) LoadMarkets(ctx context.Context) (map[string]domain.Market, error) {
	body, err := g.client.doPublic(ctx, "/public/v2/markets/KRW")
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, "load markets", err)
	}

	var resp marketsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewGatewayError(exchangeName, "load markets", err)
	}

	markets := make(map[string]domain.Market, len(resp.Markets))
	for _, m := range resp.Markets {
		base := strings.ToUpper(m.TargetCurrency)
		minQty, _ := asFloat(m.MinQty)
		minAmount, _ := asFloat(m.MinOrderAmount)
		markets[base+"/KRW"] = domain.Market{
			Symbol:          base + "/KRW",
			ID:              strings.ToLower(m.TargetCurrency),
			Base:            base,
			Quote:           "KRW",
			MinCost:         minAmount,
			MinAmount:       minQty,
			AmountPrecision: stepDecimals(m.QtyUnit),
			PricePrecision:  0, // KRW books tick in whole won
			Active:          m.TradeStatus == 1 && m.MaintenanceStatus == 0,
			Spot:            true,
		}
	}
	return markets, nil
}

// FetchTicker returns the last trade price for a unified symbol.
func (g *Gateway) FetchTicker(ctx context.Context, symbol string) (domain.TickerPrice, error) {
	base, ok := baseOf(symbol)
	if !ok {
		return domain.TickerPrice{}, domain.NewGatewayError(exchangeName, "fetch ticker "+symbol, domain.ErrNoMarketData)
	}

	body, err := g.client.doPublic(ctx, "/public/v2/ticker_new/KRW/"+base)
	if err != nil {
		return domain.TickerPrice{}, domain.NewGatewayError(exchangeName, "fetch ticker "+symbol, err)
	}

	var resp tickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.TickerPrice{}, domain.NewGatewayError(exchangeName, "fetch ticker "+symbol, err)
	}
	if len(resp.Tickers) == 0 {
		return domain.TickerPrice{}, domain.NewGatewayError(exchangeName, "fetch ticker "+symbol, domain.ErrNoMarketData)
	}
	last, err := asFloat(resp.Tickers[0].Last)
	if err != nil {
		return domain.TickerPrice{}, domain.NewGatewayError(exchangeName, "fetch ticker "+symbol, err)
	}
	return domain.TickerPrice{Symbol: symbol, Last: last}, nil
}

// PlaceMarketBuy spends cost KRW at market.
func (g *Gateway) PlaceMarketBuy(ctx context.Context, symbol string, cost float64) (*domain.OrderResult, error) {
	base, ok := baseOf(symbol)
	if !ok {
		return nil, domain.NewGatewayError(exchangeName, "market buy "+symbol, domain.ErrNoMarketData)
	}
	return g.placeOrder(ctx, symbol, "market buy", map[string]any{
		"quote_currency":  "KRW",
		"target_currency": base,
		"side":            "BUY",
		"type":            "MARKET",
		"amount":          formatFloat(cost),
	})
}

// PlaceMarketSell sells amount units of the base currency at market.
func (g *Gateway) PlaceMarketSell(ctx context.Context, symbol string, amount float64) (*domain.OrderResult, error) {
	base, ok := baseOf(symbol)
	if !ok {
		return nil, domain.NewGatewayError(exchangeName, "market sell "+symbol, domain.ErrNoMarketData)
	}
	return g.placeOrder(ctx, symbol, "market sell", map[string]any{
		"quote_currency":  "KRW",
		"target_currency": base,
		"side":            "SELL",
		"type":            "MARKET",
		"qty":             formatFloat(amount),
	})
}

// placeOrder submits a market order and reads its fill back from the order
// detail endpoint; the order endpoint only returns an id.
func (g *Gateway) placeOrder(ctx context.Context, symbol, op string, params map[string]any) (*domain.OrderResult, error) {
	body, err := g.client.doPrivate(ctx, "/v2.1/order", params)
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}

	var placed struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(body, &placed); err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}
	if placed.OrderID == "" {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol,
			fmt.Errorf("empty order id in response"))
	}

	detailBody, err := g.client.doPrivate(ctx, "/v2.1/order/detail", map[string]any{
		"order_id":        placed.OrderID,
		"quote_currency":  params["quote_currency"],
		"target_currency": params["target_currency"],
	})
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}

	var detail orderDetailResponse
	if err := json.Unmarshal(detailBody, &detail); err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}

	qty, err := asFloat(detail.Order.TradedQty)
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}
	traded, err := asFloat(detail.Order.TradedAmount)
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}
	fee, _ := asFloat(detail.Order.Fee)
	if qty <= 0 {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol,
			fmt.Errorf("order %s filled nothing (status %s)", placed.OrderID, detail.Order.Status))
	}

	result := &domain.OrderResult{
		OrderID:      placed.OrderID,
		Symbol:       symbol,
		AveragePrice: traded / qty,
		FilledQty:    qty,
		TotalCost:    traded,
		Fee:          fee,
	}
	g.logger.Info("order filled",
		slog.String("op", op),
		slog.String("symbol", symbol),
		slog.Float64("avg_price", result.AveragePrice),
		slog.Float64("qty", qty),
	)
	return result, nil
}

// FetchDepositAddress returns this exchange's deposit address for a
// currency.
func (g *Gateway) FetchDepositAddress(ctx context.Context, currency string) (domain.DepositAddress, error) {
	body, err := g.client.doPrivate(ctx, "/v2.1/transaction/coin/deposit_address", map[string]any{
		"currency": strings.ToUpper(currency),
	})
	if err != nil {
		return domain.DepositAddress{}, domain.NewGatewayError(exchangeName, "fetch deposit address "+currency, err)
	}

	var resp struct {
		Address          string `json:"address"`
		SecondaryAddress string `json:"secondary_address"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.DepositAddress{}, domain.NewGatewayError(exchangeName, "fetch deposit address "+currency, err)
	}
	if resp.Address == "" {
		return domain.DepositAddress{}, domain.NewGatewayError(exchangeName, "fetch deposit address "+currency, domain.ErrNotFound)
	}
	return domain.DepositAddress{Address: resp.Address, Tag: resp.SecondaryAddress}, nil
}

// IsDepositable reports whether the currency's deposit wallet is open.
func (g *Gateway) IsDepositable(ctx context.Context, currency string) (bool, error) {
	body, err := g.client.doPublic(ctx, "/public/v2/currencies/"+strings.ToUpper(currency))
	if err != nil {
		return false, domain.NewGatewayError(exchangeName, "fetch currency status", err)
	}

	var resp struct {
		Currencies []struct {
			Symbol        string `json:"symbol"`
			DepositStatus int    `json:"deposit_status"`
		} `json:"currencies"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, domain.NewGatewayError(exchangeName, "fetch currency status", err)
	}
	for _, c := range resp.Currencies {
		if strings.EqualFold(c.Symbol, currency) {
			return c.DepositStatus == 1, nil
		}
	}
	return false, nil
}

// Withdraw submits an on-chain withdrawal and returns its pending ticket.
func (g *Gateway) Withdraw(ctx context.Context, currency string, amount float64, dest domain.DepositAddress) (*domain.WithdrawalTicket, error) {
	params := map[string]any{
		"currency": strings.ToUpper(currency),
		"amount":   formatFloat(amount),
		"address":  dest.Address,
	}
	if dest.Tag != "" {
		params["secondary_address"] = dest.Tag
	}

	body, err := g.client.doPrivate(ctx, "/v2.1/transaction/coin/withdrawal", params)
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, "withdraw "+currency, err)
	}

	var resp struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewGatewayError(exchangeName, "withdraw "+currency, err)
	}
	if resp.TransactionID == "" {
		return nil, domain.NewGatewayError(exchangeName, "withdraw "+currency,
			fmt.Errorf("empty transaction id in response"))
	}

	g.logger.Info("withdrawal submitted",
		slog.String("currency", currency),
		slog.Float64("amount", amount),
		slog.String("withdrawal_id", resp.TransactionID),
	)
	return &domain.WithdrawalTicket{
		ID:          resp.TransactionID,
		Currency:    strings.ToUpper(currency),
		Amount:      amount,
		Destination: dest,
		Status:      domain.WithdrawalPending,
	}, nil
}

// FetchWithdrawalStatus looks a withdrawal up in the coin transaction
// history and maps its status string.
func (g *Gateway) FetchWithdrawalStatus(ctx context.Context, currency, withdrawalID string) (domain.WithdrawalStatus, string, error) {
	body, err := g.client.doPrivate(ctx, "/v2.1/transaction/coin/history", map[string]any{
		"currency":   strings.ToUpper(currency),
		"is_deposit": false,
	})
	if err != nil {
		return "", "", domain.NewGatewayError(exchangeName, "fetch withdrawal status", err)
	}

	var resp transactionHistoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", domain.NewGatewayError(exchangeName, "fetch withdrawal status", err)
	}

	for _, tx := range resp.Transactions {
		if tx.ID != withdrawalID {
			continue
		}
		switch strings.ToUpper(tx.Status) {
		case "SUCCESS", "DONE":
			return domain.WithdrawalCompleted, tx.TxID, nil
		case "CANCELED", "CANCELLED", "REJECTED":
			return domain.WithdrawalCanceled, "", nil
		case "FAILED":
			return domain.WithdrawalFailed, "", nil
		default:
			return domain.WithdrawalPending, "", nil
		}
	}
	return "", "", domain.NewGatewayError(exchangeName, "fetch withdrawal status", domain.ErrNotFound)
}

// FetchDepositByTxID looks an incoming deposit up by chain transaction id.
func (g *Gateway) FetchDepositByTxID(ctx context.Context, currency, txid string) (domain.DepositState, error) {
	body, err := g.client.doPrivate(ctx, "/v2.1/transaction/coin/history", map[string]any{
		"currency":   strings.ToUpper(currency),
		"is_deposit": true,
	})
	if err != nil {
		return "", domain.NewGatewayError(exchangeName, "fetch deposit history", err)
	}

	var resp transactionHistoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.NewGatewayError(exchangeName, "fetch deposit history", err)
	}

	for _, tx := range resp.Transactions {
		if tx.TxID != txid {
			continue
		}
		switch strings.ToUpper(tx.Status) {
		case "SUCCESS", "DONE":
			return domain.DepositSuccess, nil
		case "FAILED", "REJECTED":
			return domain.DepositFailed, nil
		default:
			return domain.DepositWaiting, nil
		}
	}
	return domain.DepositWaiting, nil
}

// baseOf extracts the base currency from a unified "BASE/KRW" symbol.
func baseOf(symbol string) (string, bool) {
	base, quote, found := strings.Cut(symbol, "/")
	if !found || quote != "KRW" {
		return "", false
	}
	return base, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
