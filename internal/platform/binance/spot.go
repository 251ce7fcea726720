package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

const exchangeName = "binance"

// Spot implements the overseas spot gateway and the spot/futures wallet
// transfer on the Binance spot and capital APIs.
type Spot struct {
	client *Client
	logger *slog.Logger
}

// NewSpot creates the spot gateway.
func NewSpot(client *Client, logger *slog.Logger) *Spot {
	return &Spot{
		client: client,
		logger: logger.With(slog.String("component", "binance_spot")),
	}
}

func (s *Spot) Name() string { return exchangeName }

// FetchBalance returns the free balance of one asset.
func (s *Spot) FetchBalance(ctx context.Context, currency string) (float64, error) {
	body, err := s.client.doSigned(ctx, http.MethodGet, s.client.spotBaseURL, "/api/v3/account", url.Values{})
	if err != nil {
		return 0, domain.NewGatewayError(exchangeName, "fetch balance", err)
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, domain.NewGatewayError(exchangeName, "fetch balance", err)
	}

	for _, b := range resp.Balances {
		if strings.EqualFold(b.Asset, currency) {
			free, err := asFloat(b.Free)
			if err != nil {
				return 0, domain.NewGatewayError(exchangeName, "fetch balance", err)
			}
			return free, nil
		}
	}
	return 0, nil
}

// LoadMarkets returns every actively trading spot market keyed by unified
// symbol.
func (s *Spot) LoadMarkets(ctx context.Context) (map[string]domain.Market, error) {
	body, err := s.client.doPublic(ctx, s.client.spotBaseURL, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, "load markets", err)
	}

	var resp exchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewGatewayError(exchangeName, "load markets", err)
	}

	markets := make(map[string]domain.Market, len(resp.Symbols))
	for _, sym := range resp.Symbols {
		if sym.Status != "TRADING" {
			continue
		}
		m := domain.Market{
			Symbol: sym.BaseAsset + "/" + sym.QuoteAsset,
			ID:     sym.Symbol,
			Base:   sym.BaseAsset,
			Quote:  sym.QuoteAsset,
			Active: true,
			Spot:   true,
		}
		for _, f := range sym.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				m.AmountPrecision = stepDecimals(f.StepSize)
				if minQty, err := asFloat(f.MinQty); err == nil {
					m.MinAmount = minQty
				}
			case "PRICE_FILTER":
				m.PricePrecision = stepDecimals(f.TickSize)
			case "MIN_NOTIONAL", "NOTIONAL":
				if minNotional, err := asFloat(f.MinNotional); err == nil {
					m.MinCost = minNotional
				}
			}
		}
		markets[m.Symbol] = m
	}
	return markets, nil
}

// FetchTicker returns the last trade price for a unified symbol.
func (s *Spot) FetchTicker(ctx context.Context, symbol string) (domain.TickerPrice, error) {
	params := url.Values{}
	params.Set("symbol", nativeSpotSymbol(symbol))

	body, err := s.client.doPublic(ctx, s.client.spotBaseURL, "/api/v3/ticker/price", params)
	if err != nil {
		return domain.TickerPrice{}, domain.NewGatewayError(exchangeName, "fetch ticker "+symbol, err)
	}

	var resp tickerPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.TickerPrice{}, domain.NewGatewayError(exchangeName, "fetch ticker "+symbol, err)
	}
	price, err := asFloat(resp.Price)
	if err != nil {
		return domain.TickerPrice{}, domain.NewGatewayError(exchangeName, "fetch ticker "+symbol, err)
	}
	return domain.TickerPrice{Symbol: symbol, Last: price}, nil
}

// PlaceMarketBuy spends cost units of the quote currency at market, using
// the exchange's quote-quantity order type so sizing happens server side.
func (s *Spot) PlaceMarketBuy(ctx context.Context, symbol string, cost float64) (*domain.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", nativeSpotSymbol(symbol))
	params.Set("side", "BUY")
	params.Set("type", "MARKET")
	params.Set("quoteOrderQty", formatFloat(cost))
	params.Set("newOrderRespType", "FULL")

	return s.placeOrder(ctx, symbol, "market buy", params)
}

// PlaceMarketSell sells amount units of the base currency at market.
func (s *Spot) PlaceMarketSell(ctx context.Context, symbol string, amount float64) (*domain.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", nativeSpotSymbol(symbol))
	params.Set("side", "SELL")
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(amount))
	params.Set("newOrderRespType", "FULL")

	return s.placeOrder(ctx, symbol, "market sell", params)
}

func (s *Spot) placeOrder(ctx context.Context, symbol, op string, params url.Values) (*domain.OrderResult, error) {
	body, err := s.client.doSigned(ctx, http.MethodPost, s.client.spotBaseURL, "/api/v3/order", params)
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}

	qty, err := asFloat(resp.ExecutedQty)
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}
	quote, err := asFloat(resp.CummulativeQuoteQty)
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol, err)
	}
	if qty <= 0 {
		return nil, domain.NewGatewayError(exchangeName, op+" "+symbol,
			fmt.Errorf("order %d filled nothing (status %s)", resp.OrderID, resp.Status))
	}

	var fee float64
	for _, fill := range resp.Fills {
		if commission, err := asFloat(fill.Commission); err == nil {
			fee += commission
		}
	}

	result := &domain.OrderResult{
		OrderID:      strconv.FormatInt(resp.OrderID, 10),
		Symbol:       symbol,
		AveragePrice: quote / qty,
		FilledQty:    qty,
		TotalCost:    quote,
		Fee:          fee,
	}
	s.logger.Info("spot order filled",
		slog.String("op", op),
		slog.String("symbol", symbol),
		slog.Float64("avg_price", result.AveragePrice),
		slog.Float64("qty", result.FilledQty),
	)
	return result, nil
}

// FetchDepositAddress returns this exchange's deposit address for a
// currency.
func (s *Spot) FetchDepositAddress(ctx context.Context, currency string) (domain.DepositAddress, error) {
	params := url.Values{}
	params.Set("coin", currency)

	body, err := s.client.doSigned(ctx, http.MethodGet, s.client.spotBaseURL, "/sapi/v1/capital/deposit/address", params)
	if err != nil {
		return domain.DepositAddress{}, domain.NewGatewayError(exchangeName, "fetch deposit address "+currency, err)
	}

	var resp depositAddressResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.DepositAddress{}, domain.NewGatewayError(exchangeName, "fetch deposit address "+currency, err)
	}
	if resp.Address == "" {
		return domain.DepositAddress{}, domain.NewGatewayError(exchangeName, "fetch deposit address "+currency, domain.ErrNotFound)
	}
	return domain.DepositAddress{Address: resp.Address, Tag: resp.Tag}, nil
}

// IsDepositable reports whether deposits of the currency are currently open.
func (s *Spot) IsDepositable(ctx context.Context, currency string) (bool, error) {
	body, err := s.client.doSigned(ctx, http.MethodGet, s.client.spotBaseURL, "/sapi/v1/capital/config/getall", url.Values{})
	if err != nil {
		return false, domain.NewGatewayError(exchangeName, "fetch coin config", err)
	}

	var coins []coinConfig
	if err := json.Unmarshal(body, &coins); err != nil {
		return false, domain.NewGatewayError(exchangeName, "fetch coin config", err)
	}
	for _, c := range coins {
		if strings.EqualFold(c.Coin, currency) {
			return c.DepositAllEnable, nil
		}
	}
	return false, nil
}

// Withdraw submits an on-chain withdrawal and returns its pending ticket.
func (s *Spot) Withdraw(ctx context.Context, currency string, amount float64, dest domain.DepositAddress) (*domain.WithdrawalTicket, error) {
	params := url.Values{}
	params.Set("coin", currency)
	params.Set("address", dest.Address)
	params.Set("amount", formatFloat(amount))
	if dest.Tag != "" {
		params.Set("addressTag", dest.Tag)
	}
	if dest.Network != "" {
		params.Set("network", dest.Network)
	}

	body, err := s.client.doSigned(ctx, http.MethodPost, s.client.spotBaseURL, "/sapi/v1/capital/withdraw/apply", params)
	if err != nil {
		return nil, domain.NewGatewayError(exchangeName, "withdraw "+currency, err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewGatewayError(exchangeName, "withdraw "+currency, err)
	}
	if resp.ID == "" {
		return nil, domain.NewGatewayError(exchangeName, "withdraw "+currency,
			fmt.Errorf("empty withdrawal id in response"))
	}

	s.logger.Info("withdrawal submitted",
		slog.String("currency", currency),
		slog.Float64("amount", amount),
		slog.String("withdrawal_id", resp.ID),
	)
	return &domain.WithdrawalTicket{
		ID:          resp.ID,
		Currency:    currency,
		Amount:      amount,
		Destination: dest,
		Status:      domain.WithdrawalPending,
	}, nil
}

// FetchWithdrawalStatus looks a withdrawal up in the capital withdraw
// history and maps its status code.
func (s *Spot) FetchWithdrawalStatus(ctx context.Context, currency, withdrawalID string) (domain.WithdrawalStatus, string, error) {
	params := url.Values{}
	params.Set("coin", currency)

	body, err := s.client.doSigned(ctx, http.MethodGet, s.client.spotBaseURL, "/sapi/v1/capital/withdraw/history", params)
	if err != nil {
		return "", "", domain.NewGatewayError(exchangeName, "fetch withdrawal status", err)
	}

	var entries []withdrawHistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", "", domain.NewGatewayError(exchangeName, "fetch withdrawal status", err)
	}

	for _, e := range entries {
		if e.ID != withdrawalID {
			continue
		}
		switch e.Status {
		case withdrawStatusCompleted:
			return domain.WithdrawalCompleted, e.TxID, nil
		case withdrawStatusCancelled, withdrawStatusRejected:
			return domain.WithdrawalCanceled, "", nil
		case withdrawStatusFailure:
			return domain.WithdrawalFailed, "", nil
		default:
			return domain.WithdrawalPending, "", nil
		}
	}
	return "", "", domain.NewGatewayError(exchangeName, "fetch withdrawal status", domain.ErrNotFound)
}

// FetchDepositByTxID looks an incoming deposit up by chain transaction id.
// A deposit the exchange has not seen yet reports as waiting.
func (s *Spot) FetchDepositByTxID(ctx context.Context, currency, txid string) (domain.DepositState, error) {
	params := url.Values{}
	params.Set("coin", currency)

	body, err := s.client.doSigned(ctx, http.MethodGet, s.client.spotBaseURL, "/sapi/v1/capital/deposit/hisrec", params)
	if err != nil {
		return "", domain.NewGatewayError(exchangeName, "fetch deposit history", err)
	}

	var entries []depositHistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", domain.NewGatewayError(exchangeName, "fetch deposit history", err)
	}

	for _, e := range entries {
		if e.TxID != txid {
			continue
		}
		switch e.Status {
		case depositStatusSuccess, depositStatusCredited:
			return domain.DepositSuccess, nil
		case depositStatusWrongDeposit:
			return domain.DepositFailed, nil
		default:
			return domain.DepositWaiting, nil
		}
	}
	return domain.DepositWaiting, nil
}

// TransferFunds moves USDT between the spot and futures wallets of this
// account.
func (s *Spot) TransferFunds(ctx context.Context, direction domain.TransferDirection, amount float64) error {
	var transferType string
	switch direction {
	case domain.TransferSpotToFutures:
		transferType = "1"
	case domain.TransferFuturesToSpot:
		transferType = "2"
	default:
		return domain.NewGatewayError(exchangeName, "transfer funds",
			fmt.Errorf("unknown direction %q", direction))
	}

	params := url.Values{}
	params.Set("asset", "USDT")
	params.Set("amount", formatFloat(amount))
	params.Set("type", transferType)

	if _, err := s.client.doSigned(ctx, http.MethodPost, s.client.spotBaseURL, "/sapi/v1/futures/transfer", params); err != nil {
		return domain.NewGatewayError(exchangeName, "transfer funds", err)
	}

	s.logger.Info("wallet transfer executed",
		slog.String("direction", string(direction)),
		slog.Float64("amount", amount),
	)
	return nil
}

// formatFloat renders an amount without scientific notation, which the API
// rejects.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
