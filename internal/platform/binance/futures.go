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
	"github.com/minkyu-kim/kimpbot/internal/sizing"
)

const futuresName = "binance_futures"

// Futures implements the USDT-margined futures gateway on fapi.binance.com.
type Futures struct {
	client *Client
	logger *slog.Logger
}

// NewFutures creates the futures gateway sharing a signed client with the
// spot gateway.
func NewFutures(client *Client, logger *slog.Logger) *Futures {
	return &Futures{
		client: client,
		logger: logger.With(slog.String("component", "binance_futures")),
	}
}

func (f *Futures) Name() string { return futuresName }

// FetchBalance returns the wallet balance of one margin asset.
func (f *Futures) FetchBalance(ctx context.Context, currency string) (float64, error) {
	body, err := f.client.doSigned(ctx, http.MethodGet, f.client.futuresBaseURL, "/fapi/v2/balance", url.Values{})
	if err != nil {
		return 0, domain.NewGatewayError(futuresName, "fetch balance", err)
	}

	var entries []futuresBalanceEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, domain.NewGatewayError(futuresName, "fetch balance", err)
	}
	for _, e := range entries {
		if strings.EqualFold(e.Asset, currency) {
			balance, err := asFloat(e.Balance)
			if err != nil {
				return 0, domain.NewGatewayError(futuresName, "fetch balance", err)
			}
			return balance, nil
		}
	}
	return 0, nil
}

// LoadMarkets returns every actively trading USDT perpetual keyed by unified
// symbol, e.g. "XRP/USDT:USDT".
func (f *Futures) LoadMarkets(ctx context.Context) (map[string]domain.Market, error) {
	body, err := f.client.doPublic(ctx, f.client.futuresBaseURL, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, domain.NewGatewayError(futuresName, "load markets", err)
	}

	var resp futuresExchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewGatewayError(futuresName, "load markets", err)
	}

	markets := make(map[string]domain.Market, len(resp.Symbols))
	for _, sym := range resp.Symbols {
		if sym.Status != "TRADING" || sym.ContractType != "PERPETUAL" {
			continue
		}
		m := domain.Market{
			Symbol:          sym.BaseAsset + "/" + sym.QuoteAsset + ":" + sym.QuoteAsset,
			ID:              sym.Symbol,
			Base:            sym.BaseAsset,
			Quote:           sym.QuoteAsset,
			AmountPrecision: sym.QuantityPrecision,
			PricePrecision:  sym.PricePrecision,
			Active:          true,
			Future:          true,
		}
		for _, filter := range sym.Filters {
			switch filter.FilterType {
			case "LOT_SIZE":
				if minQty, err := asFloat(filter.MinQty); err == nil {
					m.MinAmount = minQty
				}
			case "MIN_NOTIONAL":
				notional := filter.Notional
				if notional == "" {
					notional = filter.MinNotional
				}
				if minCost, err := asFloat(notional); err == nil {
					m.MinCost = minCost
				}
			}
		}
		markets[m.Symbol] = m
	}
	return markets, nil
}

// SetLeverage sets the initial leverage for a symbol. Idempotent on the
// exchange side.
func (f *Futures) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", nativeFuturesSymbol(symbol))
	params.Set("leverage", strconv.Itoa(leverage))

	if _, err := f.client.doSigned(ctx, http.MethodPost, f.client.futuresBaseURL, "/fapi/v1/leverage", params); err != nil {
		return domain.NewGatewayError(futuresName, "set leverage "+symbol, err)
	}
	f.logger.Info("leverage set", slog.String("symbol", symbol), slog.Int("leverage", leverage))
	return nil
}

// FetchPositions returns all open positions. Size keeps the exchange's sign
// convention: negative for shorts.
func (f *Futures) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	body, err := f.client.doSigned(ctx, http.MethodGet, f.client.futuresBaseURL, "/fapi/v2/positionRisk", url.Values{})
	if err != nil {
		return nil, domain.NewGatewayError(futuresName, "fetch positions", err)
	}

	var entries []positionRiskEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, domain.NewGatewayError(futuresName, "fetch positions", err)
	}

	var positions []domain.Position
	for _, e := range entries {
		size, err := asFloat(e.PositionAmt)
		if err != nil || size == 0 {
			continue
		}
		entry, _ := asFloat(e.EntryPrice)
		leverage, _ := strconv.Atoi(e.Leverage)
		positions = append(positions, domain.Position{
			Symbol:     unifiedFromNative(e.Symbol),
			MarketID:   e.Symbol,
			Size:       size,
			EntryPrice: entry,
			Leverage:   leverage,
		})
	}
	return positions, nil
}

// PlaceMarketBuy buys amount contracts at market, which closes a short of
// that size.
func (f *Futures) PlaceMarketBuy(ctx context.Context, symbol string, amount float64) (*domain.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", nativeFuturesSymbol(symbol))
	params.Set("side", "BUY")
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(amount))
	params.Set("newOrderRespType", "RESULT")

	return f.placeOrder(ctx, symbol, "futures market buy", params)
}

// PlaceMarketSellCost opens a short sized by quote-currency cost. The
// futures API only accepts base quantities, so the cost is converted at the
// current mark and truncated to the contract's precision.
func (f *Futures) PlaceMarketSellCost(ctx context.Context, symbol string, cost float64) (*domain.OrderResult, error) {
	tickerParams := url.Values{}
	tickerParams.Set("symbol", nativeFuturesSymbol(symbol))
	body, err := f.client.doPublic(ctx, f.client.futuresBaseURL, "/fapi/v1/ticker/price", tickerParams)
	if err != nil {
		return nil, domain.NewGatewayError(futuresName, "futures market sell "+symbol, err)
	}
	var tick tickerPriceResponse
	if err := json.Unmarshal(body, &tick); err != nil {
		return nil, domain.NewGatewayError(futuresName, "futures market sell "+symbol, err)
	}
	price, err := asFloat(tick.Price)
	if err != nil || price <= 0 {
		return nil, domain.NewGatewayError(futuresName, "futures market sell "+symbol,
			fmt.Errorf("bad mark price %q: %v", tick.Price, err))
	}

	markets, err := f.LoadMarkets(ctx)
	if err != nil {
		return nil, err
	}
	market, ok := markets[symbol]
	if !ok {
		return nil, domain.NewGatewayError(futuresName, "futures market sell "+symbol, domain.ErrNoMarketData)
	}

	amount, err := sizing.NormalizeAmount(cost/price, &market)
	if err != nil {
		return nil, domain.NewGatewayError(futuresName, "futures market sell "+symbol, err)
	}

	params := url.Values{}
	params.Set("symbol", nativeFuturesSymbol(symbol))
	params.Set("side", "SELL")
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(amount))
	params.Set("newOrderRespType", "RESULT")

	return f.placeOrder(ctx, symbol, "futures market sell", params)
}

func (f *Futures) placeOrder(ctx context.Context, symbol, op string, params url.Values) (*domain.OrderResult, error) {
	body, err := f.client.doSigned(ctx, http.MethodPost, f.client.futuresBaseURL, "/fapi/v1/order", params)
	if err != nil {
		return nil, domain.NewGatewayError(futuresName, op+" "+symbol, err)
	}

	var resp futuresOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewGatewayError(futuresName, op+" "+symbol, err)
	}

	qty, err := asFloat(resp.ExecutedQty)
	if err != nil {
		return nil, domain.NewGatewayError(futuresName, op+" "+symbol, err)
	}
	avg, err := asFloat(resp.AvgPrice)
	if err != nil {
		return nil, domain.NewGatewayError(futuresName, op+" "+symbol, err)
	}
	cum, err := asFloat(resp.CumQuote)
	if err != nil {
		return nil, domain.NewGatewayError(futuresName, op+" "+symbol, err)
	}
	if qty <= 0 {
		return nil, domain.NewGatewayError(futuresName, op+" "+symbol,
			fmt.Errorf("order %d filled nothing (status %s)", resp.OrderID, resp.Status))
	}

	result := &domain.OrderResult{
		OrderID:      strconv.FormatInt(resp.OrderID, 10),
		Symbol:       symbol,
		AveragePrice: avg,
		FilledQty:    qty,
		TotalCost:    cum,
	}
	f.logger.Info("futures order filled",
		slog.String("op", op),
		slog.String("symbol", symbol),
		slog.Float64("avg_price", avg),
		slog.Float64("qty", qty),
	)
	return result, nil
}

// unifiedFromNative converts a native perpetual symbol like "XRPUSDT" back
// to "XRP/USDT:USDT". Only USDT-margined contracts appear in this account.
func unifiedFromNative(native string) string {
	base, found := strings.CutSuffix(native, "USDT")
	if !found {
		return native
	}
	return base + "/USDT:USDT"
}
