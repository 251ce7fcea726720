package binance

import "strconv"

// Binance returns decimal fields as JSON strings. asFloat tolerates the
// empty string, which several optional fields use for "no value".
func asFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// stepDecimals converts a filter step like "0.01000000" into the number of
// meaningful decimal places. A step of "1.00000000" means whole units.
func stepDecimals(step string) int {
	dot := -1
	for i, r := range step {
		if r == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return 0
	}
	decimals := 0
	for i := dot + 1; i < len(step); i++ {
		if step[i] != '0' {
			decimals = i - dot
		}
	}
	return decimals
}

type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Filters    []struct {
			FilterType  string `json:"filterType"`
			MinQty      string `json:"minQty"`
			StepSize    string `json:"stepSize"`
			TickSize    string `json:"tickSize"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

type futuresExchangeInfoResponse struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		Status            string `json:"status"`
		ContractType      string `json:"contractType"`
		BaseAsset         string `json:"baseAsset"`
		QuoteAsset        string `json:"quoteAsset"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
		Filters           []struct {
			FilterType  string `json:"filterType"`
			MinQty      string `json:"minQty"`
			Notional    string `json:"notional"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type orderResponse struct {
	OrderID              int64  `json:"orderId"`
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	ExecutedQty          string `json:"executedQty"`
	CummulativeQuoteQty  string `json:"cummulativeQuoteQty"`
	Fills                []struct {
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
	} `json:"fills"`
}

type futuresOrderResponse struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	AvgPrice    string `json:"avgPrice"`
	ExecutedQty string `json:"executedQty"`
	CumQuote    string `json:"cumQuote"`
}

type depositAddressResponse struct {
	Address string `json:"address"`
	Coin    string `json:"coin"`
	Tag     string `json:"tag"`
}

type coinConfig struct {
	Coin             string `json:"coin"`
	DepositAllEnable bool   `json:"depositAllEnable"`
	WithdrawAllEnable bool  `json:"withdrawAllEnable"`
}

// Withdrawal history status codes, per the capital API docs.
const (
	withdrawStatusEmailSent        = 0
	withdrawStatusCancelled        = 1
	withdrawStatusAwaitingApproval = 2
	withdrawStatusRejected         = 3
	withdrawStatusProcessing       = 4
	withdrawStatusFailure          = 5
	withdrawStatusCompleted        = 6
)

type withdrawHistoryEntry struct {
	ID     string `json:"id"`
	Coin   string `json:"coin"`
	Amount string `json:"amount"`
	TxID   string `json:"txId"`
	Status int    `json:"status"`
}

// Deposit history status codes.
const (
	depositStatusPending        = 0
	depositStatusSuccess        = 1
	depositStatusCredited       = 6 // credited but cannot withdraw yet
	depositStatusWrongDeposit   = 7
)

type depositHistoryEntry struct {
	Coin   string `json:"coin"`
	Amount string `json:"amount"`
	TxID   string `json:"txId"`
	Status int    `json:"status"`
}

type futuresBalanceEntry struct {
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"availableBalance"`
}

type positionRiskEntry struct {
	Symbol      string `json:"symbol"`
	PositionAmt string `json:"positionAmt"`
	EntryPrice  string `json:"entryPrice"`
	Leverage    string `json:"leverage"`
}
