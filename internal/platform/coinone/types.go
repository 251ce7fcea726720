package coinone

import "strconv"

// Coinone returns decimal fields as JSON strings.
func asFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// stepDecimals converts a quantity unit like "0.0001" into decimal places.
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

type balanceResponse struct {
	Balances []struct {
		Currency  string `json:"currency"`
		Available string `json:"available"`
		Limit     string `json:"limit"`
	} `json:"balances"`
}

type marketsResponse struct {
	Markets []struct {
		TargetCurrency    string `json:"target_currency"`
		QtyUnit           string `json:"qty_unit"`
		MinQty            string `json:"min_qty"`
		MinOrderAmount    string `json:"min_order_amount"`
		TradeStatus       int    `json:"trade_status"`
		MaintenanceStatus int    `json:"maintenance_status"`
	} `json:"markets"`
}

type tickerResponse struct {
	Tickers []struct {
		TargetCurrency string `json:"target_currency"`
		Last           string `json:"last"`
		QuoteVolume    string `json:"quote_volume"`
	} `json:"tickers"`
}

type orderDetailResponse struct {
	Order struct {
		OrderID      string `json:"order_id"`
		Status       string `json:"status"`
		AvgPrice     string `json:"avg_price"`
		TradedQty    string `json:"traded_qty"`
		TradedAmount string `json:"traded_amount"`
		Fee          string `json:"fee"`
	} `json:"order"`
}

type transactionHistoryResponse struct {
	Transactions []struct {
		ID     string `json:"id"`
		TxID   string `json:"txid"`
		Amount string `json:"amount"`
		Status string `json:"status"`
	} `json:"transactions"`
}
