package eligibility

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

// evm-style networks whose deposit addresses can be checked syntactically
// before any funds are sent to them.
var evmNetworks = map[string]bool{
	"ETH":      true,
	"ERC20":    true,
	"BSC":      true,
	"BEP20":    true,
	"ARBITRUM": true,
	"OPTIMISM": true,
	"MATIC":    true,
	"POLYGON":  true,
	"BASE":     true,
}

// LoadTable reads the per-currency address book CSV at path and returns the
// eligibility table for this cycle. Expected header:
//
//	currency,address,tag,network,unavailable,trade_suspended,withdraw_suspended,depositable
//
// A malformed row fails the whole load; a cycle must not start from a
// partially read table. Deposit addresses on EVM networks that do not parse
// as hex addresses are treated as unknown (cleared), which makes the gate
// reject the currency rather than withdraw to a typo.
func LoadTable(path string) (domain.EligibilityTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eligibility: open table %s: %w", path, err)
	}
	defer f.Close()

	return ParseTable(f)
}

// ParseTable parses the address book CSV from r.
func ParseTable(r io.Reader) (domain.EligibilityTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("eligibility: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"currency", "address"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("eligibility: header missing %q column", required)
		}
	}

	table := make(domain.EligibilityTable)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("eligibility: row %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		currency := strings.ToUpper(field("currency"))
		if currency == "" {
			return nil, fmt.Errorf("eligibility: row %d: empty currency", line)
		}

		rec := domain.EligibilityRecord{
			Currency: currency,
			DepositAddress: domain.DepositAddress{
				Address: field("address"),
				Tag:     field("tag"),
				Network: strings.ToUpper(field("network")),
			},
			Unavailable:       parseFlag(field("unavailable")),
			TradeSuspended:    parseFlag(field("trade_suspended")),
			WithdrawSuspended: parseFlag(field("withdraw_suspended")),
			Depositable:       !parseFlag(field("deposit_suspended")),
		}
		if v := field("depositable"); v != "" {
			rec.Depositable = parseFlag(v)
		}

		if rec.DepositAddress.Address != "" && evmNetworks[rec.DepositAddress.Network] {
			if !common.IsHexAddress(rec.DepositAddress.Address) {
				rec.DepositAddress.Address = ""
			}
		}

		table[currency] = rec
	}

	return table, nil
}

// parseFlag accepts the operator spreadsheet's truthy markers: the original
// address book used "*" in flag columns.
func parseFlag(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "*":
		return true
	}
	return false
}
