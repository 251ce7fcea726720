package eligibility

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func eligibleRecord(currency string) domain.EligibilityRecord {
	return domain.EligibilityRecord{
		Currency:       currency,
		DepositAddress: domain.DepositAddress{Address: "rX1234abcd", Network: "XRP"},
		Depositable:    true,
	}
}

func TestIsEligible_AllChecksPass(t *testing.T) {
	gate := NewGate(testLogger())
	table := domain.EligibilityTable{"XRP": eligibleRecord("XRP")}

	assert.True(t, gate.IsEligible("XRP", table))
}

func TestIsEligible_FailsEachCheck(t *testing.T) {
	gate := NewGate(testLogger())

	cases := []struct {
		name   string
		mutate func(*domain.EligibilityRecord)
	}{
		{"unavailable flag", func(r *domain.EligibilityRecord) { r.Unavailable = true }},
		{"missing deposit address", func(r *domain.EligibilityRecord) { r.DepositAddress.Address = "" }},
		{"trade suspended", func(r *domain.EligibilityRecord) { r.TradeSuspended = true }},
		{"withdraw suspended", func(r *domain.EligibilityRecord) { r.WithdrawSuspended = true }},
		{"not depositable", func(r *domain.EligibilityRecord) { r.Depositable = false }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := eligibleRecord("XRP")
			tc.mutate(&rec)
			table := domain.EligibilityTable{"XRP": rec}
			assert.False(t, gate.IsEligible("XRP", table))
		})
	}
}

func TestIsEligible_UnknownCurrency(t *testing.T) {
	gate := NewGate(testLogger())
	assert.False(t, gate.IsEligible("DOGE", domain.EligibilityTable{}))
}

func TestIsEligible_Idempotent(t *testing.T) {
	gate := NewGate(testLogger())
	table := domain.EligibilityTable{"XRP": eligibleRecord("XRP")}

	first := gate.IsEligible("XRP", table)
	second := gate.IsEligible("XRP", table)
	assert.Equal(t, first, second)

	// Table snapshot is unchanged by evaluation.
	assert.Equal(t, eligibleRecord("XRP"), table["XRP"])
}

func TestParseTable(t *testing.T) {
	csvData := strings.Join([]string{
		"currency,address,tag,network,unavailable,trade_suspended,withdraw_suspended,depositable",
		"XRP,rPdvC6ccq8hCdPKSPJkcYsvMhZ8gLs8R2S,100045,XRP,,,,true",
		"BTC,bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh,,BTC,*,,,true",
		"LINK,0x52908400098527886E0F7030069857D2E4169EE7,,ERC20,,,,true",
		"BAD,not-a-hex-address,,ERC20,,,,true",
	}, "\n")

	table, err := ParseTable(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, table, 4)

	assert.Equal(t, "rPdvC6ccq8hCdPKSPJkcYsvMhZ8gLs8R2S", table["XRP"].DepositAddress.Address)
	assert.Equal(t, "100045", table["XRP"].DepositAddress.Tag)
	assert.True(t, table["XRP"].Depositable)

	// "*" marks the operator's unavailable flag.
	assert.True(t, table["BTC"].Unavailable)

	// Valid EVM address survives; invalid one is cleared so the gate
	// rejects the currency.
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", table["LINK"].DepositAddress.Address)
	assert.Equal(t, "", table["BAD"].DepositAddress.Address)
}

func TestParseTable_MissingColumns(t *testing.T) {
	_, err := ParseTable(strings.NewReader("symbol,other\nXRP,1"))
	require.Error(t, err)
}
